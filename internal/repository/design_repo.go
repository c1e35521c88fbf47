package repository

import (
	"context"
	"errors"
	"fmt"

	"canvas-studio/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist or was soft-deleted
var ErrNotFound = errors.New("record not found")

// DesignRepositoryImpl handles all database operations for designs using GORM
// Learning: This is the IMPLEMENTATION. It doesn't know about any interface.
// The api package declares the interface it needs.
type DesignRepositoryImpl struct {
	db *gorm.DB
}

// NewDesignRepository creates a new design repository
// Returns concrete type - "Accept interfaces, return structs"
func NewDesignRepository(db *gorm.DB) *DesignRepositoryImpl {
	return &DesignRepositoryImpl{db: db}
}

// Create inserts a new design
// The KSUID is auto-generated in the BeforeCreate hook
func (r *DesignRepositoryImpl) Create(ctx context.Context, in *models.DesignCreate) (*models.Design, error) {
	elements := in.CanvasElements
	if elements == nil {
		elements = models.Elements{}
	}

	design := &models.Design{
		Title:          in.Title,
		Width:          in.Width,
		Height:         in.Height,
		UserID:         in.UserID,
		Thumbnail:      in.Thumbnail,
		CanvasElements: datatypes.NewJSONType(elements),
		Room:           in.Room,
	}

	if err := r.db.WithContext(ctx).Create(design).Error; err != nil {
		return nil, fmt.Errorf("failed to create design: %w", err)
	}

	return design, nil
}

// GetByID retrieves a design by its KSUID
// Soft-deleted designs are automatically excluded
func (r *DesignRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Design, error) {
	var design models.Design

	err := r.db.WithContext(ctx).First(&design, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("design %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get design: %w", err)
	}

	return &design, nil
}

// ListByUser returns a user's designs, most recently updated first.
// The element payload is not loaded.
func (r *DesignRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]models.DesignSummary, error) {
	var designs []*models.Design

	err := r.db.WithContext(ctx).
		Omit("canvas_elements").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&designs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list designs: %w", err)
	}

	out := make([]models.DesignSummary, 0, len(designs))
	for _, d := range designs {
		out = append(out, d.Summary())
	}
	return out, nil
}

// Update modifies an existing design
// Learning: build an update map so nil pointers are left alone
func (r *DesignRepositoryImpl) Update(ctx context.Context, id string, update *models.DesignUpdate) (*models.Design, error) {
	var design models.Design

	if err := r.db.WithContext(ctx).First(&design, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("design %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find design: %w", err)
	}

	updates := make(map[string]interface{})
	if update.Title != nil {
		updates["title"] = *update.Title
	}
	if update.Width != nil {
		updates["width"] = *update.Width
	}
	if update.Height != nil {
		updates["height"] = *update.Height
	}
	if update.Thumbnail != nil {
		updates["thumbnail"] = *update.Thumbnail
	}
	if update.CanvasElements != nil {
		updates["canvas_elements"] = datatypes.NewJSONType(*update.CanvasElements)
	}
	if update.Room != nil {
		updates["room"] = *update.Room
	}

	if len(updates) == 0 {
		return &design, nil
	}

	// UpdatedAt is set by GORM
	if err := r.db.WithContext(ctx).Model(&design).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update design: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Delete performs a soft delete on the design
// Learning: GORM sets DeletedAt instead of removing the row
func (r *DesignRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Design{}, "id = ?", id)

	if result.Error != nil {
		return fmt.Errorf("failed to delete design: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("design %s: %w", id, ErrNotFound)
	}

	return nil
}

// HardDelete permanently removes a design (bypasses soft delete)
func (r *DesignRepositoryImpl) HardDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Unscoped().Delete(&models.Design{}, "id = ?", id)

	if result.Error != nil {
		return fmt.Errorf("failed to hard delete design: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("design %s: %w", id, ErrNotFound)
	}

	return nil
}
