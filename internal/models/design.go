package models

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Design is a canvas document owned by a user.
// Elements are stored as a jsonb array in the same row so a load is one query.
type Design struct {
	ID             string                       `json:"id" gorm:"type:char(27);primaryKey"`
	Title          string                       `json:"title" gorm:"type:varchar(100);not null"`
	Width          float64                      `json:"width" gorm:"not null"`
	Height         float64                      `json:"height" gorm:"not null"`
	UserID         string                       `json:"userId" gorm:"type:varchar(255);not null;index:idx_designs_user_updated,priority:1"`
	Thumbnail      *string                      `json:"thumbnail"`
	CanvasElements datatypes.JSONType[Elements] `json:"canvasElements" gorm:"type:jsonb;not null"`
	Room           *string                      `json:"liveblocksRoom,omitempty" gorm:"column:room;type:varchar(255);uniqueIndex"`
	CreatedAt      time.Time                    `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                    `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime;index:idx_designs_user_updated,priority:2,sort:desc"`
	DeletedAt      gorm.DeletedAt               `json:"-" gorm:"column:deleted_at;index"`
}

// BeforeCreate hook generates KSUID before inserting
func (d *Design) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = ksuid.New().String()
	}
	return nil
}

// Elements returns the stored element list
func (d *Design) Elements() Elements {
	return d.CanvasElements.Data()
}

// Summary drops the element payload for list views
func (d *Design) Summary() DesignSummary {
	return DesignSummary{
		ID:        d.ID,
		Title:     d.Title,
		Width:     d.Width,
		Height:    d.Height,
		UserID:    d.UserID,
		Thumbnail: d.Thumbnail,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type DesignSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	UserID    string    `json:"userId"`
	Thumbnail *string   `json:"thumbnail"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DesignCreate struct {
	Title          string   `json:"title" validate:"min=1,max=100"`
	Width          float64  `json:"width" validate:"gt=0"`
	Height         float64  `json:"height" validate:"gt=0"`
	UserID         string   `json:"userId" validate:"required"`
	Thumbnail      *string  `json:"thumbnail,omitempty"`
	CanvasElements Elements `json:"canvasElements"`
	Room           *string  `json:"liveblocksRoom,omitempty"`
}

// Validate trims the title and checks every field, elements included
func (c *DesignCreate) Validate() error {
	c.Title = strings.TrimSpace(c.Title)
	return joinValidation(
		validateStruct(c, ""),
		ValidateElements(c.CanvasElements),
	)
}

// DesignUpdate is a partial update; nil fields are left untouched
type DesignUpdate struct {
	Title          *string   `json:"title,omitempty" validate:"omitnil,min=1,max=100"`
	Width          *float64  `json:"width,omitempty" validate:"omitnil,gt=0"`
	Height         *float64  `json:"height,omitempty" validate:"omitnil,gt=0"`
	Thumbnail      *string   `json:"thumbnail,omitempty"`
	CanvasElements *Elements `json:"canvasElements,omitempty"`
	Room           *string   `json:"liveblocksRoom,omitempty"`
}

func (u *DesignUpdate) Validate() error {
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
	}
	var elementsErr error
	if u.CanvasElements != nil {
		elementsErr = ValidateElements(*u.CanvasElements)
	}
	return joinValidation(validateStruct(u, ""), elementsErr)
}

// IsEmpty reports an update that would change nothing
func (u *DesignUpdate) IsEmpty() bool {
	return u.Title == nil && u.Width == nil && u.Height == nil &&
		u.Thumbnail == nil && u.CanvasElements == nil && u.Room == nil
}

// joinValidation merges field errors; a non-validation error wins outright
func joinValidation(errs ...error) error {
	out := &ValidationError{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		out.Fields = append(out.Fields, ve.Fields...)
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

// RoomForDesign names the collaboration room of a design
func RoomForDesign(designID string) string {
	return "design-" + designID
}
