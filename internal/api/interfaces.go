package api

import (
	"context"
	"net/http"
	"time"

	"canvas-studio/internal/models"
)

/*
LEARNING: CONSUMER-DRIVEN INTERFACES (Go Idiom)

The handlers are the CONSUMER of repositories and identity services, so the
interfaces live HERE. Each one lists only the methods a handler calls; the
concrete *Impl types in repository/ and identity/ satisfy them implicitly,
and tests swap in small in-memory fakes.
*/

// DesignStore is the design persistence the handlers need
type DesignStore interface {
	Create(ctx context.Context, in *models.DesignCreate) (*models.Design, error)
	GetByID(ctx context.Context, id string) (*models.Design, error)
	ListByUser(ctx context.Context, userID string) ([]models.DesignSummary, error)
	Update(ctx context.Context, id string, update *models.DesignUpdate) (*models.Design, error)
	Delete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
}

// UserDirectory resolves and searches user profiles
type UserDirectory interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	LookupMany(ctx context.Context, ids []string) ([]models.UserProfile, error)
	Search(ctx context.Context, q string) ([]models.UserProfile, error)
	MetaFor(ctx context.Context, userID string) (models.UserMeta, error)
}

// RequestVerifier extracts the caller's user id from a bearer token
type RequestVerifier interface {
	VerifyRequest(r *http.Request) (string, error)
}

// RoomTokenIssuer admits a user into a collaboration room
type RoomTokenIssuer interface {
	Issue(room string, user models.UserMeta) (string, time.Time, error)
}

// Renderer rasterizes an element list
type Renderer interface {
	RenderPNG(elements models.Elements, width, height float64) ([]byte, error)
}

// RoomConnector upgrades a request into a room connection
type RoomConnector interface {
	HandleRoomConnection(w http.ResponseWriter, r *http.Request)
}
