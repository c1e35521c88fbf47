package collaboration

import (
	"context"

	"canvas-studio/internal/identity"
	"canvas-studio/internal/models"
)

// RoomStore holds the shared document of each room.
// Get returns models.EmptyStorage for a room that was never written.
type RoomStore interface {
	Get(ctx context.Context, room string) (string, error)
	Set(ctx context.Context, room, value string) error
}

// RoomBus relays room messages between server instances
type RoomBus interface {
	Publish(ctx context.Context, evt models.RoomEvent) error
	Subscribe(ctx context.Context) (<-chan models.RoomEvent, error)
}

// TokenParser validates room tokens
type TokenParser interface {
	Parse(token, room string) (*identity.RoomClaims, error)
}
