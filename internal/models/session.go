package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session represents an active WebSocket connection to a room
type Session struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	User        UserMeta  `json:"user"`
	ConnectedAt time.Time `json:"connected_at"`
}

// UserMeta identifies a participant; it does not change during a session
type UserMeta struct {
	ID   string   `json:"id"`
	Info UserInfo `json:"info"`
}

// Point is a canvas coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Presence is ephemeral per-connection state (cursor, selection).
// It is never persisted and is dropped when the connection closes.
type Presence struct {
	Cursor            *Point  `json:"cursor"`
	SelectedElementID *string `json:"selectedElementId"`
}

// Participant is another connection in the same room
type Participant struct {
	ConnectionID string   `json:"connectionId"`
	User         UserMeta `json:"user"`
	Presence     Presence `json:"presence"`
}

// MessageType names the messages of the room protocol
type MessageType string

const (
	// server → client
	MessageRoomState MessageType = "room_state" // sent once after joining
	MessageStorage   MessageType = "storage"    // shared document changed
	MessagePresence  MessageType = "presence"   // another participant moved/selected
	MessageJoin      MessageType = "join"
	MessageLeave     MessageType = "leave"
	MessageError     MessageType = "error"

	// client → server
	MessageSetStorage     MessageType = "set_storage"
	MessageUpdatePresence MessageType = "update_presence"
)

// EmptyStorage is the initial shared document of a new room
const EmptyStorage = "[]"

// RoomMessage is the single JSON envelope used in both directions
type RoomMessage struct {
	Type           MessageType   `json:"type"`
	ConnectionID   string        `json:"connectionId,omitempty"`
	CanvasElements *string       `json:"canvasElements,omitempty"`
	Presence       *Presence     `json:"presence,omitempty"`
	User           *UserMeta     `json:"user,omitempty"`
	Others         []Participant `json:"others,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func NewSession(roomID string, user UserMeta) *Session {
	return &Session{
		ID:          ksuid.New().String(),
		RoomID:      roomID,
		User:        user,
		ConnectedAt: time.Now(),
	}
}

// RoomEvent carries a room message between server instances
type RoomEvent struct {
	Origin  string      `json:"origin"`
	Room    string      `json:"room"`
	Message RoomMessage `json:"message"`
}
