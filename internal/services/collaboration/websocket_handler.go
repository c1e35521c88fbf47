package collaboration

import (
	"log"
	"net/http"

	"canvas-studio/internal/identity"
	"canvas-studio/internal/middleware"
	"canvas-studio/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: WEBSOCKET UPGRADER

The upgrader converts HTTP connections to WebSocket connections.

Key settings:
- ReadBufferSize/WriteBufferSize: Memory for I/O operations
- CheckOrigin: CORS validation for WebSocket connections
*/

// WebSocketHandler admits connections into rooms
type WebSocketHandler struct {
	sessionManager *SessionManager
	tokens         TokenParser
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler creates a handler. allowedOrigin "*" or "" accepts any origin.
func NewWebSocketHandler(sessionManager *SessionManager, tokens TokenParser, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		sessionManager: sessionManager,
		tokens:         tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// HandleRoomConnection serves GET /ws/rooms/{room}?token=...
// A missing or invalid token joins the room anonymously.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	room := mux.Vars(r)["room"]

	session := models.NewSession(room, models.UserMeta{})
	session.User = h.resolveUser(r, room, session.ID)

	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.String("room.id", room),
		attribute.String("user.id", session.User.ID),
		attribute.String("session.id", session.ID),
	)
	defer span.End()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	s := &Session{
		Session: session,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Manager: h.sessionManager,
	}

	if !submit(h.sessionManager, h.sessionManager.register, s) {
		conn.Close()
		return
	}

	log.Printf("✓ WebSocket connection established for room %s (user: %s, session: %s)",
		room, session.User.Info.Name, session.ID)

	// Learning: Separate goroutines prevent deadlock between reading and writing.
	// The read loop runs on the handler goroutine so ctx lives as long as the connection.
	go s.WritePump()
	s.ReadPump(ctx)
}

func (h *WebSocketHandler) resolveUser(r *http.Request, room, connectionID string) models.UserMeta {
	token := r.URL.Query().Get("token")
	if token == "" || h.tokens == nil {
		return identity.AnonymousUser(connectionID)
	}

	claims, err := h.tokens.Parse(token, room)
	if err != nil {
		log.Printf("⚠️  Rejected room token for %s: %v", room, err)
		return identity.AnonymousUser(connectionID)
	}
	return claims.User
}
