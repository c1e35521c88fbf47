package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"canvas-studio/internal/identity"
	"canvas-studio/internal/middleware"
	"canvas-studio/internal/models"

	"github.com/segmentio/ksuid"
)

// UpsertUser stores a user record pushed by the identity provider
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if !decodeBody(w, r, &user) {
		return
	}

	saved, err := h.users.Upsert(r.Context(), &user)
	if err != nil {
		if models.IsValidationError(err) {
			writeValidationError(w, err)
			return
		}
		log.Printf("❌ Failed to upsert user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to save user")
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// BatchUsers resolves {userIds} in request order
func (h *Handler) BatchUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserIDs []string `json:"userIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	profiles, err := h.users.LookupMany(r.Context(), req.UserIDs)
	if err != nil {
		log.Printf("❌ Failed to look up users: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to look up users")
		return
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}

	writeJSON(w, http.StatusOK, profiles)
}

// SearchUsers serves @mention suggestions
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	profiles, err := h.users.Search(r.Context(), q)
	if err != nil {
		log.Printf("❌ Failed to search users: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to search users")
		return
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}

	writeJSON(w, http.StatusOK, profiles)
}

// AuthorizeRoom issues a room token for {room}.
// Callers without a valid bearer token are admitted anonymously.
func (h *Handler) AuthorizeRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Room string `json:"room"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Room == "" {
		writeValidationError(w, &models.ValidationError{Fields: []models.FieldError{
			{Field: "room", Message: "is required"},
		}})
		return
	}

	user := identity.AnonymousUser(ksuid.New().String())
	if userID, err := h.verifier.VerifyRequest(r); err == nil {
		meta, err := h.users.MetaFor(r.Context(), userID)
		if err != nil {
			log.Printf("⚠️  Failed to resolve user %s [%s]: %v", userID, middleware.GetRequestID(r.Context()), err)
		} else {
			user = meta
		}
	}

	token, expiresAt, err := h.tokens.Issue(req.Room, user)
	if err != nil {
		log.Printf("❌ Failed to issue room token: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to authorize room")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
		"user":      user,
	})
}

// RoomWebSocket upgrades GET /ws/rooms/{room}
func (h *Handler) RoomWebSocket(w http.ResponseWriter, r *http.Request) {
	h.rooms.HandleRoomConnection(w, r)
}
