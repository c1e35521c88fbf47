package api

import (
	"net/http"

	"canvas-studio/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, frontendURL string) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	// Learning: Middleware runs in order - tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)       // Add tracing spans to all requests
	r.Use(middleware.ErrorRecoveryMiddleware) // Catch panics
	r.Use(middleware.CORS(frontendURL))       // Handle CORS

	// Preflight requests must match a route for the middleware to run;
	// CORS answers them before this handler is reached
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Design endpoints
	api.HandleFunc("/designs", h.CreateDesign).Methods("POST")
	api.HandleFunc("/designs/user/{userId}", h.ListUserDesigns).Methods("GET")
	api.HandleFunc("/designs/{id}", h.GetDesign).Methods("GET")
	api.HandleFunc("/designs/{id}", h.UpdateDesign).Methods("PUT")
	api.HandleFunc("/designs/{id}", h.DeleteDesign).Methods("DELETE")
	api.HandleFunc("/designs/{id}/export", h.ExportDesign).Methods("POST")

	// User directory endpoints
	api.HandleFunc("/users", h.UpsertUser).Methods("POST")
	api.HandleFunc("/users/batch", h.BatchUsers).Methods("POST")
	api.HandleFunc("/users/search", h.SearchUsers).Methods("GET")

	// Collaboration endpoints
	api.HandleFunc("/rooms/auth", h.AuthorizeRoom).Methods("POST")

	// Health check endpoint
	api.HandleFunc("/health", h.Health).Methods("GET")

	// WebSocket routes
	r.HandleFunc("/ws/rooms/{room}", h.RoomWebSocket)

	return r
}
