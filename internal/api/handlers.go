package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"canvas-studio/internal/export"
	"canvas-studio/internal/middleware"
	"canvas-studio/internal/models"
	"canvas-studio/internal/repository"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
)

// Handler handles HTTP requests
// Learning: Uses INTERFACES defined in this package (consumer-driven)
type Handler struct {
	designs  DesignStore
	users    UserDirectory
	verifier RequestVerifier
	tokens   RoomTokenIssuer
	renderer Renderer
	rooms    RoomConnector
}

func NewHandler(
	designs DesignStore,
	users UserDirectory,
	verifier RequestVerifier,
	tokens RoomTokenIssuer,
	renderer Renderer,
	rooms RoomConnector,
) *Handler {
	return &Handler{
		designs:  designs,
		users:    users,
		verifier: verifier,
		tokens:   tokens,
		renderer: renderer,
		rooms:    rooms,
	}
}

// Design handlers

func (h *Handler) CreateDesign(w http.ResponseWriter, r *http.Request) {
	var in models.DesignCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.designs.Create(r.Context(), &in)
	if err != nil {
		writeStoreError(w, r, err, "Failed to create design")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListUserDesigns returns summaries without elements, newest update first
func (h *Handler) ListUserDesigns(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	designs, err := h.designs.ListByUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, r, err, "Failed to list designs")
		return
	}
	if designs == nil {
		designs = []models.DesignSummary{}
	}

	writeJSON(w, http.StatusOK, designs)
}

func (h *Handler) GetDesign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	design, err := h.designs.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, "Failed to get design")
		return
	}

	writeJSON(w, http.StatusOK, design)
}

func (h *Handler) UpdateDesign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var update models.DesignUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	if update.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if err := update.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.designs.Update(r.Context(), id, &update)
	if err != nil {
		writeStoreError(w, r, err, "Failed to update design")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Check for hard delete flag
	hardDelete := r.URL.Query().Get("hard") == "true"

	var err error
	if hardDelete {
		err = h.designs.HardDelete(r.Context(), id)
	} else {
		err = h.designs.Delete(r.Context(), id) // Soft delete
	}
	if err != nil {
		writeStoreError(w, r, err, "Failed to delete design")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Design deleted successfully",
		"id":      id,
	})
}

// ExportDesign renders the design as a PNG attachment.
// Elements in the body (the editor's live state) win over the stored ones.
func (h *Handler) ExportDesign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		CanvasElements *models.Elements `json:"canvasElements"`
	}
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	design, err := h.designs.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, "Failed to export design")
		return
	}

	elements := design.Elements()
	if req.CanvasElements != nil {
		if err := models.ValidateElements(*req.CanvasElements); err != nil {
			writeValidationError(w, err)
			return
		}
		elements = *req.CanvasElements
	}

	ctx, span := middleware.StartSpan(r.Context(), "Export.RenderPNG",
		attribute.String("design.id", id),
		attribute.Int("elements.count", len(elements)),
	)
	png, err := h.renderer.RenderPNG(elements, design.Width, design.Height)
	middleware.AddSpanError(ctx, err)
	span.End()
	if models.IsValidationError(err) {
		writeValidationError(w, err)
		return
	}
	if err != nil {
		log.Printf("❌ Failed to export design %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to export design")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(design.Title)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Response helpers

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeValidationError answers 400 with field-level detail
func writeValidationError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   "Validation error",
		"details": ve.Fields,
	})
}

// writeStoreError maps not-found to 404 and logs everything else as a 500
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Design not found")
	case models.IsValidationError(err):
		writeValidationError(w, err)
	default:
		log.Printf("❌ %s [%s]: %v", message, middleware.GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, message)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rejectBody(w, err)
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	rejectBody(w, err)
	return false
}

func rejectBody(w http.ResponseWriter, err error) {
	// unknown element types surface from Elements.UnmarshalJSON
	if models.IsValidationError(err) {
		writeValidationError(w, err)
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request body")
}
