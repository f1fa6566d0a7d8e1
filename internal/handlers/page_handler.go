package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gitfolio/backend/internal/middleware"
	"github.com/gitfolio/backend/internal/models"
	"github.com/gitfolio/backend/internal/services"
)

// Generation can take several upstream round trips.
const generateTimeout = 90 * time.Second

type PageHandler struct {
	pages *services.PageService
}

func NewPageHandler(pages *services.PageService) *PageHandler {
	return &PageHandler{pages: pages}
}

// GetPage serves the page record, generating it on first request and
// refreshing stale categories otherwise. Bots get the cached record as-is.
func (h *PageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	lightweight := middleware.IsBot(r.Context())

	ctx, cancel := contextWithTimeout(r.Context(), generateTimeout)
	defer cancel()

	rec, err := h.pages.ServePage(ctx, username, lightweight)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(rec))
}

// GeneratePage creates a page explicitly, with city, interests and a user
// bio the first-request path cannot supply.
func (h *PageHandler) GeneratePage(w http.ResponseWriter, r *http.Request) {
	var req models.GeneratePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), generateTimeout)
	defer cancel()

	rec, err := h.pages.Generate(ctx, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(rec))
}

// RefreshPage regenerates every category regardless of freshness.
func (h *PageHandler) RefreshPage(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	ctx, cancel := contextWithTimeout(r.Context(), generateTimeout)
	defer cancel()

	rec, err := h.pages.ForceRefresh(ctx, username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(rec))
}

// DeletePage removes the record. Deleting an absent page still succeeds.
func (h *PageHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.pages.Delete(ctx, username); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Page deleted successfully"}))
}
