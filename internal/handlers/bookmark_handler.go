package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gitfolio/backend/internal/models"
	"github.com/gitfolio/backend/internal/services"
)

type BookmarkHandler struct {
	pages *services.PageService
}

func NewBookmarkHandler(pages *services.PageService) *BookmarkHandler {
	return &BookmarkHandler{pages: pages}
}

// ReplaceBookmarks swaps the entire bookmark list; there is no per-item
// edit. The stored list comes back reindexed.
func (h *BookmarkHandler) ReplaceBookmarks(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req models.ReplaceBookmarksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	bookmarks, err := h.pages.ReplaceBookmarks(ctx, username, req.Bookmarks)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(bookmarks))
}
