package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gitfolio/backend/internal/models"
	"github.com/gitfolio/backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// writeServiceError maps the service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var rateLimited *services.RateLimitedError
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("GitHub profile not found"))
	case errors.Is(err, services.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Page not found"))
	case errors.As(err, &rateLimited):
		if rateLimited.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		}
		writeJSON(w, http.StatusTooManyRequests, models.NewErrorResponse("GitHub rate limit exceeded"))
	case errors.Is(err, services.ErrGenerationUnavailable):
		writeJSON(w, http.StatusBadGateway, models.NewErrorResponse("Content generation is unavailable"))
	default:
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Internal server error"))
	}
}
