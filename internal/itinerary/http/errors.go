package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

// WriteError maps domain errors to HTTP statuses. Unknown errors are logged
// and hidden behind a 500.
func WriteError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidCost),
		errors.Is(err, domain.ErrInvalidPolicy),
		errors.Is(err, domain.ErrUnknownLayout):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrItineraryLocked),
		errors.Is(err, domain.ErrConcurrentCommitConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrExpired):
		status = http.StatusGone
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), nil).Error("request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"ok": false, "error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}
