package handlers

import (
	"errors"
	"net/http"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"github.com/commevents/backend/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ""
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyRegistered):
		status, code = http.StatusConflict, "already_registered"
	case errors.Is(err, models.ErrCapacityExceeded):
		status, code = http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, models.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrCalendarAuthExpired):
		status, code = http.StatusUnauthorized, "calendar_auth_expired"
	case errors.Is(err, models.ErrCalendarNotConnected):
		status, code = http.StatusBadRequest, "calendar_not_connected"
	case errors.Is(err, models.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrTransient):
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.With("requestId", c.GetString(middleware.RequestIDKey), "path", c.FullPath()).Error("request failed", "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		} else {
			msg = "service temporarily unavailable"
		}
	}
	body := gin.H{"error": msg}
	if code != "" {
		body["code"] = code
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// mustUser returns the user resolved by middleware.CurrentUser.
func mustUser(c *gin.Context) *models.User {
	u, ok := middleware.UserFrom(c)
	if !ok {
		// routes in Routes.User always run CurrentUser first
		panic("handlers: route registered without CurrentUser middleware")
	}
	return u
}
