package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// UserResolver loads the application user for a token subject.
type UserResolver interface {
	GetBySub(ctx context.Context, sub string) (*models.User, error)
}

// CurrentUser resolves the caller's user document. It must run after AuthMiddleware.
// Callers who never completed POST /api/users get 401.
func CurrentUser(r UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub := SubjectFrom(c)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		u, err := r.GetBySub(c.Request.Context(), sub)
		switch {
		case errors.Is(err, models.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not registered", "code": "user_not_found"})
			return
		case errors.Is(err, models.ErrTransient):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable"})
			return
		case err != nil:
			logger.With("sub", sub).Error("resolve user failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}
		c.Set(UserKey, u)
		c.Next()
	}
}

// AdminOnly rejects callers without the admin role. It must run after CurrentUser.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFrom(c)
		if !ok || !u.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// UserFrom returns the user stored by CurrentUser.
func UserFrom(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}
