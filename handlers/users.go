package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/internal/users"
	"github.com/commevents/backend/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// UserHandler serves profile and admin user endpoints.
type UserHandler struct {
	users *users.Service
}

func NewUserHandler(s *users.Service) *UserHandler {
	return &UserHandler{users: s}
}

func (h *UserHandler) Register(r Routes) {
	r.Token.POST("/users", h.Upsert)
	r.User.GET("/users/profile", h.Profile)
	r.User.GET("/users/events", h.Events)
	r.Admin.GET("/users/:id", h.Get)
	r.Admin.PUT("/users/:id/role", h.UpdateRole)
}

// Upsert creates or refreshes the caller's user document from the token claims.
// The JSON body is optional.
func (h *UserHandler) Upsert(c *gin.Context) {
	var p users.Profile
	if err := c.ShouldBindJSON(&p); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	claims, _ := middleware.ClaimsFrom(c)
	u, err := h.users.UpsertFromClaims(c.Request.Context(), claims, p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, mustUser(c))
}

func (h *UserHandler) Events(c *gin.Context) {
	out, err := h.users.Events(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
