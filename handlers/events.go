package handlers

import (
	"net/http"

	"github.com/commevents/backend/internal/events"
	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/internal/registration"
	"github.com/gin-gonic/gin"
)

// EventHandler serves event CRUD and registration.
type EventHandler struct {
	events *events.Service
	engine *registration.Engine
}

func NewEventHandler(s *events.Service, e *registration.Engine) *EventHandler {
	return &EventHandler{events: s, engine: e}
}

func (h *EventHandler) Register(r Routes) {
	r.Public.GET("/events", h.List)
	r.Public.GET("/events/:id", h.Get)
	r.User.POST("/events", h.Create)
	r.User.PUT("/events/:id", h.Update)
	r.User.DELETE("/events/:id", h.Delete)
	r.User.POST("/events/:id/register", h.RegisterAttendee)
}

func (h *EventHandler) List(c *gin.Context) {
	list, err := h.events.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *EventHandler) Get(c *gin.Context) {
	e, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// Create makes the caller the organizer of a new event.
func (h *EventHandler) Create(c *gin.Context) {
	var in models.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.events.Create(c.Request.Context(), mustUser(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *EventHandler) Update(c *gin.Context) {
	var patch models.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.events.Update(c.Request.Context(), mustUser(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), mustUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

// RegisterAttendee registers the caller for the event.
func (h *EventHandler) RegisterAttendee(c *gin.Context) {
	e, err := h.engine.Register(c.Request.Context(), c.Param("id"), mustUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "registered", "event": e})
}
