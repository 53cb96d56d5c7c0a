package handlers

import (
	"net/http"

	"github.com/commevents/backend/internal/calendar"
	"github.com/gin-gonic/gin"
)

// CalendarHandler serves Google Calendar linking and sync.
type CalendarHandler struct {
	svc *calendar.Service
}

func NewCalendarHandler(s *calendar.Service) *CalendarHandler {
	return &CalendarHandler{svc: s}
}

func (h *CalendarHandler) Register(r Routes) {
	r.User.GET("/calendar/auth/google/url", h.AuthURL)
	r.User.POST("/calendar/auth/google/callback", h.Callback)
	r.User.POST("/calendar/events/:eventId/add", h.AddEvent)
	r.User.GET("/calendar/events", h.ListEvents)
	r.User.DELETE("/calendar/disconnect", h.Disconnect)
}

func (h *CalendarHandler) AuthURL(c *gin.Context) {
	url, err := h.svc.AuthURL(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Callback receives the code and state the frontend got back from Google.
func (h *CalendarHandler) Callback(c *gin.Context) {
	var req struct {
		Code  string `json:"code" binding:"required"`
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Connect(c.Request.Context(), mustUser(c).ID, req.Code, req.State); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "google calendar connected"})
}

func (h *CalendarHandler) AddEvent(c *gin.Context) {
	id, err := h.svc.AddEvent(c.Request.Context(), mustUser(c).ID, c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event added to google calendar", "calendarEventId": id})
}

func (h *CalendarHandler) ListEvents(c *gin.Context) {
	entries, err := h.svc.ListEvents(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

func (h *CalendarHandler) Disconnect(c *gin.Context) {
	if err := h.svc.Disconnect(c.Request.Context(), mustUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "google calendar disconnected"})
}
