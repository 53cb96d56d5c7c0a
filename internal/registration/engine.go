// Package registration enforces one registration per user per event and
// event capacity limits.
package registration

import (
	"context"
	"errors"
	"time"

	"github.com/commevents/backend/internal/events"
	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"github.com/commevents/backend/pkg/metrics"
)

// AttendingRecorder appends an event id to a user's attending list if absent.
type AttendingRecorder interface {
	AddAttendingEvent(ctx context.Context, userID, eventID string) error
}

type Engine struct {
	events events.Repository
	users  AttendingRecorder
	now    func() time.Time
}

func NewEngine(repo events.Repository, users AttendingRecorder) *Engine {
	return &Engine{events: repo, users: users, now: func() time.Time { return time.Now().UTC() }}
}

// Register adds userID to the event's attendees inside one store transaction.
// The user-side attending list is updated afterwards on a best-effort basis:
// a failure there is logged and counted, and the registration still succeeds.
func (g *Engine) Register(ctx context.Context, eventID, userID string) (*models.Event, error) {
	e, err := g.events.Transact(ctx, eventID, func(e *models.Event) error {
		return admit(e, userID, g.now())
	})
	metrics.Registrations.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	if g.users != nil {
		if err := g.users.AddAttendingEvent(ctx, userID, eventID); err != nil {
			metrics.AttendingSyncFailures.Inc()
			logger.With("eventId", eventID, "userId", userID).Warn("attending list update failed after registration", "error", err)
		}
	}
	return e, nil
}

// admit checks e against userID and appends on success. On failure e is left untouched.
func admit(e *models.Event, userID string, now time.Time) error {
	if e.HasAttendee(userID) {
		return models.ErrAlreadyRegistered
	}
	if e.Full() {
		return models.ErrCapacityExceeded
	}
	e.Attendees = append(e.Attendees, userID)
	e.UpdatedAt = now
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, models.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	}
	return "error"
}
