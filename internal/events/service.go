package events

import (
	"context"
	"fmt"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
)

// CreatedEventRecorder records an event id on its organizer's user document.
type CreatedEventRecorder interface {
	AddCreatedEvent(ctx context.Context, userID, eventID string) error
}

// Service encapsulates event CRUD and the organizer ownership rule.
type Service struct {
	repo  Repository
	users CreatedEventRecorder
	now   func() time.Time
}

func NewService(repo Repository, users CreatedEventRecorder) *Service {
	return &Service{repo: repo, users: users, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) List(ctx context.Context) ([]*models.Event, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new event owned by organizerID. Recording the id on the
// organizer's createdEvents list is best-effort.
func (s *Service) Create(ctx context.Context, organizerID string, in models.EventInput) (*models.Event, error) {
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}
	e := &models.Event{
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Location:    in.Location,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		Capacity:    in.Capacity,
		Organizer:   organizerID,
		Attendees:   []string{},
	}
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	if s.users != nil {
		if err := s.users.AddCreatedEvent(ctx, organizerID, created.ID); err != nil {
			logger.With("eventId", created.ID, "userId", organizerID).Warn("failed to record created event on user", "error", err)
		}
	}
	return created, nil
}

// Authorize fails with ErrForbidden unless caller organizes e or is an admin.
func Authorize(e *models.Event, caller *models.User) error {
	if caller == nil {
		return models.ErrForbidden
	}
	if e.Organizer == caller.ID || caller.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: only the organizer may modify this event", models.ErrForbidden)
}

// Update applies patch to the event. The ownership check and the write happen
// in the same transaction.
func (s *Service) Update(ctx context.Context, caller *models.User, id string, patch models.EventPatch) (*models.Event, error) {
	if err := models.ValidateStruct(patch); err != nil {
		return nil, err
	}
	return s.repo.Transact(ctx, id, func(e *models.Event) error {
		if err := Authorize(e, caller); err != nil {
			return err
		}
		if err := patch.Apply(e); err != nil {
			return err
		}
		e.UpdatedAt = s.now()
		return nil
	})
}

// Delete removes the event when caller is allowed to.
func (s *Service) Delete(ctx context.Context, caller *models.User, id string) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(e, caller); err != nil {
		return err
	}
	if caller.IsAdmin() && e.Organizer != caller.ID {
		return s.repo.Delete(ctx, id)
	}
	deleted, err := s.repo.DeleteOwned(ctx, id, caller.ID)
	if err != nil {
		return err
	}
	if !deleted {
		// organizer is immutable, so the event vanished in between
		return models.ErrNotFound
	}
	return nil
}
