package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
)

// EventReader loads events by id.
type EventReader interface {
	Get(ctx context.Context, id string) (*models.Event, error)
}

// Profile carries optional profile fields sent alongside the token on login.
type Profile struct {
	DisplayName string `json:"displayName" validate:"max=100"`
	PhotoURL    string `json:"photoURL" validate:"omitempty,url"`
}

// UserEvents groups the events a user organizes and attends.
type UserEvents struct {
	Created   []*models.Event `json:"createdEvents"`
	Attending []*models.Event `json:"attendingEvents"`
}

// Service encapsulates user-related business logic
type Service struct {
	repo   UserRepository
	events EventReader
}

func NewService(r UserRepository, events EventReader) *Service {
	return &Service{repo: r, events: events}
}

// UpsertFromClaims creates or updates a user using OIDC claims map.
// Non-empty profile fields take precedence over the claims.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}, p Profile) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: token has no subject", models.ErrInvalid)
	}
	if err := models.ValidateStruct(p); err != nil {
		return nil, err
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	u := &models.User{Sub: sub, Email: email, DisplayName: name, PhotoURL: picture}
	if p.DisplayName != "" {
		u.DisplayName = p.DisplayName
	}
	if p.PhotoURL != "" {
		u.PhotoURL = p.PhotoURL
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

func (s *Service) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalid, role)
	}
	return s.repo.UpdateRole(ctx, id, role)
}

func (s *Service) AddCreatedEvent(ctx context.Context, userID, eventID string) error {
	return s.repo.AddCreatedEvent(ctx, userID, eventID)
}

func (s *Service) AddAttendingEvent(ctx context.Context, userID, eventID string) error {
	return s.repo.AddAttendingEvent(ctx, userID, eventID)
}

func (s *Service) SetPhotoURL(ctx context.Context, userID, photoURL string) error {
	return s.repo.SetPhotoURL(ctx, userID, photoURL)
}

// Events resolves the user's created and attending event ids. Ids whose
// events no longer exist are skipped.
func (s *Service) Events(ctx context.Context, userID string) (*UserEvents, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	created, err := s.load(ctx, u.CreatedEvents)
	if err != nil {
		return nil, err
	}
	attending, err := s.load(ctx, u.AttendingEvents)
	if err != nil {
		return nil, err
	}
	return &UserEvents{Created: created, Attending: attending}, nil
}

func (s *Service) load(ctx context.Context, ids []string) ([]*models.Event, error) {
	out := make([]*models.Event, 0, len(ids))
	for _, id := range ids {
		e, err := s.events.Get(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			logger.Debugf("skipping deleted event %s", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
