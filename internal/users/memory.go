package users

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory UserRepository for tests and local runs.
type MemoryUserRepository struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	bySub map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]*models.User{}, bySub: map[string]string{}}
}

func clone(u *models.User) *models.User {
	c := *u
	c.CreatedEvents = slices.Clone(u.CreatedEvents)
	c.AttendingEvents = slices.Clone(u.AttendingEvents)
	if u.GoogleCalendar != nil {
		cred := *u.GoogleCalendar
		c.GoogleCalendar = &cred
	}
	return &c
}

func (m *MemoryUserRepository) UpsertBySub(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if id, ok := m.bySub[u.Sub]; ok {
		cur := m.byID[id]
		if u.Email != "" {
			cur.Email = u.Email
		}
		if u.DisplayName != "" {
			cur.DisplayName = u.DisplayName
		}
		if u.PhotoURL != "" {
			cur.PhotoURL = u.PhotoURL
		}
		cur.UpdatedAt = now
		return clone(cur), nil
	}
	n := &models.User{
		ID:              uuid.NewString(),
		Sub:             u.Sub,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		PhotoURL:        u.PhotoURL,
		Role:            models.RoleUser,
		CreatedEvents:   []string{},
		AttendingEvents: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.byID[n.ID] = n
	m.bySub[n.Sub] = n.ID
	return clone(n), nil
}

func (m *MemoryUserRepository) GetBySub(_ context.Context, sub string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySub[sub]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(u), nil
}

// mutate runs fn on the stored user under the lock.
func (m *MemoryUserRepository) mutate(id string, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if err := m.mutate(id, func(u *models.User) { u.Role = role }); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *MemoryUserRepository) AddCreatedEvent(_ context.Context, userID, eventID string) error {
	return m.mutate(userID, func(u *models.User) {
		if !slices.Contains(u.CreatedEvents, eventID) {
			u.CreatedEvents = append(u.CreatedEvents, eventID)
		}
	})
}

func (m *MemoryUserRepository) AddAttendingEvent(_ context.Context, userID, eventID string) error {
	return m.mutate(userID, func(u *models.User) {
		if !slices.Contains(u.AttendingEvents, eventID) {
			u.AttendingEvents = append(u.AttendingEvents, eventID)
		}
	})
}

func (m *MemoryUserRepository) SetPhotoURL(_ context.Context, id, photoURL string) error {
	return m.mutate(id, func(u *models.User) { u.PhotoURL = photoURL })
}

func (m *MemoryUserRepository) SetCalendarCredential(_ context.Context, id string, cred models.CalendarCredential) error {
	if cred.RefreshToken == "" {
		return errNoRefreshToken
	}
	return m.mutate(id, func(u *models.User) { u.GoogleCalendar = &cred })
}

func (m *MemoryUserRepository) UpdateCalendarToken(_ context.Context, id, accessToken string, expiry time.Time, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.GoogleCalendar == nil {
		return models.ErrCalendarNotConnected
	}
	u.GoogleCalendar.AccessToken = accessToken
	u.GoogleCalendar.Expiry = expiry
	if refreshToken != "" {
		u.GoogleCalendar.RefreshToken = refreshToken
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryUserRepository) ClearCalendarCredential(_ context.Context, id string) error {
	return m.mutate(id, func(u *models.User) { u.GoogleCalendar = nil })
}
