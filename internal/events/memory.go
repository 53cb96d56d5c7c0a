package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by unit tests.
// A single mutex serializes Transact, which gives the same isolation the
// Mongo transaction provides for a single event document.
type MemoryRepository struct {
	mu    sync.Mutex
	store map[string]*models.Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*models.Event)}
}

func (m *MemoryRepository) Create(_ context.Context, e *models.Event) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	m.store[e.ID] = e.Clone()
	return e, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return e.Clone(), nil
}

func (m *MemoryRepository) List(_ context.Context) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Event, 0, len(m.store))
	for _, e := range m.store {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *MemoryRepository) Transact(_ context.Context, id string, fn MutateFunc) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	work := e.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	m.store[id] = work.Clone()
	return work, nil
}

func (m *MemoryRepository) DeleteOwned(_ context.Context, id, organizer string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok || e.Organizer != organizer {
		return false, nil
	}
	delete(m.store, id)
	return true, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepository) SetCalendarEventID(_ context.Context, id, calendarEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return models.ErrNotFound
	}
	e.GoogleCalendarEventID = calendarEventID
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Len returns the number of stored events.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}
