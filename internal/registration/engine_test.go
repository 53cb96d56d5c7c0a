package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/commevents/backend/internal/events"
	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attendingSpy struct {
	mu   sync.Mutex
	seen map[string][]string
	err  error
}

func newAttendingSpy() *attendingSpy { return &attendingSpy{seen: map[string][]string{}} }

func (s *attendingSpy) AddAttendingEvent(_ context.Context, userID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, id := range s.seen[userID] {
		if id == eventID {
			return nil
		}
	}
	s.seen[userID] = append(s.seen[userID], eventID)
	return nil
}

func (s *attendingSpy) events(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[userID]
}

func newEvent(t *testing.T, repo *events.MemoryRepository, capacity *int) *models.Event {
	t.Helper()
	e, err := repo.Create(context.Background(), &models.Event{Title: "Book club", Organizer: "org", Capacity: capacity})
	require.NoError(t, err)
	return e
}

func intPtr(v int) *int { return &v }

func TestAdmit(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	e := &models.Event{Attendees: []string{"u1"}, Capacity: intPtr(2)}
	require.NoError(t, admit(e, "u2", now))
	assert.Equal(t, []string{"u1", "u2"}, e.Attendees)
	assert.Equal(t, now, e.UpdatedAt)

	e = &models.Event{Attendees: []string{"u1"}}
	require.ErrorIs(t, admit(e, "u1", now), models.ErrAlreadyRegistered)
	assert.Equal(t, []string{"u1"}, e.Attendees)
	assert.True(t, e.UpdatedAt.IsZero())

	e = &models.Event{Attendees: []string{"u1"}, Capacity: intPtr(1)}
	require.ErrorIs(t, admit(e, "u2", now), models.ErrCapacityExceeded)
	assert.Equal(t, []string{"u1"}, e.Attendees)

	// already registered wins over a full event
	require.ErrorIs(t, admit(e, "u1", now), models.ErrAlreadyRegistered)

	e = &models.Event{Attendees: []string{}}
	for i := 0; i < 50; i++ {
		require.NoError(t, admit(e, fmt.Sprintf("u%d", i), now))
	}
	assert.Len(t, e.Attendees, 50)
}

func TestRegisterCapacityScenario(t *testing.T) {
	repo := events.NewMemoryRepository()
	spy := newAttendingSpy()
	eng := NewEngine(repo, spy)
	ctx := context.Background()
	e1 := newEvent(t, repo, intPtr(2))

	_, err := eng.Register(ctx, e1.ID, "U1")
	require.NoError(t, err)
	_, err = eng.Register(ctx, e1.ID, "U1")
	require.ErrorIs(t, err, models.ErrAlreadyRegistered)
	require.ErrorIs(t, err, models.ErrConflict)

	got, err := eng.Register(ctx, e1.ID, "U2")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, got.Attendees)

	_, err = eng.Register(ctx, e1.ID, "U3")
	require.ErrorIs(t, err, models.ErrCapacityExceeded)
	require.ErrorIs(t, err, models.ErrConflict)

	stored, err := repo.Get(ctx, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, stored.Attendees)
	assert.Equal(t, []string{e1.ID}, spy.events("U1"))
	assert.Equal(t, []string{e1.ID}, spy.events("U2"))
	assert.Empty(t, spy.events("U3"))
}

func TestRegisterUnknownEvent(t *testing.T) {
	repo := events.NewMemoryRepository()
	spy := newAttendingSpy()
	eng := NewEngine(repo, spy)

	_, err := eng.Register(context.Background(), "missing", "U1")
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, spy.events("U1"))
}

func TestRegisterUnlimitedCapacity(t *testing.T) {
	repo := events.NewMemoryRepository()
	eng := NewEngine(repo, nil)
	e := newEvent(t, repo, nil)

	for i := 0; i < 25; i++ {
		_, err := eng.Register(context.Background(), e.ID, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
	}
	stored, err := repo.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Attendees, 25)
}

func TestRegisterConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity, extra = 5, 7
	repo := events.NewMemoryRepository()
	eng := NewEngine(repo, newAttendingSpy())
	e := newEvent(t, repo, intPtr(capacity))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Register(context.Background(), e.ID, fmt.Sprintf("user-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, models.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, ok)
	assert.Equal(t, extra, full)
	stored, err := repo.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Attendees, capacity)
}

func TestRegisterSucceedsWhenAttendingUpdateFails(t *testing.T) {
	repo := events.NewMemoryRepository()
	spy := newAttendingSpy()
	spy.err = errors.New("users collection unavailable")
	eng := NewEngine(repo, spy)
	e := newEvent(t, repo, intPtr(3))

	before := testutil.ToFloat64(metrics.AttendingSyncFailures)
	got, err := eng.Register(context.Background(), e.ID, "U1")
	require.NoError(t, err)
	assert.True(t, got.HasAttendee("U1"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AttendingSyncFailures))
}

func TestRegisterCountsOutcomes(t *testing.T) {
	repo := events.NewMemoryRepository()
	eng := NewEngine(repo, nil)
	e := newEvent(t, repo, intPtr(1))

	success := testutil.ToFloat64(metrics.Registrations.WithLabelValues("success"))
	full := testutil.ToFloat64(metrics.Registrations.WithLabelValues("capacity_exceeded"))

	_, _ = eng.Register(context.Background(), e.ID, "U1")
	_, _ = eng.Register(context.Background(), e.ID, "U2")

	assert.Equal(t, success+1, testutil.ToFloat64(metrics.Registrations.WithLabelValues("success")))
	assert.Equal(t, full+1, testutil.ToFloat64(metrics.Registrations.WithLabelValues("capacity_exceeded")))
}
