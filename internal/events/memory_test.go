package events

import (
	"context"
	"errors"
	"testing"

	"github.com/commevents/backend/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	e, err := r.Create(ctx, &models.Event{Title: "t", Organizer: "org"})
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	require.NotNil(t, e.Attendees)

	got, err := r.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "t", got.Title)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, r.SetCalendarEventID(ctx, e.ID, "gcal-1"))
	got, err = r.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "gcal-1", got.GoogleCalendarEventID)

	ok, err := r.DeleteOwned(ctx, e.ID, "someone-else")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = r.DeleteOwned(ctx, e.ID, "org")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = r.Get(ctx, e.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryRepositoryTransactAbortLeavesEventUnchanged(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	e, err := r.Create(ctx, &models.Event{Title: "t"})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = r.Transact(ctx, e.ID, func(ev *models.Event) error {
		ev.Attendees = append(ev.Attendees, "u1")
		ev.Title = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := r.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Empty(t, got.Attendees)
	require.Equal(t, "t", got.Title)

	_, err = r.Transact(ctx, "missing", func(*models.Event) error { return nil })
	require.ErrorIs(t, err, models.ErrNotFound)
}
