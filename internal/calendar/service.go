package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
)

const (
	defaultStateTTL  = 10 * time.Minute
	upcomingMaxItems = 10
)

// OAuth is the authorization code flow plus refresh.
type OAuth interface {
	Refresher
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Provider is the subset of the Calendar API used by the service.
type Provider interface {
	InsertEvent(ctx context.Context, accessToken, calendarID string, ev *gcal.Event) (string, error)
	ListEvents(ctx context.Context, accessToken, calendarID string, from time.Time, max int64) ([]*gcal.Event, error)
}

// UserStore reads users and maintains their calendar credential.
type UserStore interface {
	CredentialStore
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetCalendarCredential(ctx context.Context, id string, cred models.CalendarCredential) error
	ClearCalendarCredential(ctx context.Context, id string) error
}

// EventStore reads events and records their calendar counterpart.
type EventStore interface {
	Get(ctx context.Context, id string) (*models.Event, error)
	SetCalendarEventID(ctx context.Context, id, calendarEventID string) error
}

// Entry is an upcoming item from the user's calendar.
type Entry struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Location string `json:"location,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`
	HTMLLink string `json:"htmlLink,omitempty"`
}

type Options struct {
	CalendarID string
	StateTTL   time.Duration
}

// Service implements Google Calendar linking and sync for users.
type Service struct {
	oauth      OAuth
	provider   Provider
	users      UserStore
	events     EventStore
	states     StateStore
	lifecycle  *Lifecycle
	calendarID string
	stateTTL   time.Duration
	now        func() time.Time
}

func NewService(o OAuth, p Provider, users UserStore, events EventStore, states StateStore, opts Options) *Service {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = defaultStateTTL
	}
	return &Service{
		oauth:      o,
		provider:   p,
		users:      users,
		events:     events,
		states:     states,
		lifecycle:  NewLifecycle(o, users),
		calendarID: opts.CalendarID,
		stateTTL:   opts.StateTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AuthURL starts the consent flow for userID.
func (s *Service) AuthURL(ctx context.Context, userID string) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := s.states.Save(ctx, state, userID, s.stateTTL); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// Connect completes the consent flow and stores the credential on the user.
func (s *Service) Connect(ctx context.Context, userID, code, state string) error {
	if code == "" || state == "" {
		return fmt.Errorf("%w: code and state are required", models.ErrInvalid)
	}
	owner, err := s.states.Consume(ctx, state)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: unknown or expired state", models.ErrInvalid)
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return fmt.Errorf("%w: state was issued to another user", models.ErrForbidden)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: authorization code rejected", models.ErrInvalid)
		}
		return fmt.Errorf("%w: code exchange: %v", models.ErrTransient, err)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		// Google omits the refresh token on repeat consent; keep the stored one
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !u.CalendarConnected() {
			return fmt.Errorf("%w: provider issued no refresh token", models.ErrInvalid)
		}
		refresh = u.GoogleCalendar.RefreshToken
	}
	expiry := tok.Expiry.UTC()
	if tok.Expiry.IsZero() {
		expiry = s.now().Add(defaultTokenLifetime)
	}
	cred := models.CalendarCredential{AccessToken: tok.AccessToken, RefreshToken: refresh, Expiry: expiry}
	if err := s.users.SetCalendarCredential(ctx, userID, cred); err != nil {
		return err
	}
	logger.With("userId", userID).Info("google calendar connected")
	return nil
}

// credential loads the user's credential and brings it to the FRESH state.
func (s *Service) credential(ctx context.Context, userID string) (*models.CalendarCredential, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.CalendarConnected() {
		return nil, models.ErrCalendarNotConnected
	}
	return s.lifecycle.WithFreshToken(ctx, u.GoogleCalendar, userID)
}

// AddEvent copies the event into the user's calendar and returns the calendar event id.
func (s *Service) AddEvent(ctx context.Context, userID, eventID string) (string, error) {
	e, err := s.events.Get(ctx, eventID)
	if err != nil {
		return "", err
	}
	cred, err := s.credential(ctx, userID)
	if err != nil {
		return "", err
	}
	id, err := s.provider.InsertEvent(ctx, cred.AccessToken, s.calendarID, toCalendarEvent(e))
	if err != nil {
		return "", err
	}
	if err := s.events.SetCalendarEventID(ctx, eventID, id); err != nil {
		logger.With("eventId", eventID, "calendarEventId", id).Warn("failed to record calendar event id", "error", err)
	}
	return id, nil
}

// ListEvents returns the next upcoming entries of the user's calendar.
func (s *Service) ListEvents(ctx context.Context, userID string) ([]Entry, error) {
	cred, err := s.credential(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.provider.ListEvents(ctx, cred.AccessToken, s.calendarID, s.now(), upcomingMaxItems)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, Entry{
			ID:       it.Id,
			Summary:  it.Summary,
			Location: it.Location,
			Start:    eventTime(it.Start),
			End:      eventTime(it.End),
			HTMLLink: it.HtmlLink,
		})
	}
	return out, nil
}

// Disconnect drops the stored credential.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.users.ClearCalendarCredential(ctx, userID)
}

func toCalendarEvent(e *models.Event) *gcal.Event {
	return &gcal.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		Start:       &gcal.EventDateTime{DateTime: e.StartDate.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: e.EndDate.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
}

// eventTime prefers the timed value and falls back to the all-day date.
func eventTime(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
