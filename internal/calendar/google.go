package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/commevents/backend/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// OAuthSettings configures the Google OAuth client.
type OAuthSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides google.Endpoint, mainly for tests.
	Endpoint oauth2.Endpoint
	Timeout  time.Duration
}

// GoogleOAuth performs the authorization code flow and token refreshes
// against Google's OAuth endpoints.
type GoogleOAuth struct {
	cfg     *oauth2.Config
	timeout time.Duration
}

func NewGoogleOAuth(s OAuthSettings) *GoogleOAuth {
	ep := s.Endpoint
	if ep.TokenURL == "" {
		ep = google.Endpoint
	}
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			RedirectURL:  s.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{gcal.CalendarScope},
		},
		timeout: s.Timeout,
	}
}

// AuthCodeURL asks for offline access with forced consent so Google issues a refresh token.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.cfg.Exchange(ctx, code)
}

func (g *GoogleOAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// GoogleProvider calls the Calendar v3 API with an access token supplied per
// call. It never refreshes tokens itself.
type GoogleProvider struct {
	endpoint string
	timeout  time.Duration
}

// NewGoogleProvider creates a provider. An empty endpoint uses the public API.
func NewGoogleProvider(endpoint string, timeout time.Duration) *GoogleProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleProvider{endpoint: endpoint, timeout: timeout}
}

func (p *GoogleProvider) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	return gcal.NewService(ctx, opts...)
}

func (p *GoogleProvider) InsertEvent(ctx context.Context, accessToken, calendarID string, ev *gcal.Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	svc, err := p.service(ctx, accessToken)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", classifyAPIError(err)
	}
	return created.Id, nil
}

func (p *GoogleProvider) ListEvents(ctx context.Context, accessToken, calendarID string, from time.Time, max int64) ([]*gcal.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	svc, err := p.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	res, err := svc.Events.List(calendarID).
		TimeMin(from.UTC().Format(time.RFC3339)).
		MaxResults(max).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	return res.Items, nil
}

func classifyAPIError(err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch {
		case ge.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", models.ErrCalendarAuthExpired, err)
		case ge.Code == http.StatusNotFound:
			return fmt.Errorf("%w: calendar: %v", models.ErrNotFound, err)
		case ge.Code == http.StatusTooManyRequests || ge.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: calendar: %v", models.ErrTransient, err)
		}
		return fmt.Errorf("calendar api: %w", err)
	}
	return fmt.Errorf("%w: calendar: %v", models.ErrTransient, err)
}
