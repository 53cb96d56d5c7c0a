// Package calendar links user accounts to Google Calendar and keeps their
// access tokens fresh.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"github.com/commevents/backend/pkg/metrics"
	"golang.org/x/oauth2"
)

// defaultTokenLifetime is used when the provider omits expires_in.
const defaultTokenLifetime = time.Hour

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// CredentialStore persists a refreshed access token on a user.
type CredentialStore interface {
	UpdateCalendarToken(ctx context.Context, userID, accessToken string, expiry time.Time, refreshToken string) error
}

// Lifecycle refreshes expired calendar credentials before use.
// A credential is FRESH while now < expiry and EXPIRED otherwise; the only
// transition is EXPIRED -> FRESH through a refresh.
type Lifecycle struct {
	refresher Refresher
	store     CredentialStore
	now       func() time.Time
}

func NewLifecycle(r Refresher, store CredentialStore) *Lifecycle {
	return &Lifecycle{refresher: r, store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithFreshToken returns a credential whose access token is valid now.
// A fresh credential is returned unchanged. An expired one is refreshed and,
// when userID is set, the new access token and expiry are persisted.
func (l *Lifecycle) WithFreshToken(ctx context.Context, cred *models.CalendarCredential, userID string) (*models.CalendarCredential, error) {
	if cred == nil {
		return nil, models.ErrCalendarNotConnected
	}
	now := l.now()
	if !cred.Expired(now) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		metrics.TokenRefreshes.WithLabelValues("auth_expired").Inc()
		return nil, fmt.Errorf("%w: no refresh token stored", models.ErrCalendarAuthExpired)
	}

	tok, err := l.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		err = classifyRefreshError(err)
		if errors.Is(err, models.ErrCalendarAuthExpired) {
			metrics.TokenRefreshes.WithLabelValues("auth_expired").Inc()
		} else {
			metrics.TokenRefreshes.WithLabelValues("transient").Inc()
		}
		return nil, err
	}
	if tok.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("auth_expired").Inc()
		return nil, fmt.Errorf("%w: provider returned no access token", models.ErrCalendarAuthExpired)
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()

	fresh := &models.CalendarCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       tok.Expiry.UTC(),
	}
	if tok.Expiry.IsZero() {
		fresh.Expiry = now.Add(defaultTokenLifetime)
	}
	rotated := ""
	if tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken {
		fresh.RefreshToken = tok.RefreshToken
		rotated = tok.RefreshToken
	}

	if userID != "" && l.store != nil {
		if err := l.store.UpdateCalendarToken(ctx, userID, fresh.AccessToken, fresh.Expiry, rotated); err != nil {
			// the token is still usable for this call; the next call refreshes again
			logger.With("userId", userID).Warn("failed to persist refreshed calendar token", "error", err)
		}
	}
	return fresh, nil
}

// classifyRefreshError maps a token endpoint failure onto the error taxonomy.
// Rejections of the refresh token become ErrCalendarAuthExpired, anything the
// caller may retry becomes ErrTransient.
func classifyRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: token endpoint: %v", models.ErrTransient, err)
		}
		return fmt.Errorf("%w: %v", models.ErrCalendarAuthExpired, err)
	}
	// network failures, timeouts and malformed responses
	return fmt.Errorf("%w: token refresh: %v", models.ErrTransient, err)
}
