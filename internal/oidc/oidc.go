// Package oidc verifies bearer ID tokens issued by the identity provider.
package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/commevents/backend/pkg/logger"
	"github.com/commevents/backend/pkg/middleware"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Settings selects and configures the verifier.
type Settings struct {
	Issuer        string
	ClientID      string
	AllowInsecure bool
}

// Verifier checks signature, issuer, audience and expiry of ID tokens.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer's keys and returns a verifier for clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// newStaticVerifier verifies against a fixed key set, skipping discovery.
func newStaticVerifier(issuer, clientID string, keys oidc.KeySet) *Verifier {
	return &Verifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID})}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// New picks the verifier for s. Without an issuer the insecure verifier is
// returned only when explicitly allowed.
func New(ctx context.Context, s Settings) (middleware.Verifier, error) {
	if s.Issuer != "" {
		v, err := NewVerifier(ctx, s.Issuer, s.ClientID)
		if err == nil {
			return v, nil
		}
		if !s.AllowInsecure {
			return nil, err
		}
		logger.Warnf("OIDC discovery failed (%v); falling back to insecure verifier", err)
	} else if !s.AllowInsecure {
		return nil, errors.New("OIDC_ISSUER is required unless OIDC_ALLOW_INSECURE is set")
	}
	logger.Warnf("token signatures are NOT verified; do not run this configuration in production")
	return NewInsecureVerifier(), nil
}
