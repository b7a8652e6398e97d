// Package graph implements the provider-facing ports against a Microsoft
// Graph style API: the OAuth2 token endpoint and the mail/calendar REST
// surface.
package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// defaultExpiresIn covers issuers that omit the lifetime from the token
// response.
const defaultExpiresIn = 3600

// Compile-time interface satisfaction check.
var _ driven.TokenEndpoint = (*TokenEndpoint)(nil)

// TokenEndpoint exchanges refresh secrets at the identity provider's
// token endpoint and classifies every failure as invalid or transient.
type TokenEndpoint struct {
	conf      *oauth2.Config
	revokeURL string
	client    *http.Client
}

// NewTokenEndpoint creates a TokenEndpoint. revokeURL may be empty when
// the issuer offers no revocation endpoint; Revoke then becomes a no-op.
func NewTokenEndpoint(clientID, clientSecret, tokenURL, revokeURL string, scopes []string) *TokenEndpoint {
	return &TokenEndpoint{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		revokeURL: revokeURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Refresh exchanges the refresh secret for a new pair. An issuer that
// rotates refresh secrets returns a new one; an issuer that does not gets
// the supplied secret carried forward so the stored pair stays complete.
func (e *TokenEndpoint) Refresh(ctx context.Context, refreshSecret string) (*model.TokenPair, error) {
	src := e.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshSecret})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}

	// A stale expiry or clock skew can put tok.Expiry in the past. A
	// non-positive lifetime would make the stored pair permanently expired,
	// forcing a refresh on every acquisition, so fall back to the default.
	expiresIn := defaultExpiresIn
	if !tok.Expiry.IsZero() {
		if secs := int(time.Until(tok.Expiry).Seconds()); secs > 0 {
			expiresIn = secs
		}
	}

	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshSecret
	}

	return &model.TokenPair{
		AccessSecret:  tok.AccessToken,
		RefreshSecret: newRefresh,
		ExpiresIn:     expiresIn,
	}, nil
}

// Revoke posts the refresh secret to the revocation endpoint. Callers
// treat failures as advisory, so errors carry detail but no
// classification.
func (e *TokenEndpoint) Revoke(ctx context.Context, refreshSecret string) error {
	if e.revokeURL == "" {
		return nil
	}

	form := url.Values{
		"token":           {refreshSecret},
		"token_type_hint": {"refresh_token"},
		"client_id":       {e.conf.ClientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// classifyRefreshError maps a token endpoint failure onto the two port
// sentinels. Only an explicit issuer rejection of the grant itself is
// invalid; everything else (network, 5xx, rate limits) is transient and
// will be retried on the next acquisition.
func classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %s", driven.ErrRefreshInvalid, retrieveErr.ErrorDescription)
		}
		// Other protocol errors (bad client credentials, malformed scope)
		// indicate operator misconfiguration rather than a dead grant.
		// Keep the credential and surface them as transient so a config
		// fix recovers without re-authentication.
		return fmt.Errorf("%w: %v", driven.ErrRefreshTransient, err)
	}
	return fmt.Errorf("%w: %v", driven.ErrRefreshTransient, err)
}
