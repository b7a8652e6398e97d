package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/aide/internal/cipher"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// DefaultRefreshBuffer is the lead time before actual expiry at which a
// proactive refresh is attempted.
const DefaultRefreshBuffer = 5 * time.Minute

// TokenProvider is the narrow view of the token lifecycle manager that
// task operations depend on.
type TokenProvider interface {
	// AccessSecret returns a currently-valid access secret for the
	// principal, refreshing if needed. Returns driven.ErrTokenAbsent when
	// the principal must re-authenticate.
	AccessSecret(ctx context.Context, principalID string) (string, error)
}

// AuthStatus describes whether a principal holds a usable credential.
type AuthStatus struct {
	PrincipalID string
	Connected   bool
	ExpiresAt   time.Time
}

// TokenService is the sole path by which any component obtains a usable
// access secret. It owns encryption of secrets at rest, the refresh
// buffer, and serialization of refresh attempts per principal.
type TokenService struct {
	store    driven.TokenStore
	endpoint driven.TokenEndpoint
	box      cipher.Cipher
	logger   *slog.Logger

	clock  Clock
	buffer time.Duration

	// Collapses concurrent refresh attempts per principal: a caller that
	// arrives while a refresh is in flight waits for that refresh's
	// result instead of issuing its own.
	refreshes singleflight.Group
}

// NewTokenService creates a TokenService with the default refresh buffer
// and system clock.
func NewTokenService(store driven.TokenStore, endpoint driven.TokenEndpoint, box cipher.Cipher, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:    store,
		endpoint: endpoint,
		box:      box,
		logger:   logger,
		clock:    SystemClock{},
		buffer:   DefaultRefreshBuffer,
	}
}

// SetBuffer overrides the refresh buffer. Call before first use.
func (s *TokenService) SetBuffer(buffer time.Duration) {
	s.buffer = buffer
}

// Store encrypts both secrets and persists them atomically. ExpiresAt is
// computed from the issuer-reported lifetime, never speculatively.
func (s *TokenService) Store(ctx context.Context, principalID, accessSecret, refreshSecret string, expiresIn int) error {
	encAccess, err := s.box.Encrypt([]byte(accessSecret))
	if err != nil {
		return fmt.Errorf("encrypt access secret: %w", err)
	}
	encRefresh, err := s.box.Encrypt([]byte(refreshSecret))
	if err != nil {
		return fmt.Errorf("encrypt refresh secret: %w", err)
	}

	expiresAt := s.clock.Now().Add(time.Duration(expiresIn) * time.Second)
	if err := s.store.Upsert(ctx, principalID, encAccess, encRefresh, expiresAt); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.logger.Info("credential stored", "principal_id", principalID, "expires_at", expiresAt)
	return nil
}

// AccessSecret returns a currently-valid access secret for the principal.
// A secret inside the refresh buffer window triggers a refresh first; a
// secret past its expiry is never returned.
func (s *TokenService) AccessSecret(ctx context.Context, principalID string) (string, error) {
	rec, err := s.store.Get(ctx, principalID)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if rec == nil {
		return "", driven.ErrTokenAbsent
	}

	now := s.clock.Now()
	access, decErr := s.box.Decrypt(rec.EncryptedAccess)
	if decErr != nil {
		// Logged distinctly: an undecryptable secret usually means key
		// misconfiguration, not a normal expiry.
		s.logger.Error("access secret undecryptable, attempting refresh",
			"principal_id", principalID, "error", decErr)
	}

	if decErr == nil && !rec.NearExpiry(now, s.buffer) {
		return string(access), nil
	}

	return s.refreshCollapsed(ctx, principalID)
}

// Revoke makes a best-effort revocation call to the issuer, then deletes
// the local record unconditionally. Calling it for a principal with no
// credential is not an error.
func (s *TokenService) Revoke(ctx context.Context, principalID string) error {
	rec, err := s.store.Get(ctx, principalID)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	if rec != nil {
		if refresh, decErr := s.box.Decrypt(rec.EncryptedRefresh); decErr == nil {
			if revErr := s.endpoint.Revoke(ctx, string(refresh)); revErr != nil {
				s.logger.Warn("remote revocation failed, deleting local credential anyway",
					"principal_id", principalID, "error", revErr)
			}
		} else {
			s.logger.Warn("refresh secret undecryptable, skipping remote revocation",
				"principal_id", principalID, "error", decErr)
		}
	}

	if err := s.store.Delete(ctx, principalID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	s.logger.Info("credential revoked", "principal_id", principalID)
	return nil
}

// Status reports whether the principal holds a usable credential, without
// triggering a refresh.
func (s *TokenService) Status(ctx context.Context, principalID string) (*AuthStatus, error) {
	rec, err := s.store.Get(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if rec == nil {
		return &AuthStatus{PrincipalID: principalID}, nil
	}
	return &AuthStatus{
		PrincipalID: principalID,
		Connected:   !rec.Expired(s.clock.Now()),
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// refreshCollapsed funnels concurrent refresh attempts for one principal
// through a single flight.
func (s *TokenService) refreshCollapsed(ctx context.Context, principalID string) (string, error) {
	v, err, _ := s.refreshes.Do(principalID, func() (any, error) {
		return s.refresh(ctx, principalID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh exchanges the stored refresh secret for a new pair. It reloads
// the record first: a caller that waited behind another refresh finds the
// fresh secret already stored and returns it without a second issuer call.
func (s *TokenService) refresh(ctx context.Context, principalID string) (string, error) {
	rec, err := s.store.Get(ctx, principalID)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if rec == nil {
		return "", driven.ErrTokenAbsent
	}

	now := s.clock.Now()
	access, accessErr := s.box.Decrypt(rec.EncryptedAccess)
	if accessErr == nil && !rec.NearExpiry(now, s.buffer) {
		return string(access), nil
	}

	refreshSecret, decErr := s.box.Decrypt(rec.EncryptedRefresh)
	if decErr != nil {
		// Without a usable refresh secret the record can never recover;
		// treat it like an issuer rejection and force re-authentication.
		s.logger.Error("refresh secret undecryptable, deleting credential",
			"principal_id", principalID, "error", decErr)
		if delErr := s.store.Delete(ctx, principalID); delErr != nil {
			s.logger.Error("delete corrupt credential failed", "principal_id", principalID, "error", delErr)
		}
		return "", driven.ErrTokenAbsent
	}

	pair, err := s.endpoint.Refresh(ctx, string(refreshSecret))
	switch {
	case errors.Is(err, driven.ErrRefreshInvalid):
		s.logger.Warn("refresh secret rejected by issuer, deleting credential", "principal_id", principalID)
		if delErr := s.store.Delete(ctx, principalID); delErr != nil {
			s.logger.Error("delete rejected credential failed", "principal_id", principalID, "error", delErr)
		}
		return "", driven.ErrTokenAbsent

	case err != nil:
		// Transient failure: the old secret remains usable until its real
		// expiry; the next call retries naturally.
		if accessErr == nil && !rec.Expired(now) {
			s.logger.Warn("transient refresh failure, serving unexpired access secret",
				"principal_id", principalID, "error", err)
			return string(access), nil
		}
		s.logger.Warn("transient refresh failure with expired access secret",
			"principal_id", principalID, "error", err)
		return "", driven.ErrTokenAbsent
	}

	if err := s.Store(ctx, principalID, pair.AccessSecret, pair.RefreshSecret, pair.ExpiresIn); err != nil {
		return "", err
	}

	s.logger.Info("credential refreshed", "principal_id", principalID, "expires_in", pair.ExpiresIn)
	return pair.AccessSecret, nil
}
