package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshSuccess(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", srv.URL, "", nil)
	pair, err := endpoint.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "new-access", pair.AccessSecret)
	assert.Equal(t, "new-refresh", pair.RefreshSecret)
	assert.InDelta(t, 3600, pair.ExpiresIn, 5)
}

func TestRefreshKeepsSecretWhenIssuerDoesNotRotate(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", srv.URL, "", nil)
	pair, err := endpoint.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "old-refresh", pair.RefreshSecret)
}

func TestRefreshStaleExpiryFallsBackToDefaultLifetime(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    -10,
		})
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", srv.URL, "", nil)
	pair, err := endpoint.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	// An issuer reporting an already-past expiry must not produce a pair
	// that is expired on arrival.
	assert.Equal(t, defaultExpiresIn, pair.ExpiresIn)
}

func TestRefreshInvalidGrant(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", srv.URL, "", nil)
	_, err := endpoint.Refresh(context.Background(), "dead-refresh")
	require.ErrorIs(t, err, driven.ErrRefreshInvalid)
}

func TestRefreshServerErrorIsTransient(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", srv.URL, "", nil)
	_, err := endpoint.Refresh(context.Background(), "some-refresh")
	require.ErrorIs(t, err, driven.ErrRefreshTransient)
}

func TestRefreshNetworkErrorIsTransient(t *testing.T) {
	// A closed server gives a connection error rather than a protocol one.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	endpoint := NewTokenEndpoint("client-id", "client-secret", srv.URL, "", nil)
	_, err := endpoint.Refresh(context.Background(), "some-refresh")
	require.ErrorIs(t, err, driven.ErrRefreshTransient)
}

func TestRevokeWithoutEndpointIsNoop(t *testing.T) {
	endpoint := NewTokenEndpoint("client-id", "client-secret", "http://unused", "", nil)
	require.NoError(t, endpoint.Revoke(context.Background(), "secret"))
}

func TestRevokePostsForm(t *testing.T) {
	var gotToken, gotHint string
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotToken = r.Form.Get("token")
		gotHint = r.Form.Get("token_type_hint")
		w.WriteHeader(http.StatusOK)
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", "http://unused", srv.URL, nil)
	require.NoError(t, endpoint.Revoke(context.Background(), "the-secret"))

	assert.Equal(t, "the-secret", gotToken)
	assert.Equal(t, "refresh_token", gotHint)
}

func TestRevokeReportsFailure(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	endpoint := NewTokenEndpoint("client-id", "client-secret", "http://unused", srv.URL, nil)
	err := endpoint.Revoke(context.Background(), "the-secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
