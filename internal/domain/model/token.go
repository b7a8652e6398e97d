// Package model contains the domain entities shared across ports,
// adapters, and application services.
package model

import "time"

// TokenRecord is the persisted credential material for one principal.
// Secret values are stored as opaque ciphertext; plaintext never touches
// the database.
type TokenRecord struct {
	PrincipalID      string
	EncryptedAccess  string
	EncryptedRefresh string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the access secret is past its issuer-reported
// lifetime at the given instant.
func (r TokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// NearExpiry reports whether the access secret is inside the refresh
// buffer window, i.e. a proactive refresh should be attempted.
func (r TokenRecord) NearExpiry(now time.Time, buffer time.Duration) bool {
	return !now.Before(r.ExpiresAt.Add(-buffer))
}

// TokenPair is a freshly issued access/refresh secret pair as reported by
// the identity provider's token endpoint.
type TokenPair struct {
	AccessSecret  string
	RefreshSecret string
	ExpiresIn     int // seconds until the access secret expires
}
