// Package driven defines the outbound port interfaces implemented by
// adapter packages. Application services depend only on these interfaces.
package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// TokenStore is the driven port for persisted credential records, one per
// principal. Secret fields are opaque ciphertext at this boundary; the
// cipher lives with the caller, not the store.
type TokenStore interface {
	// Get returns the record for the principal, or (nil, nil) when no
	// record exists.
	Get(ctx context.Context, principalID string) (*model.TokenRecord, error)

	// Upsert atomically inserts or replaces the record for the principal.
	// A reader never observes a half-written record: both ciphertexts and
	// the expiry are replaced in a single statement. created_at is
	// preserved on update; updated_at is always set.
	Upsert(ctx context.Context, principalID, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error

	// Delete removes the record for the principal. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, principalID string) error
}
