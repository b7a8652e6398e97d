package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo is the SQLite implementation of the TokenStore port. It holds
// at most one row per principal; secret columns are opaque ciphertext
// supplied by the caller.
type TokenRepo struct {
	db  *DB
	now func() time.Time
}

// NewTokenRepo creates a TokenRepo backed by the given DB.
func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db, now: time.Now}
}

// Get returns the token record for the principal, or (nil, nil) when no
// record exists.
func (r *TokenRepo) Get(ctx context.Context, principalID string) (*model.TokenRecord, error) {
	const query = `
		SELECT principal_id, encrypted_access, encrypted_refresh, expires_at, created_at, updated_at
		FROM token_records
		WHERE principal_id = ?
	`

	var rec model.TokenRecord
	var expiresAt, createdAt, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, principalID).Scan(
		&rec.PrincipalID, &rec.EncryptedAccess, &rec.EncryptedRefresh,
		&expiresAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token record %q: %w", principalID, err)
	}

	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at for %q: %w", principalID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %q: %w", principalID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for %q: %w", principalID, err)
	}

	return &rec, nil
}

// Upsert atomically inserts or replaces the record for the principal in a
// single statement, so a concurrent reader never observes an old secret
// paired with a new expiry. created_at survives updates; updated_at is
// always rewritten.
func (r *TokenRepo) Upsert(ctx context.Context, principalID, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error {
	const query = `
		INSERT INTO token_records (
			principal_id, encrypted_access, encrypted_refresh, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			encrypted_access = excluded.encrypted_access,
			encrypted_refresh = excluded.encrypted_refresh,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	now := formatTime(r.now())
	_, err := r.db.Writer.ExecContext(ctx, query,
		principalID, encryptedAccess, encryptedRefresh, formatTime(expiresAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert token record %q: %w", principalID, err)
	}
	return nil
}

// Delete removes the record for the principal. Deleting an absent record
// is a no-op, not an error.
func (r *TokenRepo) Delete(ctx context.Context, principalID string) error {
	const query = `DELETE FROM token_records WHERE principal_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, principalID); err != nil {
		return fmt.Errorf("delete token record %q: %w", principalID, err)
	}
	return nil
}
