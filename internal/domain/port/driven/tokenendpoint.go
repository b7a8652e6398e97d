package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// ErrTokenAbsent is returned when no usable credential exists for a
// principal: no record, an irrecoverably corrupt record, or a record
// removed after the issuer rejected its refresh secret. Callers surface
// it as "authentication required" and never retry automatically.
var ErrTokenAbsent = errors.New("no valid credential: authentication required")

// ErrRefreshInvalid is returned by a TokenEndpoint when the issuer
// rejected the refresh secret itself (revoked or expired consent). The
// local credential must be deleted; only re-authentication recovers.
var ErrRefreshInvalid = errors.New("refresh secret rejected by issuer")

// ErrRefreshTransient is returned by a TokenEndpoint for failures expected
// to resolve on their own (network, timeout, rate limit). The existing
// credential is preserved.
var ErrRefreshTransient = errors.New("transient refresh failure")

// TokenEndpoint is the driven port for the identity provider's token
// operations. Implementations classify every Refresh failure as either
// ErrRefreshInvalid or ErrRefreshTransient.
type TokenEndpoint interface {
	// Refresh exchanges a refresh secret for a new access/refresh pair.
	Refresh(ctx context.Context, refreshSecret string) (*model.TokenPair, error)

	// Revoke invalidates the secret at the issuer. Best-effort: a failure
	// here never blocks local deletion of the credential.
	Revoke(ctx context.Context, refreshSecret string) error
}
