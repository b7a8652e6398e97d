package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService is the recurring self-check: database reachability,
// credential presence, and a cheap authenticated call against the mail
// provider.
type HealthService struct {
	tokens  TokenProvider
	mail    driven.MailClient
	db      Pinger
	logger  *slog.Logger
	clock   Clock
	timeout time.Duration
}

// NewHealthService creates a HealthService.
func NewHealthService(tokens TokenProvider, mail driven.MailClient, db Pinger, timeout time.Duration, logger *slog.Logger) *HealthService {
	return &HealthService{
		tokens:  tokens,
		mail:    mail,
		db:      db,
		logger:  logger,
		clock:   SystemClock{},
		timeout: timeout,
	}
}

var _ TaskOp = (*HealthService)(nil)

// Run checks each dependency in turn. A missing credential or unreachable
// database is a failure; a reachable system with a failing provider call
// is partial.
func (s *HealthService) Run(ctx context.Context, principalID string) RunResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var problems []string
	providerDown := false

	if err := s.db.Ping(ctx); err != nil {
		problems = append(problems, fmt.Sprintf("db: %v", err))
	}

	access, err := s.tokens.AccessSecret(ctx, principalID)
	switch {
	case errors.Is(err, driven.ErrTokenAbsent):
		problems = append(problems, "authentication required")
	case err != nil:
		problems = append(problems, fmt.Sprintf("token: %v", err))
	default:
		// An empty-window list is the cheapest authenticated provider call.
		if _, perr := s.mail.ListUnread(ctx, access, s.clock.Now()); perr != nil {
			s.logger.Warn("provider check failed", "error", perr)
			providerDown = true
			problems = append(problems, fmt.Sprintf("provider unreachable: %v", perr))
		}
	}

	switch {
	case len(problems) == 0:
		return RunResult{Outcome: model.RunSuccess, Detail: "all checks passed"}
	case providerDown && len(problems) == 1:
		return RunResult{Outcome: model.RunPartial, Detail: problems[0]}
	default:
		return RunResult{Outcome: model.RunFailure, Detail: strings.Join(problems, "; ")}
	}
}
