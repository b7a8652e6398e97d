package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// DigestService summarizes the previous day's unread mail into a single
// digest, emitted through the log.
type DigestService struct {
	tokens   TokenProvider
	mail     driven.MailClient
	writer   driven.BriefWriter
	logger   *slog.Logger
	clock    Clock
	lookback time.Duration
	timeout  time.Duration
}

// NewDigestService creates a DigestService over the given lookback window.
func NewDigestService(tokens TokenProvider, mail driven.MailClient, writer driven.BriefWriter, lookback, timeout time.Duration, logger *slog.Logger) *DigestService {
	return &DigestService{
		tokens:   tokens,
		mail:     mail,
		writer:   writer,
		logger:   logger,
		clock:    SystemClock{},
		lookback: lookback,
		timeout:  timeout,
	}
}

var _ TaskOp = (*DigestService)(nil)

// Run collects unread mail from the lookback window and writes one digest
// across the whole batch.
func (s *DigestService) Run(ctx context.Context, principalID string) RunResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	access, err := s.tokens.AccessSecret(ctx, principalID)
	if err != nil {
		if errors.Is(err, driven.ErrTokenAbsent) {
			return RunResult{Outcome: model.RunFailure, Detail: "authentication required"}
		}
		return RunResult{Outcome: model.RunFailure, Detail: fmt.Sprintf("acquire access token: %v", err)}
	}

	since := s.clock.Now().Add(-s.lookback)
	msgs, err := s.mail.ListUnread(ctx, access, since)
	if err != nil {
		return RunResult{Outcome: model.RunFailure, Detail: fmt.Sprintf("list unread: %v", err)}
	}
	if len(msgs) == 0 {
		return RunResult{Outcome: model.RunSuccess, Detail: "no mail to digest"}
	}

	digest, err := s.writer.WriteDigest(ctx, msgs)
	if err != nil {
		return RunResult{Outcome: model.RunFailure, Detail: fmt.Sprintf("write digest: %v", err)}
	}

	s.logger.Info("daily digest", "messages", len(msgs), "digest", digest)
	return RunResult{Outcome: model.RunSuccess, Detail: fmt.Sprintf("digested %d messages", len(msgs))}
}
