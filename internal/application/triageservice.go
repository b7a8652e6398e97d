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

// TriageService classifies recent unread mail and acts on each verdict:
// drafting a reply when one is needed and filing the message when the
// classifier names a destination folder.
type TriageService struct {
	tokens     TokenProvider
	mail       driven.MailClient
	classifier driven.Classifier
	logger     *slog.Logger
	clock      Clock
	lookback   time.Duration
	timeout    time.Duration
}

// NewTriageService creates a TriageService with the given lookback window
// and per-run timeout.
func NewTriageService(tokens TokenProvider, mail driven.MailClient, classifier driven.Classifier, lookback, timeout time.Duration, logger *slog.Logger) *TriageService {
	return &TriageService{
		tokens:     tokens,
		mail:       mail,
		classifier: classifier,
		logger:     logger,
		clock:      SystemClock{},
		lookback:   lookback,
		timeout:    timeout,
	}
}

var _ TaskOp = (*TriageService)(nil)

// Run fetches unread mail from the lookback window and triages each
// message. A classifier error stops the pass and reports partial with the
// counts so far; a failed draft or move is logged but does not stop the
// remaining messages.
func (s *TriageService) Run(ctx context.Context, principalID string) RunResult {
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
		return RunResult{Outcome: model.RunSuccess, Detail: "no new mail"}
	}

	var processed, drafted, filed int
	sideEffectErrs := 0
	for _, msg := range msgs {
		verdict, err := s.classifier.Classify(ctx, msg)
		if err != nil {
			s.logger.Error("classification failed", "message_id", msg.ID, "error", err)
			return RunResult{
				Outcome: model.RunPartial,
				Detail:  fmt.Sprintf("processed %d/%d (drafted %d, filed %d): classify: %v", processed, len(msgs), drafted, filed, err),
			}
		}

		if verdict.NeedsReply {
			body := fmt.Sprintf("Re: %s", msg.Subject)
			if err := s.mail.CreateReplyDraft(ctx, access, msg.ID, body); err != nil {
				s.logger.Error("draft creation failed", "message_id", msg.ID, "error", err)
				sideEffectErrs++
			} else {
				drafted++
			}
		}
		if verdict.Folder != "" {
			if err := s.mail.MoveToFolder(ctx, access, msg.ID, verdict.Folder); err != nil {
				s.logger.Error("move failed", "message_id", msg.ID, "folder", verdict.Folder, "error", err)
				sideEffectErrs++
			} else {
				filed++
			}
		}
		processed++
	}

	detail := fmt.Sprintf("processed %d/%d (drafted %d, filed %d)", processed, len(msgs), drafted, filed)
	if sideEffectErrs > 0 {
		return RunResult{Outcome: model.RunPartial, Detail: fmt.Sprintf("%s, %d actions failed", detail, sideEffectErrs)}
	}
	return RunResult{Outcome: model.RunSuccess, Detail: detail}
}
