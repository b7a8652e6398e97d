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

// BriefService writes a short preparation brief for each meeting in the
// upcoming window. Briefs are emitted through the log; delivery to a
// mailbox or chat surface is a separate concern.
type BriefService struct {
	tokens   TokenProvider
	calendar driven.CalendarClient
	writer   driven.BriefWriter
	logger   *slog.Logger
	window   time.Duration
	timeout  time.Duration
}

// NewBriefService creates a BriefService covering the next window of
// calendar events.
func NewBriefService(tokens TokenProvider, calendar driven.CalendarClient, writer driven.BriefWriter, window, timeout time.Duration, logger *slog.Logger) *BriefService {
	return &BriefService{
		tokens:   tokens,
		calendar: calendar,
		writer:   writer,
		logger:   logger,
		window:   window,
		timeout:  timeout,
	}
}

var _ TaskOp = (*BriefService)(nil)

// Run lists events in the upcoming window and writes one brief per event.
// A failed brief is logged and skipped; any skip makes the run partial.
func (s *BriefService) Run(ctx context.Context, principalID string) RunResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	access, err := s.tokens.AccessSecret(ctx, principalID)
	if err != nil {
		if errors.Is(err, driven.ErrTokenAbsent) {
			return RunResult{Outcome: model.RunFailure, Detail: "authentication required"}
		}
		return RunResult{Outcome: model.RunFailure, Detail: fmt.Sprintf("acquire access token: %v", err)}
	}

	events, err := s.calendar.ListUpcoming(ctx, access, s.window)
	if err != nil {
		return RunResult{Outcome: model.RunFailure, Detail: fmt.Sprintf("list events: %v", err)}
	}
	if len(events) == 0 {
		return RunResult{Outcome: model.RunSuccess, Detail: "no upcoming meetings"}
	}

	written := 0
	for _, event := range events {
		brief, err := s.writer.WriteBrief(ctx, event)
		if err != nil {
			s.logger.Error("brief generation failed", "event_id", event.ID, "subject", event.Subject, "error", err)
			continue
		}
		s.logger.Info("meeting brief", "event_id", event.ID, "subject", event.Subject, "start", event.Start, "brief", brief)
		written++
	}

	detail := fmt.Sprintf("briefed %d/%d meetings", written, len(events))
	if written < len(events) {
		return RunResult{Outcome: model.RunPartial, Detail: detail}
	}
	return RunResult{Outcome: model.RunSuccess, Detail: detail}
}
