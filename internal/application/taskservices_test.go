package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

const testTimeout = 5 * time.Second

func TestTriageRequiresAuthentication(t *testing.T) {
	svc := NewTriageService(stubTokens{err: driven.ErrTokenAbsent}, newFakeMail(), &fakeClassifier{}, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunFailure, result.Outcome)
	assert.Equal(t, "authentication required", result.Detail)
}

func TestTriageNoNewMail(t *testing.T) {
	svc := NewTriageService(stubTokens{secret: "tok"}, newFakeMail(), &fakeClassifier{}, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "no new mail", result.Detail)
}

func TestTriageListFailure(t *testing.T) {
	mail := newFakeMail()
	mail.listErr = errors.New("503 from provider")
	svc := NewTriageService(stubTokens{secret: "tok"}, mail, &fakeClassifier{}, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunFailure, result.Outcome)
	assert.Contains(t, result.Detail, "list unread")
}

func TestTriageDraftsAndFiles(t *testing.T) {
	mail := newFakeMail(
		model.Message{ID: "m1", Subject: "urgent question"},
		model.Message{ID: "m2", Subject: "newsletter"},
		model.Message{ID: "m3", Subject: "receipt"},
	)
	classifier := &fakeClassifier{verdicts: map[string]model.Classification{
		"m1": {Category: "action", NeedsReply: true},
		"m2": {Category: "bulk", Folder: "Newsletters"},
		"m3": {Category: "finance", Folder: "Receipts"},
	}}
	svc := NewTriageService(stubTokens{secret: "tok"}, mail, classifier, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "processed 3/3 (drafted 1, filed 2)", result.Detail)
	assert.Equal(t, []string{"m1"}, mail.drafted)
	assert.Equal(t, map[string]string{"m2": "Newsletters", "m3": "Receipts"}, mail.moved)
}

func TestTriageStopsAtClassifierFailure(t *testing.T) {
	mail := newFakeMail(
		model.Message{ID: "m1"},
		model.Message{ID: "m2"},
		model.Message{ID: "m3"},
	)
	classifier := &fakeClassifier{
		verdicts: map[string]model.Classification{"m1": {NeedsReply: true}},
		failOn:   map[string]error{"m2": errors.New("model overloaded")},
	}
	svc := NewTriageService(stubTokens{secret: "tok"}, mail, classifier, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunPartial, result.Outcome)
	assert.Contains(t, result.Detail, "processed 1/3")
	assert.Contains(t, result.Detail, "classify")

	// The draft created before the failure stands.
	assert.Equal(t, []string{"m1"}, mail.drafted)
}

func TestTriageSideEffectFailureIsPartial(t *testing.T) {
	mail := newFakeMail(
		model.Message{ID: "m1"},
		model.Message{ID: "m2"},
	)
	mail.moveErr = errors.New("folder missing")
	classifier := &fakeClassifier{verdicts: map[string]model.Classification{
		"m1": {Folder: "Archive"},
		"m2": {NeedsReply: true},
	}}
	svc := NewTriageService(stubTokens{secret: "tok"}, mail, classifier, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunPartial, result.Outcome)
	assert.Contains(t, result.Detail, "processed 2/2")
	assert.Contains(t, result.Detail, "1 actions failed")

	// The other message was still handled.
	assert.Equal(t, []string{"m2"}, mail.drafted)
}

func TestBriefsAllMeetings(t *testing.T) {
	calendar := &fakeCalendar{events: []model.Event{
		{ID: "e1", Subject: "standup"},
		{ID: "e2", Subject: "planning"},
	}}
	svc := NewBriefService(stubTokens{secret: "tok"}, calendar, &fakeBriefWriter{}, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "briefed 2/2 meetings", result.Detail)
}

func TestBriefsPerEventFailureIsPartial(t *testing.T) {
	calendar := &fakeCalendar{events: []model.Event{
		{ID: "e1", Subject: "standup"},
		{ID: "e2", Subject: "planning"},
		{ID: "e3", Subject: "retro"},
	}}
	writer := &fakeBriefWriter{failOn: map[string]error{"e2": errors.New("timeout")}}
	svc := NewBriefService(stubTokens{secret: "tok"}, calendar, writer, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunPartial, result.Outcome)
	assert.Equal(t, "briefed 2/3 meetings", result.Detail)
}

func TestBriefsNoMeetings(t *testing.T) {
	svc := NewBriefService(stubTokens{secret: "tok"}, &fakeCalendar{}, &fakeBriefWriter{}, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "no upcoming meetings", result.Detail)
}

func TestBriefsRequireAuthentication(t *testing.T) {
	svc := NewBriefService(stubTokens{err: driven.ErrTokenAbsent}, &fakeCalendar{}, &fakeBriefWriter{}, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunFailure, result.Outcome)
	assert.Equal(t, "authentication required", result.Detail)
}

func TestDigestSummarizesMail(t *testing.T) {
	mail := newFakeMail(
		model.Message{ID: "m1", Subject: "a"},
		model.Message{ID: "m2", Subject: "b"},
	)
	svc := NewDigestService(stubTokens{secret: "tok"}, mail, &fakeBriefWriter{}, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "digested 2 messages", result.Detail)
}

func TestDigestEmptyMailbox(t *testing.T) {
	svc := NewDigestService(stubTokens{secret: "tok"}, newFakeMail(), &fakeBriefWriter{}, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "no mail to digest", result.Detail)
}

func TestDigestWriterFailure(t *testing.T) {
	mail := newFakeMail(model.Message{ID: "m1"})
	writer := &fakeBriefWriter{digestErr: errors.New("model unavailable")}
	svc := NewDigestService(stubTokens{secret: "tok"}, mail, writer, 24*time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunFailure, result.Outcome)
	assert.Contains(t, result.Detail, "write digest")
}

func TestHealthAllChecksPass(t *testing.T) {
	svc := NewHealthService(stubTokens{secret: "tok"}, newFakeMail(), stubPinger{}, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "all checks passed", result.Detail)
}

func TestHealthMissingCredential(t *testing.T) {
	svc := NewHealthService(stubTokens{err: driven.ErrTokenAbsent}, newFakeMail(), stubPinger{}, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunFailure, result.Outcome)
	assert.Contains(t, result.Detail, "authentication required")
}

func TestHealthDatabaseDown(t *testing.T) {
	svc := NewHealthService(stubTokens{secret: "tok"}, newFakeMail(), stubPinger{err: errors.New("locked")}, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunFailure, result.Outcome)
	assert.Contains(t, result.Detail, "db:")
}

func TestHealthProviderUnreachableIsPartial(t *testing.T) {
	mail := newFakeMail()
	mail.listErr = errors.New("connection refused")
	svc := NewHealthService(stubTokens{secret: "tok"}, mail, stubPinger{}, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	assert.Equal(t, model.RunPartial, result.Outcome)
	assert.Contains(t, result.Detail, "provider unreachable")
}

func TestTaskOpsSatisfyRequiredCounts(t *testing.T) {
	// Run records carry counts so operators can see partial progress; make
	// sure the shared format survives refactors.
	mail := newFakeMail(model.Message{ID: "m1"})
	classifier := &fakeClassifier{verdicts: map[string]model.Classification{"m1": {}}}
	svc := NewTriageService(stubTokens{secret: "tok"}, mail, classifier, time.Hour, testTimeout, discardLogger())

	result := svc.Run(context.Background(), "primary")
	require.Equal(t, model.RunSuccess, result.Outcome)
	assert.Equal(t, "processed 1/1 (drafted 0, filed 0)", result.Detail)
}
