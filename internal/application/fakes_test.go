package application

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memTokenStore is an in-memory TokenStore.
type memTokenStore struct {
	mu      sync.Mutex
	records map[string]model.TokenRecord
	getErr  error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{records: make(map[string]model.TokenRecord)}
}

func (s *memTokenStore) Get(_ context.Context, principalID string) (*model.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[principalID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (s *memTokenStore) Upsert(_ context.Context, principalID, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[principalID] = model.TokenRecord{
		PrincipalID:      principalID,
		EncryptedAccess:  encryptedAccess,
		EncryptedRefresh: encryptedRefresh,
		ExpiresAt:        expiresAt,
	}
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, principalID)
	return nil
}

func (s *memTokenStore) has(principalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[principalID]
	return ok
}

// fakeEndpoint is a scriptable TokenEndpoint that counts calls.
type fakeEndpoint struct {
	mu           sync.Mutex
	refreshCalls int
	revokeCalls  int
	refreshDelay time.Duration
	refreshPair  *model.TokenPair
	refreshErr   error
	revokeErr    error
}

func (e *fakeEndpoint) Refresh(_ context.Context, _ string) (*model.TokenPair, error) {
	e.mu.Lock()
	e.refreshCalls++
	delay, pair, err := e.refreshDelay, e.refreshPair, e.refreshErr
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	out := *pair
	return &out, nil
}

func (e *fakeEndpoint) Revoke(_ context.Context, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revokeCalls++
	return e.revokeErr
}

func (e *fakeEndpoint) calls() (refresh, revoke int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshCalls, e.revokeCalls
}

// memRunStore is an in-memory RunStore. Writes fail on a canceled
// context, matching how database/sql behaves.
type memRunStore struct {
	mu   sync.Mutex
	runs map[string]model.JobRun
	ids  []string
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: make(map[string]model.JobRun)}
}

func (s *memRunStore) Begin(ctx context.Context, run model.JobRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run.FinishedAt = nil
	run.Outcome = ""
	s.runs[run.ID] = run
	s.ids = append(s.ids, run.ID)
	return nil
}

func (s *memRunStore) Finish(ctx context.Context, runID string, finishedAt time.Time, outcome model.RunOutcome, detail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[runID]
	run.FinishedAt = &finishedAt
	run.Outcome = outcome
	run.Detail = detail
	s.runs[runID] = run
	return nil
}

func (s *memRunStore) ListRecent(_ context.Context, limit int) ([]model.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.JobRun
	for i := len(s.ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[s.ids[i]])
	}
	return out, nil
}

func (s *memRunStore) all() []model.JobRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JobRun, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.runs[id])
	}
	return out
}

// stubTokens is a TokenProvider returning a fixed secret or error.
type stubTokens struct {
	secret string
	err    error
}

func (s stubTokens) AccessSecret(_ context.Context, _ string) (string, error) {
	return s.secret, s.err
}

// fakeMail is a scriptable MailClient recording side effects.
type fakeMail struct {
	mu       sync.Mutex
	unread   []model.Message
	listErr  error
	moveErr  error
	draftErr error
	moved    map[string]string
	drafted  []string
}

func newFakeMail(unread ...model.Message) *fakeMail {
	return &fakeMail{unread: unread, moved: make(map[string]string)}
}

func (m *fakeMail) ListUnread(_ context.Context, _ string, _ time.Time) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.Message(nil), m.unread...), nil
}

func (m *fakeMail) MoveToFolder(_ context.Context, _, messageID, folder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moved[messageID] = folder
	return nil
}

func (m *fakeMail) CreateReplyDraft(_ context.Context, _, messageID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draftErr != nil {
		return m.draftErr
	}
	m.drafted = append(m.drafted, messageID)
	return nil
}

// fakeCalendar is a scriptable CalendarClient.
type fakeCalendar struct {
	events  []model.Event
	listErr error
}

func (c *fakeCalendar) ListUpcoming(_ context.Context, _ string, _ time.Duration) ([]model.Event, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]model.Event(nil), c.events...), nil
}

// fakeClassifier returns per-message verdicts, failing on listed IDs.
type fakeClassifier struct {
	verdicts map[string]model.Classification
	failOn   map[string]error
}

func (c *fakeClassifier) Classify(_ context.Context, msg model.Message) (*model.Classification, error) {
	if err, ok := c.failOn[msg.ID]; ok {
		return nil, err
	}
	v := c.verdicts[msg.ID]
	return &v, nil
}

// fakeBriefWriter produces canned text, failing on listed event IDs.
type fakeBriefWriter struct {
	failOn    map[string]error
	digestErr error
}

func (w *fakeBriefWriter) WriteBrief(_ context.Context, event model.Event) (string, error) {
	if err, ok := w.failOn[event.ID]; ok {
		return "", err
	}
	return "brief for " + event.Subject, nil
}

func (w *fakeBriefWriter) WriteDigest(_ context.Context, msgs []model.Message) (string, error) {
	if w.digestErr != nil {
		return "", w.digestErr
	}
	return "digest", nil
}

// stubPinger reports a fixed database health result.
type stubPinger struct {
	err error
}

func (p stubPinger) Ping(_ context.Context) error {
	return p.err
}
