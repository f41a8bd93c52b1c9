package lenz

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus/testbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
)

// mockSessions implements classroom.Store for testing, including the
// one-in-progress-per-teacher constraint.
type mockSessions struct {
	mu        sync.Mutex
	sessions  map[string]classroom.Session
	updateErr error
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]classroom.Session)}
}

func (m *mockSessions) Get(_ context.Context, id string) (classroom.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return classroom.Session{}, classroom.ErrNotFound
	}
	return s, nil
}

func (m *mockSessions) Create(_ context.Context, sess classroom.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess.Active() {
		for _, s := range m.sessions {
			if s.TeacherID == sess.TeacherID && s.Active() {
				return classroom.ErrActiveSessionExists
			}
		}
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockSessions) Update(_ context.Context, sess classroom.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.sessions[sess.ID]; !ok {
		return classroom.ErrNotFound
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockSessions) FindActive(_ context.Context, teacherID string) (classroom.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TeacherID == teacherID && s.Active() {
			return s, nil
		}
	}
	return classroom.Session{}, classroom.ErrNotFound
}

func (m *mockSessions) ListByStatus(_ context.Context, teacherID string, status classroom.Status) ([]classroom.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []classroom.Session
	for _, s := range m.sessions {
		if s.TeacherID == teacherID && s.Status == status {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b classroom.Session) int {
		return b.FinishedAt.Compare(*a.FinishedAt)
	})
	return out, nil
}

func (m *mockSessions) ListActive(_ context.Context) ([]classroom.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []classroom.Session
	for _, s := range m.sessions {
		if s.Active() {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b classroom.Session) int { return cmp.Compare(a.TeacherID, b.TeacherID) })
	return out, nil
}

func (m *mockSessions) countActive(teacherID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.TeacherID == teacherID && s.Active() {
			n++
		}
	}
	return n
}

func (m *mockSessions) failUpdates(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

func (m *mockSessions) put(sess classroom.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
}

// mockEntries implements mistake.Store for testing.
type mockEntries struct {
	mu      sync.Mutex
	records map[string]mistake.Record
	seq     int
	failN   int // fail this many inserts before succeeding
}

func newMockEntries() *mockEntries {
	return &mockEntries{records: make(map[string]mistake.Record)}
}

func (m *mockEntries) Insert(_ context.Context, rec mistake.Record) (mistake.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return mistake.Record{}, fmt.Errorf("database is locked")
	}
	m.seq++
	rec.ID = fmt.Sprintf("rec-%d", m.seq)
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *mockEntries) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return mistake.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockEntries) ListBySession(_ context.Context, sessionID string) ([]mistake.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mistake.Record
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b mistake.Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *mockEntries) get(id string) (mistake.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

func (m *mockEntries) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// scriptedChecker answers each Check with the next scripted response; once
// the script runs out the last response repeats.
type scriptedChecker struct {
	mu     sync.Mutex
	script []checkResponse
	calls  atomic.Int32
	reqs   []correction.Request
	gate   chan struct{} // when set, Check blocks until it is closed
}

type checkResponse struct {
	res correction.Result
	err error
}

func newChecker(responses ...checkResponse) *scriptedChecker {
	return &scriptedChecker{script: responses}
}

func (c *scriptedChecker) Check(ctx context.Context, req correction.Request) (correction.Result, error) {
	c.mu.Lock()
	gate := c.gate
	c.reqs = append(c.reqs, req)
	n := int(c.calls.Add(1)) - 1
	if n >= len(c.script) {
		n = len(c.script) - 1
	}
	resp := c.script[n]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return correction.Result{}, &correction.Error{Kind: correction.KindTransport, Err: ctx.Err()}
		}
	}
	return resp.res.Clone(), resp.err
}

func (c *scriptedChecker) requests() []correction.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]correction.Request(nil), c.reqs...)
}

func succeed(res correction.Result) checkResponse { return checkResponse{res: res} }

func fail(kind correction.Kind) checkResponse {
	last := &correction.Error{Kind: kind, Model: "gemini-2.5-flash", Message: "boom"}
	return checkResponse{err: &correction.Error{
		Kind:    correction.KindAllBackendsUnavailable,
		Message: "every correction model failed",
		Err:     last,
	}}
}

var goesResult = correction.Result{
	IsCorrect:         false,
	CorrectedSentence: "He goes to school",
	Explanation:       "subject-verb agreement",
	Categories:        []string{"Grammar"},
}

// fakeOpener counts device acquisitions.
type fakeOpener struct {
	opens atomic.Int32
	err   error
}

func (o *fakeOpener) Open(capture.Format, capture.Callbacks) (capture.Device, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opens.Add(1)
	return &fakeDevice{}, nil
}

type fakeDevice struct{}

func (fakeDevice) Start() error { return nil }
func (fakeDevice) Stop() error  { return nil }
func (fakeDevice) Close() error { return nil }

// fakeTranscriber returns canned text for every clip, after delay.
type fakeTranscriber struct {
	text  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ []byte, _, _ string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

// logBuffer collects log lines written from several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func activeSession(id, teacherID, studentID string) classroom.Session {
	return classroom.New(id, teacherID, studentID, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
}

func testAnalyzer(t *testing.T, checker correction.Checker, store mistake.Store) (*Analyzer, *testbus.Bus) {
	t.Helper()
	bus := testbus.New(t)
	sess := activeSession("sess-1", "teacher-1", "student-1")
	a := NewAnalyzer(sess, checker, store, NewLedger(sess.ID), bus.EventBus, AnalyzerOptions{
		Language:           "Spanish",
		AutoRetryLimit:     1,
		AutoRetryDelay:     20 * time.Millisecond,
		RetryBackendErrors: true,
		Logger:             zerolog.Nop(),
	})
	t.Cleanup(a.Close)
	return a, bus
}
