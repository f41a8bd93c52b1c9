package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/config"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/data/db"
	"github.com/colonyops/linglenz/internal/data/stores"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/internal/metrics"
)

// stubChecker returns a fixed result, or err when set.
type stubChecker struct {
	mu  sync.Mutex
	err error
}

func (c *stubChecker) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *stubChecker) Check(_ context.Context, req correction.Request) (correction.Result, error) {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()

	if strings.TrimSpace(req.Sentence) == "" {
		return correction.Result{}, &correction.Error{Kind: correction.KindInvalidInput, Message: "sentence is required"}
	}
	if err != nil {
		return correction.Result{}, err
	}
	return correction.Result{
		IsCorrect:         false,
		CorrectedSentence: "He goes to school",
		Explanation:       "subject-verb agreement",
		Categories:        []string{"Grammar"},
	}, nil
}

type testEnv struct {
	app     *lenz.App
	server  *Server
	http    *httptest.Server
	checker *stubChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(context.Background(), t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	cfg := config.DefaultConfig()
	cfg.Analysis.AutoRetryDelay = 10 * time.Millisecond
	cfg.Sessions.PollInterval = time.Hour

	checker := &stubChecker{}
	app := lenz.NewApp(&cfg, lenz.Deps{
		Sessions: stores.NewClassSessionStore(database),
		Entries:  stores.NewMistakeStore(database),
		Checker:  checker,
		Bus:      eventbus.New(256),
		Metrics:  metrics.New("test"),
		Logger:   zerolog.Nop(),
	})

	srv := New(app, zerolog.Nop())
	srv.Register()

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	t.Cleanup(func() {
		app.Close()
		cancel()
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{app: app, server: srv, http: ts, checker: checker}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.http.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckSentence(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/check-sentence", map[string]string{"sentence": "He go to school"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[correction.Result](t, resp)
	assert.Equal(t, "He goes to school", res.CorrectedSentence)
	assert.Equal(t, []string{"Grammar"}, res.Categories)
}

func TestCheckSentence_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/check-sentence", map[string]string{"sentence": "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[errorBody](t, resp)
	assert.Equal(t, correction.KindInvalidInput, body.Kind)
	assert.NotEmpty(t, body.Error)

	env.checker.setErr(&correction.Error{
		Kind:    correction.KindAllBackendsUnavailable,
		Message: "every correction model failed",
		Err:     &correction.Error{Kind: correction.KindBackendLogic, Message: "quota"},
	})
	resp = env.do(t, http.MethodPost, "/v1/check-sentence", map[string]string{"sentence": "hi"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body = decodeBody[errorBody](t, resp)
	assert.Equal(t, correction.KindAllBackendsUnavailable, body.Kind)
	assert.Equal(t, correction.KindBackendLogic, body.LastKind)
}

func TestCheckSentence_ClientRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	client := correction.NewClient(env.http.URL + "/v1/check-sentence")

	res, err := client.Check(context.Background(), correction.Request{Sentence: "He go to school", Language: "Spanish"})
	require.NoError(t, err)
	assert.Equal(t, "He goes to school", res.CorrectedSentence)

	env.checker.setErr(&correction.Error{
		Kind: correction.KindAllBackendsUnavailable,
		Err:  &correction.Error{Kind: correction.KindTransport, Message: "timeout"},
	})
	_, err = client.Check(context.Background(), correction.Request{Sentence: "hi"})
	require.ErrorIs(t, err, correction.ErrAllBackendsUnavailable)
	assert.Equal(t, correction.KindTransport, correction.KindOf(err))
}

func TestSessionConflictFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	x := decodeBody[classroom.Session](t, resp)

	resp = env.do(t, http.MethodGet, "/v1/teachers/t1/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decodeBody[activeResponse](t, resp)
	require.True(t, active.Active)
	assert.Equal(t, "x", active.Session.StudentID)

	resp = env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "y"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decodeBody[errorBody](t, resp)
	require.NotNil(t, conflict.Existing)
	assert.Equal(t, x.ID, conflict.Existing.ID)

	resp = env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "y", OnConflict: "resume"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, x.ID, decodeBody[classroom.Session](t, resp).ID)

	resp = env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "y", OnConflict: "abandon"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	y := decodeBody[classroom.Session](t, resp)
	assert.Equal(t, "y", y.StudentID)

	resp = env.do(t, http.MethodGet, "/v1/sessions/"+x.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	old := decodeBody[classroom.Session](t, resp)
	assert.Equal(t, classroom.StatusAbandoned, old.Status)
	assert.NotNil(t, old.FinishedAt)

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+y.ID+"/end", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/teachers/t1/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := decodeBody[[]classroom.Session](t, resp)
	require.Len(t, pending, 1)
	assert.Equal(t, y.ID, pending[0].ID)

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+y.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, classroom.StatusCompleted, decodeBody[classroom.Session](t, resp).Status)

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+y.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "", StudentID: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "x", OnConflict: "merge"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/sessions/missing/resume", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEntriesLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decodeBody[classroom.Session](t, resp)
	base := "/v1/sessions/" + sess.ID + "/entries"

	resp = env.do(t, http.MethodPost, base, submitRequest{Text: "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, base, submitRequest{Text: "He go to school", Language: "Spanish"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	entry := decodeBody[mistake.Entry](t, resp)
	assert.Equal(t, mistake.StatusThinking, entry.Status)
	assert.Equal(t, mistake.SourceManual, entry.Source)

	var done mistake.Entry
	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, base, nil)
		entries := decodeBody[[]mistake.Entry](t, resp)
		if len(entries) != 1 || entries[0].Status != mistake.StatusDone {
			return false
		}
		done = entries[0]
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, done.Temporary())

	resp = env.do(t, http.MethodPost, base+"/"+done.ID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, base+"/"+done.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, base+"/"+done.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCaptureWithoutDevice(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/sessions", startRequest{TeacherID: "t1", StudentID: "x"})
	sess := decodeBody[classroom.Session](t, resp)

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/capture/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/capture/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeBody[captureResponse](t, resp).Active)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", nil)

	resp := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "test_http_requests_total")
}
