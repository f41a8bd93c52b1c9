package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/config"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/data/storage"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/internal/metrics"
)

// scriptedChecker fails the first failures calls, then corrects.
type scriptedChecker struct {
	mu       sync.Mutex
	failures int
}

func (c *scriptedChecker) Check(_ context.Context, req correction.Request) (correction.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return correction.Result{}, &correction.Error{Kind: correction.KindTransport, Message: "connection reset"}
	}
	return correction.Result{
		CorrectedSentence: strings.Replace(req.Sentence, "go ", "goes ", 1),
		Explanation:       "third person singular",
		Categories:        []string{"Grammar"},
	}, nil
}

type cliEnv struct {
	flags   *Flags
	app     *lenz.App
	store   *storage.Storage
	checker *scriptedChecker
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	cfg.Analysis.AutoRetryDelay = 5 * time.Millisecond
	cfg.Sessions.PollInterval = time.Hour

	store, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	checker := &scriptedChecker{}
	app := lenz.NewApp(cfg, lenz.Deps{
		Sessions: store.Sessions,
		Entries:  store.Entries,
		Checker:  checker,
		Bus:      eventbus.New(256),
		Metrics:  metrics.New("test"),
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(app.Close)

	return &cliEnv{
		flags:   &Flags{Config: cfg},
		app:     app,
		store:   store,
		checker: checker,
	}
}

// run executes args against a fresh command tree and returns stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := &cli.Command{
		Name:   "linglenz",
		Writer: &out,
		// cli.Exit would otherwise terminate the test binary.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	root = NewCheckCmd(e.flags, e.app).Register(root)
	root = NewClassCmd(e.flags, e.app).Register(root)
	root = NewEntriesCmd(e.flags, e.app).Register(root)
	root = NewConfigValidateCmd(e.flags).Register(root)
	root = NewDBCmd(e.flags, e.store).Register(root)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := root.Run(ctx, append([]string{"linglenz"}, args...))
	return out.String(), err
}

func TestCheckCmd_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "check", "--json", "He", "go", "to", "school")
	require.NoError(t, err)

	var res correction.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "He goes to school", res.CorrectedSentence)
	assert.Equal(t, []string{"Grammar"}, res.Categories)
}

func TestClassCmd_ConflictResolution(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "class", "start", "--teacher", "t1", "--student", "ana", "--json")
	require.NoError(t, err)
	var first classroom.Session
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, classroom.StatusInProgress, first.Status)

	_, err = env.run(t, "class", "start", "--teacher", "t1", "--student", "ben")
	require.Error(t, err, "a second class without --resume or --abandon fails")

	out, err = env.run(t, "class", "start", "--teacher", "t1", "--student", "ben", "--resume", "--json")
	require.NoError(t, err)
	var resumed classroom.Session
	require.NoError(t, json.Unmarshal([]byte(out), &resumed))
	assert.Equal(t, first.ID, resumed.ID)

	out, err = env.run(t, "class", "start", "--teacher", "t1", "--student", "ben", "--abandon", "--json")
	require.NoError(t, err)
	var replaced classroom.Session
	require.NoError(t, json.Unmarshal([]byte(out), &replaced))
	assert.NotEqual(t, first.ID, replaced.ID)
	assert.Equal(t, "ben", replaced.StudentID)

	old, err := env.app.Guard.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, classroom.StatusAbandoned, old.Status)

	out, err = env.run(t, "class", "status", "--teacher", "t1", "--json")
	require.NoError(t, err)
	var status activeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Active)
	assert.Equal(t, replaced.ID, status.Session.ID)
}

func TestClassCmd_EndCompleteAndPending(t *testing.T) {
	env := newCLIEnv(t)
	ctx := context.Background()

	sess, err := env.app.Guard.StartSession(ctx, "t1", "ana")
	require.NoError(t, err)

	_, err = env.run(t, "class", "end", sess.ID)
	require.NoError(t, err)

	out, err := env.run(t, "class", "pending", "--teacher", "t1", "--json")
	require.NoError(t, err)
	var pending classroom.Session
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &pending))
	assert.Equal(t, sess.ID, pending.ID)
	assert.Equal(t, classroom.StatusPendingReview, pending.Status)

	_, err = env.run(t, "class", "complete", sess.ID)
	require.NoError(t, err)

	out, err = env.run(t, "class", "pending", "--teacher", "t1", "--json")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	out, err = env.run(t, "class", "status", "--all", "--json")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestEntriesCmd_AddWithManualRetry(t *testing.T) {
	env := newCLIEnv(t)
	ctx := context.Background()

	sess, err := env.app.Guard.StartSession(ctx, "t1", "ana")
	require.NoError(t, err)

	// One initial failure plus one automatic retry leave the entry in error;
	// the manual retry then succeeds.
	env.checker.failures = 2

	out, err := env.run(t, "entries", "add", "--manual-retries", "1", "--json", sess.ID, "He", "go", "to", "school")
	require.NoError(t, err)

	var entry mistake.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, mistake.StatusDone, entry.Status)
	assert.False(t, entry.Temporary())
	assert.Equal(t, mistake.SourceRetry, entry.PersistedSource())

	out, err = env.run(t, "entries", "list", "--json", sess.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)

	_, err = env.run(t, "entries", "delete", sess.ID, entry.ID)
	require.NoError(t, err)

	out, err = env.run(t, "entries", "list", "--json", sess.ID)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestEntriesCmd_AddLeavesErrorWithoutRetries(t *testing.T) {
	env := newCLIEnv(t)

	sess, err := env.app.Guard.StartSession(context.Background(), "t1", "ana")
	require.NoError(t, err)
	env.checker.failures = 2

	out, err := env.run(t, "entries", "add", sess.ID, "He go to school")
	require.Error(t, err)
	assert.Contains(t, out, "connection reset")
}

func TestConfigValidateCmd(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "config", "validate", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	env.flags.Config.Server.Addr = "nowhere"
	out, err = env.run(t, "config", "validate", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, out, "server.addr")
}

func TestDBCmd_Status(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "db", "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"driver": "sqlite"`)
	assert.Contains(t, out, `"applied": true`)
}
