package doctor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/core/config"
	"github.com/colonyops/linglenz/internal/data/storage"
)

type stubCheck struct {
	name  string
	items []CheckItem
}

func (s stubCheck) Name() string { return s.name }

func (s stubCheck) Run(context.Context) Result {
	return Result{Name: s.name, Items: s.items}
}

func TestRunAllAndSummary(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		stubCheck{name: "a", items: []CheckItem{{Label: "x", Status: StatusPass}}},
		stubCheck{name: "b", items: []CheckItem{
			{Label: "y", Status: StatusWarn, Fixable: true},
			{Label: "z", Status: StatusFail},
		}},
	})

	require.Len(t, results, 2)
	assert.False(t, Healthy(results))

	passed, warned, failed := Summary(results)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, CountFixable(results))
}

func TestRunAll_EmptyCheck(t *testing.T) {
	results := RunAll(context.Background(), []Check{stubCheck{name: "quiet"}})

	require.Len(t, results, 1)
	require.Len(t, results[0].Items, 1)
	assert.Equal(t, StatusPass, results[0].Items[0].Status)
	assert.True(t, Healthy(results))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestConfigCheck(t *testing.T) {
	t.Setenv("LINGLENZ_GEMINI_API_KEY", "key")

	cfg := testConfig(t)
	result := NewConfigCheck(cfg, filepath.Join(t.TempDir(), "missing.yaml")).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "not found, using defaults", result.Items[0].Detail)
}

func TestConfigCheck_FieldErrorsAndWarnings(t *testing.T) {
	t.Setenv("LINGLENZ_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	cfg := testConfig(t)
	cfg.Server.Addr = "not an address"

	result := NewConfigCheck(cfg, path).Run(context.Background())

	var fails, warns int
	for _, item := range result.Items {
		switch item.Status {
		case StatusFail:
			fails++
			assert.Equal(t, "server.addr", item.Label)
		case StatusWarn:
			warns++
		}
	}
	assert.Equal(t, 1, fails)
	assert.Equal(t, 1, warns, "missing api key")
}

type stubDB struct {
	pingErr    error
	migrations []storage.Migration
	migErr     error
}

func (s stubDB) Ping(context.Context) error { return s.pingErr }

func (s stubDB) Migrations(context.Context) ([]storage.Migration, error) {
	return s.migrations, s.migErr
}

func TestDatabaseCheck(t *testing.T) {
	tests := []struct {
		name     string
		db       stubDB
		statuses []Status
	}{
		{
			name:     "healthy",
			db:       stubDB{migrations: []storage.Migration{{Version: 1, Applied: true}}},
			statuses: []Status{StatusPass, StatusPass},
		},
		{
			name:     "unreachable",
			db:       stubDB{pingErr: errors.New("connection refused")},
			statuses: []Status{StatusFail},
		},
		{
			name:     "pending migrations",
			db:       stubDB{migrations: []storage.Migration{{Version: 1, Applied: true}, {Version: 2}}},
			statuses: []Status{StatusPass, StatusWarn},
		},
		{
			name:     "migration status error",
			db:       stubDB{migErr: errors.New("boom")},
			statuses: []Status{StatusPass, StatusFail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewDatabaseCheck(tt.db, "sqlite").Run(context.Background())
			got := make([]Status, 0, len(result.Items))
			for _, item := range result.Items {
				got = append(got, item.Status)
			}
			assert.Equal(t, tt.statuses, got)
		})
	}
}

func TestCorrectionCheck(t *testing.T) {
	t.Setenv("LINGLENZ_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := testConfig(t)
	result := NewCorrectionCheck(cfg).Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[1].Detail, "gemini-2.5-flash")

	t.Setenv("GEMINI_API_KEY", "key")
	result = NewCorrectionCheck(cfg).Run(context.Background())
	assert.Equal(t, StatusPass, result.Items[0].Status)

	cfg.Correction.Endpoint = "http://localhost:8484"
	result = NewCorrectionCheck(cfg).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, "endpoint", result.Items[0].Label)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestAudioCheck(t *testing.T) {
	closed := false
	result := NewAudioCheck(func() (io.Closer, error) {
		return closerFunc(func() error { closed = true; return nil }), nil
	}).Run(context.Background())

	assert.True(t, closed)
	assert.Equal(t, StatusPass, result.Items[0].Status)

	result = NewAudioCheck(func() (io.Closer, error) {
		return nil, errors.New("no backend")
	}).Run(context.Background())
	assert.Equal(t, StatusWarn, result.Items[0].Status)
}
