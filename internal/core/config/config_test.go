package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load("", dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, DefaultModels, cfg.Correction.Models)
	assert.Equal(t, "English", cfg.Correction.DefaultLanguage)
	assert.Equal(t, 1, cfg.AutoRetryLimit())
	assert.Equal(t, 2*time.Second, cfg.Analysis.AutoRetryDelay)
	assert.True(t, cfg.RetryBackendErrors())
	assert.Equal(t, 4*time.Second, cfg.Capture.SegmentInterval)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Sessions.PollInterval)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
correction:
  models: [gemini-2.5-pro]
  default_language: Spanish
analysis:
  auto_retry_limit: 0
  retry_backend_errors: false
  max_in_flight: 4
capture:
  segment_interval: 6s
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini-2.5-pro"}, cfg.Correction.Models)
	assert.Equal(t, "Spanish", cfg.Correction.DefaultLanguage)
	assert.Equal(t, 0, cfg.AutoRetryLimit(), "explicit zero disables automatic retry")
	assert.False(t, cfg.RetryBackendErrors())
	assert.Equal(t, 4, cfg.Analysis.MaxInFlight)
	assert.Equal(t, 6*time.Second, cfg.Capture.SegmentInterval)
	assert.Equal(t, 20*time.Second, cfg.Correction.PerModelTimeout, "unset values keep defaults")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown driver",
			body:    "database:\n  driver: mysql\n",
			wantErr: "not supported",
		},
		{
			name:    "postgres without dsn",
			body:    "database:\n  driver: postgres\n",
			wantErr: "dsn is required",
		},
		{
			name:    "negative retry limit",
			body:    "analysis:\n  auto_retry_limit: -1\n",
			wantErr: "auto_retry_limit",
		},
		{
			name:    "bad yaml",
			body:    "correction: [",
			wantErr: "parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EmptyDataDir(t *testing.T) {
	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory")
}

func TestAPIKey_Precedence(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("GEMINI_API_KEY", "generic")
	t.Setenv("LINGLENZ_GEMINI_API_KEY", "")
	assert.Equal(t, "generic", cfg.APIKey())

	t.Setenv("LINGLENZ_GEMINI_API_KEY", "specific")
	assert.Equal(t, "specific", cfg.APIKey())
}
