package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/config"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, config.DriverSQLite, s.Driver)
	require.NoError(t, s.Ping(ctx))

	sess := classroom.New("sess-1", "teacher-1", "student-1", time.Now().UTC())
	require.NoError(t, s.Sessions.Create(ctx, sess))

	got, err := s.Sessions.FindActive(ctx, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.ID)
}

func TestMigrationsAndRollback_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	migrations, err := s.Migrations(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for _, m := range migrations {
		assert.True(t, m.Applied)
		assert.NotEmpty(t, m.Name)
	}

	require.NoError(t, s.Rollback(ctx, 1))

	after, err := s.Migrations(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(migrations)-1)

	assert.Error(t, s.Rollback(ctx, 0))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "mysql"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
