// Package storage opens the configured durable store and exposes the domain
// stores together with the maintenance operations the CLI needs.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/config"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/data/db"
	"github.com/colonyops/linglenz/internal/data/pgstore"
	"github.com/colonyops/linglenz/internal/data/stores"
)

// Migration is the driver independent view of one schema migration.
type Migration struct {
	Version   int64     `json:"version"`
	Name      string    `json:"name"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"applied_at,omitzero"`
}

// Storage is an opened durable store.
type Storage struct {
	Driver   string
	Sessions classroom.Store
	Entries  mistake.Store

	sqlite   *db.DB
	postgres *pgstore.DB
}

// Open connects to the store selected by cfg.Database.Driver and applies
// pending migrations.
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := pgstore.Open(ctx, cfg.Database.DSN, pgstore.Options{
			MaxConns: int32(cfg.Database.MaxOpenConns),
		})
		if err != nil {
			return nil, err
		}
		return &Storage{
			Driver:   config.DriverPostgres,
			Sessions: pgstore.NewClassSessionStore(pg),
			Entries:  pgstore.NewMistakeStore(pg),
			postgres: pg,
		}, nil

	case config.DriverSQLite, "":
		database, err := db.Open(ctx, cfg.DatabaseDir(), db.OpenOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			BusyTimeout:  cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &Storage{
			Driver:   config.DriverSQLite,
			Sessions: stores.NewClassSessionStore(database),
			Entries:  stores.NewMistakeStore(database),
			sqlite:   database,
		}, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// Ping verifies the connection is usable.
func (s *Storage) Ping(ctx context.Context) error {
	if s.postgres != nil {
		return s.postgres.Pool().Ping(ctx)
	}
	return s.sqlite.Conn().PingContext(ctx)
}

// Migrations lists the schema migrations and whether each is applied.
func (s *Storage) Migrations(ctx context.Context) ([]Migration, error) {
	if s.postgres != nil {
		statuses, err := s.postgres.Migrations(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Migration, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, Migration(st))
		}
		return out, nil
	}

	applied, err := db.Applied(ctx, s.sqlite.Conn())
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(applied))
	for _, m := range applied {
		out = append(out, Migration{
			Version:   int64(m.Version),
			Name:      m.Name,
			Applied:   true,
			AppliedAt: m.AppliedAt,
		})
	}
	return out, nil
}

// Rollback reverts the last n applied migrations.
func (s *Storage) Rollback(ctx context.Context, n int) error {
	if s.postgres != nil {
		return s.postgres.Rollback(ctx, n)
	}
	return db.MigrateDown(ctx, s.sqlite.Conn(), n)
}

// Close releases the underlying connections.
func (s *Storage) Close() error {
	if s.postgres != nil {
		s.postgres.Close()
		return nil
	}
	return s.sqlite.Close()
}
