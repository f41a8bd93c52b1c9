package doctor

import (
	"context"
	"fmt"

	"github.com/colonyops/linglenz/internal/data/storage"
)

// Database is the subset of storage.Storage the database check uses.
type Database interface {
	Ping(ctx context.Context) error
	Migrations(ctx context.Context) ([]storage.Migration, error)
}

// DatabaseCheck verifies the durable store is reachable and migrated.
type DatabaseCheck struct {
	db     Database
	driver string
}

// NewDatabaseCheck creates a database check.
func NewDatabaseCheck(db Database, driver string) *DatabaseCheck {
	return &DatabaseCheck{db: db, driver: driver}
}

func (c *DatabaseCheck) Name() string {
	return "Database"
}

func (c *DatabaseCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if err := c.db.Ping(ctx); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.driver,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  c.driver,
		Status: StatusPass,
		Detail: "connected",
	})

	migrations, err := c.db.Migrations(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "migrations",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	pending := 0
	for _, m := range migrations {
		if !m.Applied {
			pending++
		}
	}
	if pending > 0 {
		result.Items = append(result.Items, CheckItem{
			Label:   "migrations",
			Status:  StatusWarn,
			Detail:  fmt.Sprintf("%d pending", pending),
			Fixable: true,
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "migrations",
			Status: StatusPass,
			Detail: fmt.Sprintf("%d applied", len(migrations)),
		})
	}

	return result
}
