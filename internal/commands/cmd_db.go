package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/core/styles"
	"github.com/colonyops/linglenz/internal/data/storage"
	"github.com/colonyops/linglenz/pkg/iojson"
)

type DBCmd struct {
	flags *Flags
	store *storage.Storage

	// flags
	steps      int
	jsonOutput bool
}

// NewDBCmd creates a new db command
func NewDBCmd(flags *Flags, store *storage.Storage) *DBCmd {
	return &DBCmd{flags: flags, store: store}
}

// Register adds the db command to the application
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Database maintenance commands",
		Description: `Inspect and roll back schema migrations. Pending migrations are applied
automatically whenever linglenz opens the database.`,
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "Show schema migrations",
				UsageText: "linglenz db status [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.runStatus,
			},
			{
				Name:      "rollback",
				Usage:     "Revert the most recent migrations",
				UsageText: "linglenz db rollback [--steps N]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Usage:       "number of migrations to revert",
						Value:       1,
						Destination: &cmd.steps,
					},
				},
				Action: cmd.runRollback,
			},
		},
	})
	return app
}

func (cmd *DBCmd) runStatus(ctx context.Context, c *cli.Command) error {
	migrations, err := cmd.store.Migrations(ctx)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, struct {
			Driver     string              `json:"driver"`
			Migrations []storage.Migration `json:"migrations"`
		}{Driver: cmd.store.Driver, Migrations: migrations})
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "VERSION\tNAME\tSTATE\tAPPLIED\n")
	for _, m := range migrations {
		state, applied := "", "-"
		if m.Applied {
			state = styles.TextSuccessStyle.Render("applied")
			applied = m.AppliedAt.Local().Format(timeLayout)
		} else {
			state = styles.TextWarningStyle.Render("pending")
		}
		_, _ = fmt.Fprintf(w, "%04d\t%s\t%s\t%s\n", m.Version, m.Name, state, applied)
	}
	return w.Flush()
}

func (cmd *DBCmd) runRollback(ctx context.Context, _ *cli.Command) error {
	if err := cmd.store.Rollback(ctx, cmd.steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Reverted %d migration(s) on %s\n", cmd.steps, cmd.store.Driver)
	return nil
}
