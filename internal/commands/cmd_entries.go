package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/core/styles"
	"github.com/colonyops/linglenz/internal/httpapi"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/pkg/iojson"
)

type EntriesCmd struct {
	flags *Flags
	app   *lenz.App

	// flags
	language      string
	manualRetries int
	server        string
	jsonOutput    bool
}

// NewEntriesCmd creates a new entries command
func NewEntriesCmd(flags *Flags, app *lenz.App) *EntriesCmd {
	return &EntriesCmd{flags: flags, app: app}
}

// Register adds the entries command to the application
func (cmd *EntriesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "entries",
		Usage: "Mistake entry commands",
		Description: `Commands for listing, adding, retrying and deleting the analyzed
utterances of a class.

Entries still being analyzed or in error live in the process running the
class. 'entries retry' therefore talks to a running 'linglenz serve'.`,
		Commands: []*cli.Command{
			cmd.listCmd(),
			cmd.addCmd(),
			cmd.retryCmd(),
			cmd.deleteCmd(),
		},
	})
	return app
}

func (cmd *EntriesCmd) jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON lines",
		Destination: &cmd.jsonOutput,
	}
}

func (cmd *EntriesCmd) listCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List the entries of a class, most recent first",
		UsageText: "linglenz entries list <session-id> [--json]",
		Flags:     []cli.Flag{cmd.jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := sessionArg(c)
			if err != nil {
				return err
			}

			entries, err := cmd.app.Classes.Entries(ctx, id)
			if err != nil {
				return fmt.Errorf("list entries: %w", err)
			}
			return cmd.writeEntries(c, entries)
		},
	}
}

func (cmd *EntriesCmd) addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Analyze a typed sentence in a class in progress",
		UsageText: "linglenz entries add <session-id> <sentence...> [--language L] [--manual-retries N]",
		Description: `Submits a typed sentence to a class in progress and waits until its
analysis settles. Failed analyses are retried automatically as configured;
--manual-retries retries an entry still in error up to N more times.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "language",
				Aliases:     []string{"l"},
				Usage:       "language spoken in the class",
				Destination: &cmd.language,
			},
			&cli.IntFlag{
				Name:        "manual-retries",
				Usage:       "manual retries of an entry left in error",
				Destination: &cmd.manualRetries,
			},
			cmd.jsonFlag(),
		},
		Action: cmd.runAdd,
	}
}

func (cmd *EntriesCmd) runAdd(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	text := strings.Join(c.Args().Tail(), " ")

	cmd.app.Start(ctx)

	if _, err := cmd.app.Classes.Open(ctx, id, cmd.language); err != nil {
		return fmt.Errorf("open class: %w", err)
	}

	tracker := trackEntries(ctx, cmd.app.Bus, id)

	entry, err := cmd.app.Classes.Submit(ctx, id, text, mistake.SourceManual)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	settled, err := tracker.Await(ctx, entry.ID)
	if err != nil {
		return err
	}
	for attempt := 0; settled.Status == mistake.StatusError && attempt < cmd.manualRetries; attempt++ {
		if _, err := cmd.app.Classes.Retry(ctx, id, settled.ID); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		if settled, err = tracker.Await(ctx, settled.ID); err != nil {
			return err
		}
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, settled)
	}
	printEntry(c.Root().Writer, settled)
	if settled.Status == mistake.StatusError {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *EntriesCmd) retryCmd() *cli.Command {
	return &cli.Command{
		Name:      "retry",
		Usage:     "Retry an entry in error on a running server",
		UsageText: "linglenz entries retry <session-id> <entry-id> [--server URL]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "address of the running server (defaults to server.addr from config)",
				Sources:     cli.EnvVars("LINGLENZ_SERVER"),
				Destination: &cmd.server,
			},
			cmd.jsonFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			sessionID, entryID := c.Args().Get(0), c.Args().Get(1)
			if sessionID == "" || entryID == "" {
				return fmt.Errorf("session id and entry id are required")
			}

			server := cmd.server
			if server == "" {
				server = cmd.flags.Config.Server.Addr
			}

			entry, err := httpapi.NewClient(server).RetryEntry(ctx, sessionID, entryID)
			if err != nil {
				return fmt.Errorf("retry entry: %w", err)
			}

			if cmd.jsonOutput {
				return iojson.WriteWith(c.Root().Writer, os.Stderr, entry)
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "%s %s\n", styles.Status(string(entry.Status)), entry.Original)
			return nil
		},
	}
}

func (cmd *EntriesCmd) deleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an entry",
		UsageText: "linglenz entries delete <session-id> <entry-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			sessionID, entryID := c.Args().Get(0), c.Args().Get(1)
			if sessionID == "" || entryID == "" {
				return fmt.Errorf("session id and entry id are required")
			}

			if err := cmd.app.Classes.DeleteEntry(ctx, sessionID, entryID); err != nil {
				return fmt.Errorf("delete entry: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Deleted %s\n", entryID)
			return nil
		},
	}
}

func (cmd *EntriesCmd) writeEntries(c *cli.Command, entries []mistake.Entry) error {
	out := c.Root().Writer
	if cmd.jsonOutput {
		for _, e := range entries {
			if err := iojson.WriteLine(out, e); err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
		}
		return nil
	}
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "No entries\n")
		return nil
	}
	printEntries(out, entries)
	return nil
}
