package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/styles"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/pkg/iojson"
)

type ClassCmd struct {
	flags *Flags
	app   *lenz.App

	// flags
	teacher    string
	student    string
	resume     bool
	abandon    bool
	all        bool
	jsonOutput bool
}

// NewClassCmd creates a new class command
func NewClassCmd(flags *Flags, app *lenz.App) *ClassCmd {
	return &ClassCmd{flags: flags, app: app}
}

// Register adds the class command to the application
func (cmd *ClassCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "class",
		Usage: "Class session management commands",
		Description: `Commands for starting, resuming and ending class sessions.

A teacher has at most one class in progress. Starting another one while a
class is in progress fails unless --resume or --abandon says how to resolve
the conflict.`,
		Commands: []*cli.Command{
			cmd.startCmd(),
			cmd.resumeCmd(),
			cmd.abandonCmd(),
			cmd.endCmd(),
			cmd.completeCmd(),
			cmd.statusCmd(),
			cmd.pendingCmd(),
		},
	})
	return app
}

func (cmd *ClassCmd) teacherFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "teacher",
		Aliases:     []string{"t"},
		Usage:       "teacher id",
		Sources:     cli.EnvVars("LINGLENZ_TEACHER"),
		Destination: &cmd.teacher,
	}
}

func (cmd *ClassCmd) studentFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "student",
		Aliases:     []string{"s"},
		Usage:       "student id",
		Required:    true,
		Destination: &cmd.student,
	}
}

func (cmd *ClassCmd) jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}
}

func (cmd *ClassCmd) startCmd() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a class with a student",
		UsageText: "linglenz class start --teacher T --student S [--resume | --abandon]",
		Flags: []cli.Flag{
			cmd.teacherFlag(),
			cmd.studentFlag(),
			&cli.BoolFlag{
				Name:        "resume",
				Usage:       "resume the class already in progress instead of failing",
				Destination: &cmd.resume,
			},
			&cli.BoolFlag{
				Name:        "abandon",
				Usage:       "abandon the class already in progress and start a new one",
				Destination: &cmd.abandon,
			},
			cmd.jsonFlag(),
		},
		Action: cmd.runStart,
	}
}

func (cmd *ClassCmd) runStart(ctx context.Context, c *cli.Command) error {
	if cmd.resume && cmd.abandon {
		return fmt.Errorf("--resume and --abandon are mutually exclusive")
	}

	guard := cmd.app.Guard

	sess, err := guard.StartSession(ctx, cmd.teacher, cmd.student)

	var conflict *classroom.ConflictError
	if errors.As(err, &conflict) {
		switch {
		case cmd.resume:
			sess, err = guard.Resume(ctx, cmd.teacher, conflict.Existing.ID)
		case cmd.abandon:
			sess, err = guard.AbandonAndStart(ctx, cmd.teacher, cmd.student)
		default:
			w := os.Stderr
			_, _ = fmt.Fprintln(w, styles.TextWarningStyle.Render("A class is already in progress:"))
			printActive(w, conflict.Existing)
			_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render("Rerun with --resume to continue it or --abandon to start over."))
			return cli.Exit("", 1)
		}
	}
	if err != nil {
		return fmt.Errorf("start class: %w", err)
	}

	return cmd.printSession(c, sess)
}

func (cmd *ClassCmd) resumeCmd() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume the class in progress",
		UsageText: "linglenz class resume --teacher T [session-id]",
		Description: `Resumes the teacher's class in progress. The session id is optional; when
given it must match the class in progress.`,
		Flags:         []cli.Flag{cmd.teacherFlag(), cmd.jsonFlag()},
		ShellComplete: ActiveSessionCompleter(cmd.app),
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				active, err := cmd.app.Guard.CheckActive(ctx, cmd.teacher)
				if err != nil {
					return err
				}
				if active == nil {
					return fmt.Errorf("teacher %s has no class in progress", cmd.teacher)
				}
				id = active.ID
			}

			sess, err := cmd.app.Guard.Resume(ctx, cmd.teacher, id)
			if err != nil {
				return fmt.Errorf("resume class: %w", err)
			}
			return cmd.printSession(c, sess)
		},
	}
}

func (cmd *ClassCmd) abandonCmd() *cli.Command {
	return &cli.Command{
		Name:      "abandon",
		Usage:     "Abandon the class in progress and start a new one",
		UsageText: "linglenz class abandon --teacher T --student S",
		Flags:     []cli.Flag{cmd.teacherFlag(), cmd.studentFlag(), cmd.jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			sess, err := cmd.app.Guard.AbandonAndStart(ctx, cmd.teacher, cmd.student)
			if err != nil {
				return fmt.Errorf("abandon and start class: %w", err)
			}
			return cmd.printSession(c, sess)
		},
	}
}

func (cmd *ClassCmd) endCmd() *cli.Command {
	return &cli.Command{
		Name:          "end",
		Usage:         "End a class; it moves to pending review",
		UsageText:     "linglenz class end <session-id>",
		Flags:         []cli.Flag{cmd.jsonFlag()},
		ShellComplete: ActiveSessionCompleter(cmd.app),
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := sessionArg(c)
			if err != nil {
				return err
			}
			sess, err := cmd.app.Classes.Finish(ctx, id)
			if err != nil {
				return fmt.Errorf("end class: %w", err)
			}
			return cmd.printSession(c, sess)
		},
	}
}

func (cmd *ClassCmd) completeCmd() *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Mark a reviewed class as completed",
		UsageText: "linglenz class complete <session-id>",
		Flags:     []cli.Flag{cmd.jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := sessionArg(c)
			if err != nil {
				return err
			}
			sess, err := cmd.app.Guard.Complete(ctx, id)
			if err != nil {
				return fmt.Errorf("complete class: %w", err)
			}
			return cmd.printSession(c, sess)
		},
	}
}

func (cmd *ClassCmd) statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the class in progress",
		UsageText: "linglenz class status --teacher T | --all",
		Flags: []cli.Flag{
			cmd.teacherFlag(),
			&cli.BoolFlag{
				Name:        "all",
				Usage:       "list classes in progress for every teacher",
				Destination: &cmd.all,
			},
			cmd.jsonFlag(),
		},
		Action: cmd.runStatus,
	}
}

// activeOutput is the JSON output format for linglenz class status.
type activeOutput struct {
	Active  bool               `json:"active"`
	Session *classroom.Session `json:"session,omitempty"`
}

func (cmd *ClassCmd) runStatus(ctx context.Context, c *cli.Command) error {
	out := c.Root().Writer

	if cmd.all {
		sessions, err := cmd.app.Guard.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list classes in progress: %w", err)
		}
		if cmd.jsonOutput {
			for _, s := range sessions {
				if err := iojson.WriteLine(out, s); err != nil {
					return fmt.Errorf("encode session: %w", err)
				}
			}
			return nil
		}
		if len(sessions) == 0 {
			fmt.Fprintf(os.Stderr, "No classes in progress\n")
			return nil
		}
		printSessions(out, sessions)
		return nil
	}

	active, err := cmd.app.Guard.CheckActive(ctx, cmd.teacher)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(out, os.Stderr, activeOutput{Active: active != nil, Session: active})
	}
	if active == nil {
		fmt.Fprintf(os.Stderr, "No class in progress\n")
		return nil
	}
	printActive(out, *active)
	return nil
}

func (cmd *ClassCmd) pendingCmd() *cli.Command {
	return &cli.Command{
		Name:      "pending",
		Usage:     "List ended classes awaiting review",
		UsageText: "linglenz class pending --teacher T",
		Flags:     []cli.Flag{cmd.teacherFlag(), cmd.jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			sessions, err := cmd.app.Guard.ListPendingReview(ctx, cmd.teacher)
			if err != nil {
				return fmt.Errorf("list pending review: %w", err)
			}

			out := c.Root().Writer
			if cmd.jsonOutput {
				for _, s := range sessions {
					if err := iojson.WriteLine(out, s); err != nil {
						return fmt.Errorf("encode session: %w", err)
					}
				}
				return nil
			}
			if len(sessions) == 0 {
				fmt.Fprintf(os.Stderr, "No classes pending review\n")
				return nil
			}
			printSessions(out, sessions)
			return nil
		},
	}
}

func (cmd *ClassCmd) printSession(c *cli.Command, sess classroom.Session) error {
	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, sess)
	}
	printSessions(c.Root().Writer, []classroom.Session{sess})
	return nil
}

func sessionArg(c *cli.Command) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("session id is required")
	}
	return id, nil
}
