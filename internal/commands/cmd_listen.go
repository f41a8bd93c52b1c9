package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/core/styles"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/pkg/iojson"
)

type ListenCmd struct {
	flags *Flags
	app   *lenz.App

	// flags
	language   string
	drain      time.Duration
	jsonOutput bool
}

// NewListenCmd creates a new listen command
func NewListenCmd(flags *Flags, app *lenz.App) *ListenCmd {
	return &ListenCmd{flags: flags, app: app}
}

// Register adds the listen command to the application
func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "listen",
		Usage:     "Capture the microphone for a class and print analyses live",
		UsageText: "linglenz listen <session-id> [--language L] [--json]",
		Description: `Captures the default microphone for a class in progress. Every few seconds
the captured audio is transcribed and each utterance is analyzed; entries are
printed as they settle.

Press Ctrl-C to stop capturing. Analyses already started are given --drain to
finish before the command exits.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "language",
				Aliases:     []string{"l"},
				Usage:       "language spoken in the class",
				Destination: &cmd.language,
			},
			&cli.DurationFlag{
				Name:        "drain",
				Usage:       "time to wait for analyses in flight after capture stops",
				Value:       30 * time.Second,
				Destination: &cmd.drain,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output entry updates as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		ShellComplete: ActiveSessionCompleter(cmd.app),
		Action:        cmd.run,
	})

	return app
}

func (cmd *ListenCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The bus outlives the signal so updates arriving while draining are printed.
	cmd.app.Start(ctx)

	room, err := cmd.app.Classes.Open(ctx, id, cmd.language)
	if err != nil {
		return fmt.Errorf("open class: %w", err)
	}

	tracker := trackEntries(ctx, cmd.app.Bus, id)
	failed := make(chan error, 1)
	cmd.app.Bus.SubscribeCaptureFailed(func(p eventbus.CaptureFailedPayload) {
		if p.SessionID != id {
			return
		}
		select {
		case failed <- p.Err:
		default:
		}
	})

	if err := room.StartCapture(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	w := c.Root().Writer
	fmt.Fprintln(os.Stderr, styles.TextPrimaryBoldStyle.Render("Listening")+" "+styles.TextMutedStyle.Render("(Ctrl-C to stop)"))

	var captureErr error
loop:
	for {
		select {
		case <-sigCtx.Done():
			break loop
		case captureErr = <-failed:
			break loop
		case p := <-tracker.Updates():
			cmd.print(w, p.Entry)
		}
	}

	if err := room.StopCapture(); err != nil {
		log.Warn().Err(err).Msg("failed to stop capture")
	}

	drainCtx, cancel := context.WithTimeout(ctx, cmd.drain)
	defer cancel()
	waitErr := room.Drain(drainCtx)

	// Updates are delivered asynchronously; flush the ones still queued.
flush:
	for {
		select {
		case p := <-tracker.Updates():
			cmd.print(w, p.Entry)
		case <-time.After(250 * time.Millisecond):
			break flush
		}
	}
	if errors.Is(waitErr, context.DeadlineExceeded) {
		fmt.Fprintln(os.Stderr, styles.TextWarningStyle.Render("gave up waiting for analyses in flight"))
	}

	if captureErr != nil {
		return fmt.Errorf("capture failed: %w", captureErr)
	}
	return nil
}

// print writes settled entries only. Thinking updates are noise on a terminal.
func (cmd *ListenCmd) print(w io.Writer, e mistake.Entry) {
	if cmd.jsonOutput {
		_ = iojson.WriteLine(w, e)
		return
	}
	if e.Status == mistake.StatusThinking {
		return
	}
	printEntry(w, e)
}
