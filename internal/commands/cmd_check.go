package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/core/styles"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/pkg/iojson"
)

type CheckCmd struct {
	flags *Flags
	app   *lenz.App

	// flags
	language   string
	jsonOutput bool
	input      iojson.FileReader[correction.Request]
}

// NewCheckCmd creates a new check command
func NewCheckCmd(flags *Flags, app *lenz.App) *CheckCmd {
	return &CheckCmd{flags: flags, app: app}
}

// Register adds the check command to the application
func (cmd *CheckCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "check",
		Usage:     "Correct a single sentence",
		UsageText: "linglenz check [--language L] [--json] <sentence...> | -f request.json",
		Description: `Sends one sentence through the correction waterfall and prints the result.

The sentence is taken from the arguments, or from a JSON request
({"sentence": "...", "language": "..."}) given with -f or piped on stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "language",
				Aliases:     []string{"l"},
				Usage:       "language the sentence is written in (defaults to correction.default_language)",
				Destination: &cmd.language,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the result as JSON",
				Destination: &cmd.jsonOutput,
			},
			cmd.input.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *CheckCmd) run(ctx context.Context, c *cli.Command) error {
	req, err := cmd.request(c)
	if err != nil {
		return err
	}

	res, err := cmd.app.Checker.Check(ctx, req)
	if err != nil {
		if cmd.jsonOutput {
			kind, last := errorKinds(err)
			_ = iojson.WriteError(c.Root().Writer, err.Error(), map[string]any{
				"kind":      kind,
				"last_kind": last,
			})
			return cli.Exit("", 1)
		}
		return err
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, res)
	}

	w := c.Root().Writer
	if res.IsCorrect {
		_, _ = fmt.Fprintln(w, styles.TextSuccessStyle.Render("✔ correct"))
	} else {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.TextErrorStyle.Render("✘"), res.CorrectedSentence)
	}
	if res.Explanation != "" {
		_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render(res.Explanation))
	}
	if len(res.Categories) > 0 {
		_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render(strings.Join(res.Categories, ", ")))
	}
	return nil
}

func (cmd *CheckCmd) request(c *cli.Command) (correction.Request, error) {
	var req correction.Request
	if c.Args().Present() {
		req.Sentence = strings.Join(c.Args().Slice(), " ")
	} else {
		r, err := cmd.input.Read()
		if err != nil {
			return req, err
		}
		req = r
	}
	if cmd.language != "" {
		req.Language = cmd.language
	}
	return req, nil
}

// errorKinds returns the kind of a correction failure and the kind of the
// last backend failure behind it.
func errorKinds(err error) (kind, last correction.Kind) {
	var ce *correction.Error
	if errors.As(err, &ce) {
		return ce.Kind, ce.Last().Kind
	}
	return correction.KindTransport, correction.KindTransport
}
