package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/linglenz/internal/core/logging"
	"github.com/colonyops/linglenz/internal/httpapi"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/pkg/profiler"
)

type ServeCmd struct {
	flags *Flags
	app   *lenz.App

	// flags
	addr      string
	pprofAddr string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, app *lenz.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the HTTP API",
		UsageText: "linglenz serve [--addr host:port] [--pprof-addr host:port]",
		Description: `Starts the HTTP API used by classroom clients: the check-sentence endpoint,
class session management, entry operations and a websocket stream of session
events per teacher. Prometheus metrics are served at /metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to server.addr from config)",
				Sources:     cli.EnvVars("LINGLENZ_ADDR"),
				Destination: &cmd.addr,
			},
			&cli.StringFlag{
				Name:        "pprof-addr",
				Usage:       "serve pprof handlers on this address (disabled when empty)",
				Sources:     cli.EnvVars("LINGLENZ_PPROF_ADDR"),
				Destination: &cmd.pprofAddr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cmd.addr
	if addr == "" {
		addr = cmd.flags.Config.Server.Addr
	}

	srv := httpapi.New(cmd.app, logging.Component("httpapi"))
	srv.Register()
	cmd.app.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, addr)
	})
	if cmd.pprofAddr != "" {
		prof := profiler.New(logging.Component("profiler"))
		g.Go(func() error {
			return prof.Run(ctx, cmd.pprofAddr)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		cmd.app.Close()
		return nil
	})

	return g.Wait()
}
