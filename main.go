package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/commands"
	"github.com/colonyops/linglenz/internal/core/config"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/logging"
	"github.com/colonyops/linglenz/internal/core/styles"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/data/storage"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/internal/metrics"
	"github.com/colonyops/linglenz/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	// A missing .env is the common case.
	_ = godotenv.Load()

	var (
		logCloser func()
		app       = &lenz.App{}
		store     = &storage.Storage{}
		opened    bool
		opener    *capture.LazyOpener
	)

	flags := &commands.Flags{}

	root := &cli.Command{
		Name:      "linglenz",
		Usage:     "Real-time language mistake analysis for tutoring sessions",
		UsageText: "linglenz [global options] command [command options]",
		Description: `linglenz listens to a tutoring class, transcribes what the student says and
asks a waterfall of language models to correct each sentence.

Run 'linglenz serve' to start the HTTP API used by classroom clients.
Run 'linglenz class start' to begin a class from the terminal.`,
		Version:               build(),
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("LINGLENZ_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/logs/linglenz.log)",
				Sources:     cli.EnvVars("LINGLENZ_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("LINGLENZ_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("LINGLENZ_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			logFile := flags.LogFile
			if logFile == "" {
				logFile = cfg.LogFile()
			}
			logger, closer, err := logutils.New(flags.LogLevel, logFile, logutils.Rotation{
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
			})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			if palette, ok := styles.GetPalette(cfg.Theme); ok {
				styles.SetTheme(palette)
			}

			s, err := storage.Open(ctx, cfg)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}
			*store = *s
			opened = true

			m := metrics.New("linglenz")

			checker, transcriber, err := newCorrection(ctx, cfg, m)
			if err != nil {
				return ctx, err
			}

			bus := eventbus.New(256)
			eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))

			deps := lenz.Deps{
				Sessions: store.Sessions,
				Entries:  store.Entries,
				Checker:  checker,
				Bus:      bus,
				Metrics:  m,
				Logger:   log.Logger,
			}
			if transcriber != nil {
				opener = capture.NewLazyOpener(func() (capture.Opener, error) {
					return capture.NewMalgoOpener()
				})
				deps.Transcriber = transcriber
				deps.Opener = capture.NewExclusiveOpener(opener)
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*app = *lenz.NewApp(cfg, deps)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if app.Classes != nil {
				app.Close()
			}

			if opener != nil {
				if err := opener.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to release audio backend")
				}
			}

			if opened {
				if err := store.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	root = commands.NewServeCmd(flags, app).Register(root)
	root = commands.NewCheckCmd(flags, app).Register(root)
	root = commands.NewClassCmd(flags, app).Register(root)
	root = commands.NewEntriesCmd(flags, app).Register(root)
	root = commands.NewListenCmd(flags, app).Register(root)
	root = commands.NewConfigValidateCmd(flags).Register(root)
	root = commands.NewDBCmd(flags, store).Register(root)
	root = commands.NewDoctorCmd(flags, store).Register(root)

	exitCode := 0
	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Println()
		fmt.Println(err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}

// newCorrection builds the correction checker and, when Gemini credentials
// are present, the audio transcriber. Without credentials the gateway has no
// backends and every check fails with an all-backends-unavailable error.
func newCorrection(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (correction.Checker, lenz.Transcriber, error) {
	if cfg.Correction.Endpoint != "" {
		return correction.NewClient(cfg.Correction.Endpoint,
			correction.WithClientLanguage(cfg.Correction.DefaultLanguage),
		), nil, nil
	}

	opts := []correction.GatewayOption{
		correction.WithDefaultLanguage(cfg.Correction.DefaultLanguage),
		correction.WithPerModelTimeout(cfg.Correction.PerModelTimeout),
		correction.WithCache(cfg.Correction.CacheSize, cfg.Correction.CacheTTL),
		correction.WithMetrics(m),
		correction.WithLogger(logging.Component("correction")),
	}

	key := cfg.APIKey()
	if key == "" {
		log.Warn().
			Str("env", cfg.Correction.APIKeyEnv).
			Msg("no Gemini API key configured; corrections will fail")
		return correction.NewGateway(nil, opts...), nil, nil
	}

	client, err := correction.NewGeminiClient(ctx, correction.GeminiConfig{
		APIKey:  key,
		BaseURL: cfg.Correction.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	gateway := correction.NewGateway(correction.NewGeminiBackends(client, cfg.Correction.Models), opts...)
	transcriber := correction.NewGeminiTranscriber(client, cfg.Correction.Models[0])
	return gateway, transcriber, nil
}
