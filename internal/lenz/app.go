package lenz

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/config"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/logging"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/metrics"
)

// Deps are the collaborators App is built from. Transcriber and Opener are
// optional; without them classes accept typed input only.
type Deps struct {
	Sessions    classroom.Store
	Entries     mistake.Store
	Checker     correction.Checker
	Transcriber Transcriber
	Opener      capture.Opener
	Bus         *eventbus.EventBus
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// App is the central entry point for class operations.
// Commands and the HTTP API consume App instead of raw dependencies.
type App struct {
	Config  *config.Config
	Bus     *eventbus.EventBus
	Metrics *metrics.Metrics
	Checker correction.Checker
	Guard   *Guard
	Classes *ClassService
	Watcher *Watcher
}

// NewApp constructs an App from explicit dependencies.
func NewApp(cfg *config.Config, deps Deps) *App {
	guard := NewGuard(deps.Sessions, deps.Bus, deps.Metrics, logging.Component("guard"))

	classes := NewClassService(
		guard,
		deps.Entries,
		deps.Checker,
		deps.Transcriber,
		deps.Opener,
		deps.Bus,
		ClassConfig{
			DefaultLanguage:    cfg.Correction.DefaultLanguage,
			AutoRetryLimit:     cfg.AutoRetryLimit(),
			AutoRetryDelay:     cfg.Analysis.AutoRetryDelay,
			RetryBackendErrors: cfg.RetryBackendErrors(),
			MaxInFlight:        cfg.Analysis.MaxInFlight,
			Format: capture.Format{
				SampleRate: cfg.Capture.SampleRate,
				Channels:   cfg.Capture.Channels,
			},
			SegmentInterval:  cfg.Capture.SegmentInterval,
			SilenceThreshold: cfg.Capture.SilenceThreshold,
		},
		deps.Metrics,
		logging.Component("classes"),
	)

	return &App{
		Config:  cfg,
		Bus:     deps.Bus,
		Metrics: deps.Metrics,
		Checker: deps.Checker,
		Guard:   guard,
		Classes: classes,
		Watcher: NewWatcher(deps.Sessions, deps.Bus, cfg.Sessions.PollInterval, logging.Component("watcher")),
	}
}

// Start registers subscribers and runs the event bus and the session
// watcher until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	eventbus.NewActiveSessionRouter(a.Bus).Register()
	a.Classes.Register()

	go a.Bus.Start(ctx)
	go a.Watcher.Run(ctx)
}

// Close shuts down every open class.
func (a *App) Close() {
	a.Classes.Close()
}
