package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/config"
	"github.com/autonfe/desk/internal/dispatch"
	"github.com/autonfe/desk/internal/notify"
	"github.com/autonfe/desk/internal/platform/logger"
	"github.com/autonfe/desk/internal/platform/telemetry"
	"github.com/autonfe/desk/internal/retrieval"
	"github.com/autonfe/desk/internal/task"
)

// DocumentClient is the real document client. Builds that link one set it
// from their main package; without it only --simulate is available.
var DocumentClient retrieval.Client

// errNoClient is returned when no real client is linked and --simulate is off.
var errNoClient = errors.New("no document client in this build; run with --simulate")

// commonFlags are shared by the commands that build an application.
type commonFlags struct {
	configFile string
	envFile    string
	simulate   bool
	failAt     int
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "Path to a config file (yaml, json or toml)")
	fs.StringVar(&c.envFile, "env-file", "", "Path to a .env file (default .env)")
	fs.BoolVar(&c.simulate, "simulate", false, "Use the simulated document client")
	fs.IntVar(&c.failAt, "fail-at", 0, "Make the simulated client fail at this step")
	fs.BoolVar(&c.verbose, "verbose", false, "Log to stderr and use plain output")
}

// application holds the shared dependencies of a command and ensures the
// log file is closed on exit.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	client   retrieval.Client
	closeLog func() error

	shutdownMetrics telemetry.ShutdownFunc
	closeMetrics    func() error
}

func loadConfig(flags commonFlags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: flags.configFile, EnvFile: flags.envFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newApplication sets up logging and picks the client. logOutput receives
// logs when no log file is configured.
func newApplication(flags commonFlags, cfg *config.Config, logOutput io.Writer) (*application, error) {
	log, closeLog, err := logger.Setup(logger.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Output: logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	app := &application{config: cfg, logger: log, closeLog: closeLog}
	if err := app.setupMetrics(logOutput); err != nil {
		app.cleanup()
		return nil, err
	}

	switch {
	case flags.simulate:
		app.client = retrieval.NewSimulated(retrieval.SimulatedConfig{
			Documents:   cfg.Simulate.Documents,
			StepDelay:   cfg.Simulate.StepDelay,
			StatusEvery: cfg.Simulate.StatusEvery,
			FailAt:      flags.failAt,
			Logger:      log,
		})
	case DocumentClient != nil:
		app.client = DocumentClient
	default:
		app.cleanup()
		return nil, errNoClient
	}

	log.Debug("configuration loaded",
		"ui_mode", cfg.UI.Mode,
		"max_toasts", cfg.UI.MaxToasts,
		"simulate", flags.simulate)
	return app, nil
}

// core is the UI-independent part of the application: runner, toast stack
// and action machine sharing one UI context.
type core struct {
	runner  *task.Runner
	center  *notify.Center
	machine *action.Machine
}

// newCore builds the core on d. It must be called on the UI context, or
// before the UI context starts running work, since it renders the machine.
func (app *application) newCore(d dispatch.Dispatcher, view action.View, renderer notify.Renderer) *core {
	runnerConfig := task.DefaultRunnerConfig()
	runnerConfig.Logger = app.logger
	runner := task.NewRunner(d, runnerConfig)

	centerConfig := notify.DefaultConfig()
	centerConfig.Logger = app.logger
	centerConfig.MaxToasts = app.config.UI.MaxToasts
	centerConfig.DefaultDuration = app.config.UI.ToastDuration
	centerConfig.FadeDuration = app.config.UI.FadeDuration
	center := notify.NewCenter(d, renderer, centerConfig)

	return &core{
		runner:  runner,
		center:  center,
		machine: action.NewMachine(runner, center, view, app.logger),
	}
}

// setupMetrics installs the metric exporter when enabled. Metrics share the
// log destination unless a file is configured.
func (app *application) setupMetrics(fallback io.Writer) error {
	if !app.config.Metrics.Enabled {
		return nil
	}
	out := fallback
	if app.config.Metrics.File != "" {
		f, err := os.OpenFile(app.config.Metrics.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open metrics file: %w", err)
		}
		out = f
		app.closeMetrics = f.Close
	}
	if out == io.Discard {
		return nil
	}

	shutdown, err := telemetry.Setup(telemetry.Config{Output: out, Interval: app.config.Metrics.Interval})
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	app.shutdownMetrics = shutdown
	return nil
}

func (app *application) cleanup() {
	if app.shutdownMetrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.shutdownMetrics(ctx); err != nil {
			app.logger.Warn("failed to flush metrics", "error", err)
		}
		app.shutdownMetrics = nil
	}
	if app.closeMetrics != nil {
		if err := app.closeMetrics(); err != nil {
			app.logger.Warn("failed to close metrics file", "error", err)
		}
		app.closeMetrics = nil
	}
	if app.closeLog != nil {
		if err := app.closeLog(); err != nil {
			app.logger.Error("failed to close log file", "error", err)
		}
		app.closeLog = nil
	}
}
