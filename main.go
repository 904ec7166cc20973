package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/ffpipe/cmd"
	"github.com/smazurov/ffpipe/internal/api"
	"github.com/smazurov/ffpipe/internal/config"
	"github.com/smazurov/ffpipe/internal/engine"
	"github.com/smazurov/ffpipe/internal/events"
	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/metrics/exporters"
	"github.com/smazurov/ffpipe/internal/process"
	"github.com/smazurov/ffpipe/internal/systemd"
	"github.com/smazurov/ffpipe/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port         string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Process settings
	ProcessGracefulTimeout string `help:"Wait after SIGINT before SIGKILL" default:"5s" toml:"process.graceful_timeout" env:"PROCESS_GRACEFUL_TIMEOUT"`
	ProcessKillTimeout     string `help:"Wait after SIGKILL" default:"5s" toml:"process.kill_timeout" env:"PROCESS_KILL_TIMEOUT"`

	// Metrics settings
	MetricsProgressDir string `help:"Directory for ffmpeg progress sockets (empty disables)" default:"" toml:"metrics.progress_dir" env:"METRICS_PROGRESS_DIR"`

	// Reload stream sections when the config file changes
	WatchConfig bool `help:"Restart streams whose config section changes" default:"true" toml:"config.watch" env:"CONFIG_WATCH"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingProcess string `help:"Process logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingFFmpeg  string `help:"FFmpeg output logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingEngine  string `help:"Engine logging level" default:"info" toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func parseTimeout(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var root *cobra.Command
		if cli != nil {
			root = cli.Root()
		}
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"capture": opts.LoggingCapture,
				"process": opts.LoggingProcess,
				"ffmpeg":  opts.LoggingFFmpeg,
				"engine":  opts.LoggingEngine,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		engineConfig, err := config.LoadEngine(opts.Config)
		if err != nil {
			logger.Error("Invalid stream config", "config", opts.Config, "error", err)
			os.Exit(1)
		}

		eventBus := events.New()

		eng, err := engine.New(engineConfig, engine.Options{
			Events:      eventBus,
			ConfigPath:  opts.Config,
			ProgressDir: opts.MetricsProgressDir,
			Process: process.Options{
				GracefulTimeout: parseTimeout(opts.ProcessGracefulTimeout, process.DefaultGracefulTimeout),
				KillTimeout:     parseTimeout(opts.ProcessKillTimeout, process.DefaultKillTimeout),
			},
		})
		if err != nil {
			logger.Error("Failed to create engine", "error", err)
			os.Exit(1)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			Engine:         eng,
			EventBus:       eventBus,
			MetricsHandler: exporters.HTTPHandler(),
		})

		var watcher *config.Watcher[config.Engine]
		if opts.WatchConfig {
			watcher = config.NewConfigWatcher(opts.Config, config.LoadEngine, logging.GetLogger("config"),
				config.WithErrorHandler[config.Engine](func(err error) {
					logger.Warn("Ignoring invalid config change", "error", err)
				}))
			watcher.OnReload(func(next config.Engine) {
				if _, applyErr := eng.Apply(next); applyErr != nil {
					logger.Error("Failed to apply config change", "error", applyErr)
				}
			})
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		eventBus.Subscribe(func(e events.StreamEndedEvent) {
			logger.Warn("Stream ended", "direction", e.Direction, "reason", e.Reason, "delivered", e.Delivered)
			notifier.Status(e.Direction + " ended: " + e.Reason)
		})
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if startErr := eng.Start(ctx); startErr != nil {
				logger.Error("Some streams failed to start", "error", startErr)
			}
			if watcher != nil {
				if watchErr := watcher.Start(ctx); watchErr != nil {
					logger.Warn("Config watcher unavailable", "error", watchErr)
				}
			}

			notifier.Ready()
			go notifier.RunWatchdog(ctx, eng.Healthy)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
			cancel()

			// Streams stop after the API so no request restarts them.
			eng.Stop()
		})
	})

	cli.Root().Use = "ffpipe"
	cli.Root().Short = "Real-time capture and playout over ffmpeg pipes"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateCapsCmd())
	cli.Root().AddCommand(cmd.CreateRunCmd())

	cli.Run()
}
