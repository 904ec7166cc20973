package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/ffpipe/internal/config"
	"github.com/smazurov/ffpipe/internal/engine"
	"github.com/smazurov/ffpipe/internal/events"
	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/media"
)

// errStreamEnded stops the run group when the process reaches end of input.
var errStreamEnded = errors.New("stream ended")

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	var (
		configFile string
		command    string
		duration   time.Duration
		interval   time.Duration
		logJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "run <capture|record|playout>",
		Short: "Run one stream direction in the foreground",
		Long: `Starts a single direction from the config file and reports its status until ` +
			`interrupted, until --duration elapses or until the process reaches end of input.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"capture", "record", "playout"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := media.ParseDirection(args[0])
			if err != nil {
				return err
			}

			loggingConfig := config.LoadLoggingConfig(configFile)
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("run").With("direction", dir.String())

			cfg, err := config.LoadEngine(configFile)
			if err != nil {
				return err
			}
			if command != "" {
				overrideCommand(&cfg, dir, command)
			}

			bus := events.New()
			ended := make(chan events.StreamEndedEvent, 1)
			defer events.SubscribeToChannel(bus, ended)()

			eng, err := engine.New(cfg, engine.Options{Events: bus, ConfigPath: configFile})
			if err != nil {
				return err
			}
			defer eng.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if err := eng.StartDirection(dir); err != nil {
				return err
			}
			logger.Info("Stream running", "status", eng.DirectionStatus(dir).State)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				case e := <-ended:
					logger.Info("Stream ended", "reason", e.Reason, "delivered", e.Delivered)
					return errStreamEnded
				}
			})
			if interval <= 0 {
				interval = time.Second
			}
			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						st := eng.DirectionStatus(dir)
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s delivered=%d dropped=%d overruns=%d\n",
							st.Direction, st.State, st.Delivered, st.Dropped, st.Overruns)
					}
				}
			})

			if err := g.Wait(); err != nil && !errors.Is(err, errStreamEnded) {
				return err
			}
			eng.StopDirection(dir)

			st := eng.DirectionStatus(dir)
			logger.Info("Stream stopped", "delivered", st.Delivered, "dropped", st.Dropped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Configuration file")
	cmd.Flags().StringVar(&command, "command", "", "Override the process command for this direction")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Status report interval")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")
	return cmd
}

func overrideCommand(cfg *config.Engine, dir media.Direction, command string) {
	switch dir {
	case media.Capture:
		cfg.Video.Command = command
	case media.Record:
		cfg.Record.Command = command
	case media.Playout:
		cfg.Playout.Command = command
	}
}
