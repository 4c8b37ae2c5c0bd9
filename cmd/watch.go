package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/startstop/internal/config"
	"github.com/smazurov/startstop/internal/metrics"
	"github.com/smazurov/startstop/internal/metrics/exporters"
	"github.com/smazurov/startstop/internal/suite"
	"github.com/spf13/cobra"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var apps, modes []string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the suite whenever the suite file changes",
		Long: `Runs the selected cases once, then again after every change to the suite file. ` +
			`Measurements accumulate in the configured sinks; when --metrics-listen is set ` +
			`the latest values are served at /metrics.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *Options) {
			exitOnError(cmd, watchSuite(cmd, opts, apps, modes, debounce))
		}),
	}

	cmd.Flags().StringSliceVar(&apps, "app", nil, "Apps to run (default all)")
	cmd.Flags().StringSliceVar(&modes, "mode", nil, "Modes to run (default all)")
	cmd.Flags().DurationVar(&debounce, "debounce", 1500*time.Millisecond, "Quiet period after a change before reloading")
	return cmd
}

// watchSuite runs the suite, then again after each settled change of the
// suite file, until cmd's context ends or a signal arrives.
func watchSuite(cmd *cobra.Command, opts *Options, apps, modes []string, debounce time.Duration) error {
	if err := opts.Load(cmd); err != nil {
		return err
	}
	s, err := suite.Load(opts.Suite)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	if opts.MetricsListen != "" {
		srv := serveMetrics(opts.MetricsListen, collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	reloads := make(chan *suite.Suite, 1)
	watcher := config.NewConfigWatcher(opts.Suite, suite.Load, logger(),
		config.WithDebounce[*suite.Suite](debounce),
		config.WithErrorHandler[*suite.Suite](func(err error) {
			logger().Error("Suite reload failed, keeping previous definition", "error", err)
		}),
	)
	watcher.OnReload(func(next *suite.Suite) {
		latest(reloads, next)
	})
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	for {
		runCycle(ctx, cmd.OutOrStdout(), opts, s, collector, apps, modes)
		logger().Info("Waiting for suite changes", "path", opts.Suite)
		select {
		case <-ctx.Done():
			return nil
		case s = <-reloads:
			logger().Info("Suite changed, re-running", "suite", s.Name)
		}
	}
}

// runCycle runs one pass over the suite. Failures are logged; watch keeps going.
func runCycle(ctx context.Context, w io.Writer, opts *Options, s *suite.Suite, collector *metrics.Collector, apps, modes []string) {
	sess, err := newSession(opts, s, collector)
	if err != nil {
		logger().Error("Failed to prepare suite", "suite", s.Name, "error", err)
		return
	}
	defer sess.Close()

	if err := runSelected(ctx, w, sess, opts, apps, modes); err != nil {
		logger().Error("Suite run failed", "suite", s.Name, "error", err)
	}
}

// latest replaces any pending value in ch with v.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// serveMetrics starts the /metrics listener in the background.
func serveMetrics(addr string, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporters.HTTPHandler(collector.Registry()))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger().Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger().Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}
