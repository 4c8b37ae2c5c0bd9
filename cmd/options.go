// Package cmd holds the startstop subcommands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/startstop/internal/config"
	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/logging"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"startstop.toml"`

	// Suite settings
	Suite    string `help:"Suite definition file" short:"s" default:"suite.toml" toml:"suite.file" env:"SUITE_FILE"`
	Parallel int    `help:"Cases run at the same time" short:"p" default:"1" toml:"run.parallel" env:"RUN_PARALLEL"`

	// Output settings
	OutputDir string `help:"Directory for archived logs and CSV results" default:"archive" toml:"output.dir" env:"OUTPUT_DIR"`
	Sinks     string `help:"Comma-separated measurement sinks (csv, sqlite)" default:"csv" toml:"output.sinks" env:"OUTPUT_SINKS"`
	Database  string `help:"SQLite measurement history" default:"archive/measurements.db" toml:"output.database" env:"OUTPUT_DATABASE"`
	Textfile  string `help:"Prometheus textfile written after each run (empty disables)" toml:"output.textfile" env:"OUTPUT_TEXTFILE"`

	// Probe settings
	ProbeTimeout     time.Duration `help:"Timeout of one readiness request" default:"5s" toml:"probe.request_timeout" env:"PROBE_REQUEST_TIMEOUT"`
	ProbeBackoff     string        `help:"Interval multiplier between readiness attempts (1 keeps it fixed)" default:"1" toml:"probe.backoff" env:"PROBE_BACKOFF"`
	ProbeMaxInterval time.Duration `help:"Upper bound of the growing probe interval" default:"5s" toml:"probe.max_interval" env:"PROBE_MAX_INTERVAL"`

	// Stop settings
	GracefulTimeout time.Duration `help:"Wait after the graceful signal before killing" default:"10s" toml:"stop.graceful_timeout" env:"STOP_GRACEFUL_TIMEOUT"`
	KillTimeout     time.Duration `help:"Wait for exit after the forceful kill" default:"5s" toml:"stop.kill_timeout" env:"STOP_KILL_TIMEOUT"`

	// Timestamp patterns
	StartedPattern string `help:"Regexp capturing startup seconds" toml:"timestamps.started" env:"TIMESTAMPS_STARTED"`
	StoppedPattern string `help:"Regexp capturing shutdown seconds" toml:"timestamps.stopped" env:"TIMESTAMPS_STOPPED"`

	// Watch settings
	MetricsListen string `help:"Address serving /metrics during watch (empty disables)" toml:"metrics.listen" env:"METRICS_LISTEN"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

// Load resolves the options for cmd and initializes logging.
func (o *Options) Load(cmd *cobra.Command) error {
	if err := config.LoadConfig(o, cmd); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Per-module levels come from the [logging] table; level and format
	// keep the precedence resolved above.
	loggingConfig := config.LoadLoggingConfig(o.Config)
	loggingConfig.Level = o.LoggingLevel
	loggingConfig.Format = o.LoggingFormat
	logging.Initialize(loggingConfig)

	logger().Debug("Configuration loaded",
		"config", o.Config,
		"suite", o.Suite,
		"parallel", o.Parallel,
		"sinks", o.Sinks)
	return nil
}

// SinkList returns the configured sink names.
func (o *Options) SinkList() []string {
	var sinks []string
	for _, s := range strings.Split(o.Sinks, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// Multiplier parses ProbeBackoff.
func (o *Options) Multiplier() (float64, error) {
	if o.ProbeBackoff == "" {
		return 1, nil
	}
	m, err := strconv.ParseFloat(o.ProbeBackoff, 64)
	if err != nil || m < 1 {
		return 0, faults.Wrap(faults.CodeInvalidConfig, "probe backoff must be a number >= 1", err,
			map[string]any{"probe_backoff": o.ProbeBackoff})
	}
	return m, nil
}

// logger returns the CLI logger.
func logger() *slog.Logger {
	return logging.GetLogger("main")
}

// exit terminates the process. Tests replace it.
var exit = os.Exit

// exitOnError reports err on the command's error stream and exits 1.
func exitOnError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	exit(1)
}
