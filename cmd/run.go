package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/harness"
	"github.com/spf13/cobra"
)

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	var apps, modes []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run start/stop cases of the suite",
		Long: `Builds, launches, probes, samples and stops every selected (app, mode) pair, ` +
			`verifies its logs and records one measurement per passing case. ` +
			`Exits non-zero if any case failed.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *Options) {
			exitOnError(cmd, runSuite(cmd, opts, apps, modes))
		}),
	}

	cmd.Flags().StringSliceVar(&apps, "app", nil, "Apps to run (default all)")
	cmd.Flags().StringSliceVar(&modes, "mode", nil, "Modes to run (default all)")
	return cmd
}

func runSuite(cmd *cobra.Command, opts *Options, apps, modes []string) error {
	if err := opts.Load(cmd); err != nil {
		return err
	}

	s, pairs, err := loadPairs(opts.Suite, apps, modes)
	if err != nil {
		return err
	}
	sess, err := newSession(opts, s, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger().Info("Running suite", "suite", s.Name, "cases", len(pairs), "parallel", opts.Parallel)
	results, runErr := sess.run(ctx, pairs, opts.Parallel)
	printResults(cmd.OutOrStdout(), results)
	if runErr != nil {
		return fmt.Errorf("suite %s failed", s.Name)
	}
	return nil
}

// printResults writes one summary line per case, then the full failure
// report of every failed case.
func printResults(w io.Writer, results []harness.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tSTATE\tDURATION\tSTARTED\tSTOPPED\tRSS_KB\tFDS\tCODE")
	for _, r := range results {
		started, stopped, rss, fds := "-", "-", "-", "-"
		if r.Record != nil {
			started = fmt.Sprintf("%dms", r.Record.StartedMs)
			stopped = fmt.Sprintf("%dms", r.Record.StoppedMs)
			rss = fmt.Sprint(r.Record.RSSKB)
			fds = fmt.Sprint(r.Record.FDs)
		}
		code := ""
		if r.Err != nil {
			code = string(faults.CodeOf(r.Err))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Pair.Name(), r.State, r.Duration.Round(time.Millisecond), started, stopped, rss, fds, code)
	}
	tw.Flush()

	for _, r := range results {
		if r.Err == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s %s:\n", r.Pair.Name(), r.State)
		for _, line := range strings.Split(r.Err.Error(), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// runSelected runs the selected pairs of the session suite.
func runSelected(ctx context.Context, w io.Writer, sess *session, opts *Options, apps, modes []string) error {
	pairs, err := sess.suite.Select(apps, modes)
	if err != nil {
		return err
	}
	results, err := sess.run(ctx, pairs, opts.Parallel)
	printResults(w, results)
	return err
}
