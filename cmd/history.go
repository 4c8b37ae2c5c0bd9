package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/startstop/internal/logging"
	"github.com/smazurov/startstop/internal/measure"
	"github.com/spf13/cobra"
)

// CreateHistoryCmd creates the history command.
func CreateHistoryCmd() *cobra.Command {
	var query measure.Query

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded measurements from the SQLite sink",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *Options) {
			exitOnError(cmd, showHistory(cmd, opts, query))
		}),
	}

	cmd.Flags().StringVar(&query.App, "app", "", "Only this app")
	cmd.Flags().StringVar(&query.Mode, "mode", "", "Only this mode")
	cmd.Flags().IntVarP(&query.Limit, "limit", "n", 20, "Maximum rows, newest first (0 for all)")
	return cmd
}

func showHistory(cmd *cobra.Command, opts *Options, query measure.Query) error {
	if err := opts.Load(cmd); err != nil {
		return err
	}
	db, err := measure.OpenSQLite(opts.Database, logging.GetLogger("measure"))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opts.Database, err)
	}
	defer db.Close()

	records, err := db.List(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("failed to query measurements: %w", err)
	}
	printRecords(cmd.OutOrStdout(), records)
	return nil
}

func printRecords(w io.Writer, records []measure.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(measure.Header, "\t"))
	for _, r := range records {
		fmt.Fprintln(tw, strings.Join(r.Row(), "\t"))
	}
	tw.Flush()
}
