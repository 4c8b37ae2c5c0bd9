package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/startstop/internal/suite"
	"github.com/spf13/cobra"
)

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	var apps, modes []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the cases a run would execute",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *Options) {
			exitOnError(cmd, listPairs(cmd, opts, apps, modes))
		}),
	}

	cmd.Flags().StringSliceVar(&apps, "app", nil, "Apps to list (default all)")
	cmd.Flags().StringSliceVar(&modes, "mode", nil, "Modes to list (default all)")
	return cmd
}

func listPairs(cmd *cobra.Command, opts *Options, apps, modes []string) error {
	if err := opts.Load(cmd); err != nil {
		return err
	}
	s, pairs, err := loadPairs(opts.Suite, apps, modes)
	if err != nil {
		return err
	}
	printPairs(cmd.OutOrStdout(), s, pairs)
	return nil
}

func printPairs(w io.Writer, s *suite.Suite, pairs []suite.Pair) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tDIR\tPROBES\tNOTE")
	for _, p := range pairs {
		note := ""
		if p.Mode.Native && !s.Platform.Native {
			note = "skipped: native builds unsupported"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Name(), p.App.Dir, len(p.App.Probes), note)
	}
	tw.Flush()
}
