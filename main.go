package main

import (
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/startstop/cmd"
	"github.com/smazurov/startstop/internal/logging"
	"github.com/smazurov/startstop/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	// Create Huma CLI
	cli := humacli.New(func(_ humacli.Hooks, opts *cmd.Options) {
		// Baseline logging from flags; subcommands refine it once the
		// config file and environment are merged.
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
		})
	})

	root := cli.Root()
	root.Use = "startstop"
	root.Short = "Start/stop performance harness"
	root.Long = `Builds each application in each build mode, launches it, waits for HTTP readiness, ` +
		`samples memory and open file descriptors, stops it and records startup and shutdown timings.`
	root.Version = version.Get().String()
	root.Run = func(c *cobra.Command, _ []string) {
		_ = c.Help()
	}

	root.AddCommand(
		cmd.CreateRunCmd(),
		cmd.CreateListCmd(),
		cmd.CreateHistoryCmd(),
		cmd.CreateWatchCmd(),
		cmd.CreateVersionCmd(),
	)

	// Run the CLI
	cli.Run()
}
