// Package process builds, starts and stops the application under test.
//
// Runner executes build commands synchronously under a timeout and starts
// run commands in the background, returning a Handle:
//   - Command lines are split with shell-word rules, never run through a shell
//   - Each child gets its own process group so signals reach forked children
//   - stdout and stderr are merged into a truncated log file
//
// Terminator stops a Handle gracefully (SIGTERM, bounded grace period) and
// escalates to SIGKILL, then polls the application's TCP port until it is
// released.
//
// Example:
//
//	runner := process.NewRunner(logger)
//	h, err := runner.Start("java -jar target/app.jar", dir, "logs/jvm-run.log")
//	if err != nil {
//	    return err
//	}
//	term := process.NewTerminator(logger)
//	defer term.Stop(h, true)
package process
