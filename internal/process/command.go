package process

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// ParseCommand splits a command line into arguments using shell-word rules.
// Quotes and backslash escapes are honoured; no expansion takes place.
func ParseCommand(command string) ([]string, error) {
	args, err := shlex.Split(strings.TrimSpace(command))
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
