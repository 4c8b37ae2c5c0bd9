package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/logging"
)

// Runner spawns build and run commands.
type Runner struct {
	logger      logging.Logger
	killTimeout time.Duration // timeout after SIGKILL before giving up on a build
}

// NewRunner creates a Runner.
func NewRunner(logger logging.Logger) *Runner {
	return &Runner{
		logger:      logger,
		killTimeout: 5 * time.Second,
	}
}

// Build runs command in workDir to completion, writing stdout and stderr to
// logFile. If timeout elapses first the whole process group is killed and
// the build fails with BUILD_TIMEOUT. A non-zero exit fails with BUILD_FAILED.
func (r *Runner) Build(ctx context.Context, command, workDir, logFile string, timeout time.Duration) error {
	p, err := r.spawn(command, workDir, logFile, nil)
	if err != nil {
		return err
	}
	r.logger.Info("Build started", "pid", p.ID(), "command", command, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.Done():
	case <-timer.C:
		r.kill(p)
		return faults.New(faults.CodeBuildTimeout, "build exceeded timeout", map[string]any{
			"command": command,
			"timeout": timeout.String(),
			"log":     logFile,
		})
	case <-ctx.Done():
		r.kill(p)
		return fmt.Errorf("build interrupted: %w", ctx.Err())
	}

	if code := p.ExitCode(); code != 0 {
		return faults.Wrap(faults.CodeBuildFailed, "build exited with non-zero status", p.Err(), map[string]any{
			"command":   command,
			"exit_code": code,
			"log":       logFile,
		})
	}
	r.logger.Info("Build finished", "pid", p.ID())
	return nil
}

// Start launches command in workDir and returns immediately with its handle.
// Extra env entries are appended to the current environment.
func (r *Runner) Start(command, workDir, logFile string, env ...string) (Handle, error) {
	p, err := r.spawn(command, workDir, logFile, env)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Process started", "pid", p.ID(), "command", command)
	return p, nil
}

func (r *Runner) spawn(command, workDir, logFile string, env []string) (*Process, error) {
	spawnErr := func(msg string, cause error) error {
		return faults.Wrap(faults.CodeSpawnFailed, msg, cause, map[string]any{
			"command": command,
			"dir":     workDir,
		})
	}

	args, err := ParseCommand(command)
	if err != nil {
		return nil, spawnErr("invalid command", err)
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, spawnErr("failed to create log directory", err)
	}
	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, spawnErr("failed to open log file", err)
	}
	// The child keeps its own descriptor.
	defer out.Close()

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = workDir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if err := cmd.Start(); err != nil {
		r.logger.Error("Failed to start process", "error", err, "command", command)
		return nil, spawnErr("failed to start process", err)
	}
	return newProcess(cmd), nil
}

func (r *Runner) kill(p *Process) {
	if err := p.Terminate(Forceful); err != nil {
		r.logger.Warn("Failed to kill build", "pid", p.ID(), "error", err)
	}
	if !p.Wait(r.killTimeout) {
		r.logger.Error("Build did not exit after kill signal", "pid", p.ID())
	}
}
