package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Signal selects how a process is asked to terminate.
type Signal int

// Termination kinds.
const (
	Graceful Signal = iota // SIGTERM to the process group
	Forceful               // SIGKILL to the process group
)

func (s Signal) String() string {
	if s == Forceful {
		return "forceful"
	}
	return "graceful"
}

// Handle is a live process owned by exactly one component at a time.
type Handle interface {
	// ID returns the operating system process id.
	ID() int
	// IsAlive reports whether the process has not yet been reaped.
	IsAlive() bool
	// Terminate signals the whole process group. A process that is already
	// gone is not an error.
	Terminate(sig Signal) error
	// Wait blocks until the process exits or timeout elapses and reports
	// whether it exited.
	Wait(timeout time.Duration) bool
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Process is the exec-backed Handle returned by Runner.Start.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

func newProcess(cmd *exec.Cmd) *Process {
	p := &Process{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p
}

// ID implements Handle.
func (p *Process) ID() int { return p.pid }

// Done implements Handle.
func (p *Process) Done() <-chan struct{} { return p.done }

// IsAlive implements Handle.
func (p *Process) IsAlive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate implements Handle. Forceful termination is always sent to the
// group so that orphaned children of an exited leader are reaped too.
func (p *Process) Terminate(sig Signal) error {
	s := unix.SIGTERM
	if sig == Forceful {
		s = unix.SIGKILL
	} else if !p.IsAlive() {
		return nil
	}

	if err := unix.Kill(-p.pid, s); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to send %s signal to process group %d: %w", sig, p.pid, err)
	}
	return nil
}

// Wait implements Handle.
func (p *Process) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// ExitCode returns the exit code once the process has exited, or -1 while
// it is still running. A process killed by a signal reports -1 as well.
func (p *Process) ExitCode() int {
	if p.IsAlive() {
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd.ProcessState != nil {
		return p.cmd.ProcessState.ExitCode()
	}
	return exitCodeFromError(p.exitErr)
}

// Err returns the error reported by exec once the process has exited.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}
