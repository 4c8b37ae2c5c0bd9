package process

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/smazurov/startstop/internal/logging"
)

// TerminatorOptions tunes a Terminator. Zero values use defaults.
type TerminatorOptions struct {
	GracefulTimeout time.Duration // wait after SIGTERM before SIGKILL
	KillTimeout     time.Duration // wait after SIGKILL before giving up
	PollInterval    time.Duration // port poll interval
	DialTimeout     time.Duration // per-connect timeout while polling

	// GracefulSignals is false on platforms where a process cannot be asked
	// to shut down; Stop then goes straight to SIGKILL.
	GracefulSignals bool
}

// DefaultTerminatorOptions returns the standard escalation timings.
func DefaultTerminatorOptions() TerminatorOptions {
	return TerminatorOptions{
		GracefulTimeout: 10 * time.Second,
		KillTimeout:     5 * time.Second,
		PollInterval:    250 * time.Millisecond,
		DialTimeout:     time.Second,
		GracefulSignals: true,
	}
}

// Terminator stops processes and waits for their ports to be released.
type Terminator struct {
	opts   TerminatorOptions
	logger logging.Logger
}

// NewTerminator creates a Terminator with default options.
func NewTerminator(logger logging.Logger) *Terminator {
	return NewTerminatorWithOptions(logger, DefaultTerminatorOptions())
}

// NewTerminatorWithOptions creates a Terminator, filling unset durations
// from the defaults.
func NewTerminatorWithOptions(logger logging.Logger, opts TerminatorOptions) *Terminator {
	def := DefaultTerminatorOptions()
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = def.GracefulTimeout
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = def.KillTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = def.DialTimeout
	}
	return &Terminator{opts: opts, logger: logger}
}

// Stop terminates h. Without force it sends SIGTERM, waits up to the grace
// period and escalates to SIGKILL. With force it kills immediately and
// ignores every error, so it is safe to call on an exited handle any number
// of times. Stop does not wait for the port to be released.
func (t *Terminator) Stop(h Handle, force bool) error {
	if h == nil {
		return nil
	}

	if force {
		if err := h.Terminate(Forceful); err != nil {
			t.logger.Debug("Forced stop ignored error", "pid", h.ID(), "error", err)
		}
		h.Wait(t.opts.KillTimeout)
		return nil
	}

	if !h.IsAlive() {
		return nil
	}

	if t.opts.GracefulSignals && t.stopGracefully(h) {
		return nil
	}

	if err := h.Terminate(Forceful); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", h.ID(), err)
	}
	if !h.Wait(t.opts.KillTimeout) {
		return fmt.Errorf("process %d did not exit after kill signal", h.ID())
	}
	return nil
}

// stopGracefully sends SIGTERM and reports whether h exited within the
// grace period.
func (t *Terminator) stopGracefully(h Handle) bool {
	t.logger.Info("Sending SIGTERM to process group", "pid", h.ID())
	if err := h.Terminate(Graceful); err != nil {
		t.logger.Warn("Failed to send SIGTERM", "pid", h.ID(), "error", err)
		return false
	}
	if h.Wait(t.opts.GracefulTimeout) {
		return true
	}
	t.logger.Warn("Graceful shutdown timeout, forcing kill", "pid", h.ID(), "timeout", t.opts.GracefulTimeout)
	return false
}

// WaitForPortClosed polls host:port until a connection is refused or
// timeout elapses. It returns true once the port is closed.
func (t *Terminator) WaitForPortClosed(ctx context.Context, host string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)
	dialer := net.Dialer{Timeout: t.opts.DialTimeout}

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		switch {
		case err == nil:
			conn.Close()
		case errors.Is(err, syscall.ECONNREFUSED):
			return true
		case ctx.Err() != nil:
			return false
		default:
			// Timeouts and resolver errors say nothing about the listener.
			t.logger.Debug("Port check inconclusive", "addr", addr, "error", err)
		}

		if time.Now().After(deadline) {
			t.logger.Warn("Port still open", "addr", addr, "timeout", timeout)
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(t.opts.PollInterval):
		}
	}
}
