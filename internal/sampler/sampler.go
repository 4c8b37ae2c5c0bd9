// Package sampler reads resident memory and open file descriptor counts of
// a live process from /proc.
package sampler

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/procfs"
	"github.com/smazurov/startstop/internal/faults"
)

// Sample is a point-in-time resource reading.
type Sample struct {
	PID      int
	MemoryKB int64
	OpenFDs  int64
}

// Sampler reads process accounting from a procfs mount.
type Sampler struct {
	fs procfs.FS
}

// New creates a Sampler for the default /proc mount.
func New() (*Sampler, error) {
	return NewWithMount(procfs.DefaultMountPoint)
}

// NewWithMount creates a Sampler for the procfs mounted at mount.
func NewWithMount(mount string) (*Sampler, error) {
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", mount, err)
	}
	return &Sampler{fs: fs}, nil
}

// MemoryKB returns the resident set size of pid in kilobytes.
func (s *Sampler) MemoryKB(pid int) (int64, error) {
	_, stat, err := s.live(pid)
	if err != nil {
		return 0, err
	}
	return int64(stat.ResidentMemory()) / 1024, nil
}

// OpenFDs returns the number of open file descriptors of pid.
func (s *Sampler) OpenFDs(pid int) (int64, error) {
	proc, _, err := s.live(pid)
	if err != nil {
		return 0, err
	}
	n, err := proc.FileDescriptorsLen()
	if err != nil {
		return 0, s.readErr(pid, "fd", err)
	}
	return int64(n), nil
}

// Sample reads memory and descriptors together. The process must still be
// running; sample before initiating termination.
func (s *Sampler) Sample(pid int) (Sample, error) {
	proc, stat, err := s.live(pid)
	if err != nil {
		return Sample{}, err
	}
	n, err := proc.FileDescriptorsLen()
	if err != nil {
		return Sample{}, s.readErr(pid, "fd", err)
	}
	return Sample{
		PID:      pid,
		MemoryKB: int64(stat.ResidentMemory()) / 1024,
		OpenFDs:  int64(n),
	}, nil
}

// live returns the proc entry for pid, failing with PROCESS_GONE when the
// process no longer exists or is a zombie.
func (s *Sampler) live(pid int) (procfs.Proc, procfs.ProcStat, error) {
	proc, err := s.fs.Proc(pid)
	if err != nil {
		return procfs.Proc{}, procfs.ProcStat{}, s.readErr(pid, "proc", err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return procfs.Proc{}, procfs.ProcStat{}, s.readErr(pid, "stat", err)
	}
	if stat.State == "Z" || stat.State == "X" {
		return procfs.Proc{}, procfs.ProcStat{}, faults.New(faults.CodeProcessGone, "process has exited", map[string]any{
			"pid":   pid,
			"state": stat.State,
		})
	}
	return proc, stat, nil
}

func (s *Sampler) readErr(pid int, what string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return faults.Wrap(faults.CodeProcessGone, "process not found", err, map[string]any{"pid": pid})
	}
	return fmt.Errorf("failed to read %s of pid %d: %w", what, pid, err)
}
