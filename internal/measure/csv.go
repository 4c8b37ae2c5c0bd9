package measure

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/smazurov/startstop/internal/logging"
)

// CSVRecorder appends rows to a CSV file, writing the header once when the
// file is new or empty.
type CSVRecorder struct {
	path   string
	logger logging.Logger
	mu     sync.Mutex
}

// NewCSVRecorder creates a CSVRecorder writing to path.
func NewCSVRecorder(path string, logger logging.Logger) *CSVRecorder {
	return &CSVRecorder{path: path, logger: logger}
}

// Record implements Recorder.
func (c *CSVRecorder) Record(_ context.Context, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create measurements dir: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return err
		}
	}
	if err := w.Write(r.Row()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}

	c.logger.Info("Measurement written", "path", c.path, "app", r.App, "mode", r.Mode)
	return f.Close()
}

// Close implements Recorder.
func (c *CSVRecorder) Close() error { return nil }
