// Package artifacts archives case logs and removes build output between
// cases.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/smazurov/startstop/internal/logging"
)

// Archiver copies logs into a per-suite, per-case directory tree.
type Archiver struct {
	root   string
	logger logging.Logger
}

// NewArchiver creates an Archiver rooted at root.
func NewArchiver(root string, logger logging.Logger) *Archiver {
	return &Archiver{root: root, logger: logger}
}

// SuiteDir returns the archive directory of a suite.
func (a *Archiver) SuiteDir(suiteName string) string {
	return filepath.Join(a.root, safeName(suiteName))
}

// Dir returns the archive directory for one case.
func (a *Archiver) Dir(suiteName, app, mode string) string {
	return filepath.Join(a.root, safeName(suiteName), safeName(app), safeName(mode))
}

// Archive copies the file at path into the case directory. A missing file
// is not an error: a case that failed early has fewer logs.
func (a *Archiver) Archive(path, suiteName, app, mode string) error {
	src, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	dir := a.Dir(suiteName, app, mode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	dstPath := filepath.Join(dir, filepath.Base(path))
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dstPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return err
	}

	a.logger.Debug("Log archived", "src", path, "dst", dstPath)
	return nil
}

func safeName(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

// Cleaner removes build output matching doublestar patterns.
type Cleaner struct {
	logger logging.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(logger logging.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean removes every entry under dir matching any of patterns, such as
// "target" or "**/*.tmp". Patterns never escape dir.
func (c *Cleaner) Clean(dir string, patterns []string) error {
	var errs []error
	fsys := os.DirFS(dir)

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Errorf("invalid clean pattern %q", pattern))
			continue
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("pattern %q: %w", pattern, err))
			continue
		}
		for _, m := range matches {
			if m == "." {
				continue
			}
			target := filepath.Join(dir, filepath.FromSlash(m))
			if err := os.RemoveAll(target); err != nil {
				errs = append(errs, err)
				continue
			}
			c.logger.Debug("Removed build output", "path", target)
		}
	}
	return errors.Join(errs...)
}
