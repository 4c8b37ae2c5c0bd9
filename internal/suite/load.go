package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/startstop/internal/faults"
)

// Default timing values, matching the long-standing start/stop suite.
const (
	DefaultBuildTimeout  = 30 * time.Minute
	DefaultProbeAttempts = 10
	DefaultProbeInterval = time.Second
	DefaultPortTimeout   = 60 * time.Second
)

// DefaultClean is used when a suite does not list clean patterns.
var DefaultClean = []string{"target", "logs"}

// Load reads, defaults and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}

	s := &Suite{
		Platform: Platform{GracefulSignals: true, Native: true},
	}
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, faults.Wrap(faults.CodeInvalidConfig, "failed to parse suite", err, map[string]any{"path": path})
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s.BaseDir = filepath.Dir(abs)
	if s.Name == "" {
		s.Name = trimExt(filepath.Base(path))
	}

	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, faults.Wrap(faults.CodeInvalidConfig, "invalid suite", err, map[string]any{"path": path})
	}
	return s, nil
}

func (s *Suite) applyDefaults() {
	if s.Defaults.BuildTimeout == 0 {
		s.Defaults.BuildTimeout = Duration(DefaultBuildTimeout)
	}
	if s.Defaults.ProbeAttempts == 0 {
		s.Defaults.ProbeAttempts = DefaultProbeAttempts
	}
	if s.Defaults.ProbeInterval == 0 {
		s.Defaults.ProbeInterval = Duration(DefaultProbeInterval)
	}
	if s.Defaults.PortTimeout == 0 {
		s.Defaults.PortTimeout = Duration(DefaultPortTimeout)
	}
	if s.Defaults.Clean == nil {
		s.Defaults.Clean = DefaultClean
	}

	for name, app := range s.Apps {
		app.Name = name
		if !filepath.IsAbs(app.Dir) && app.Dir != "" {
			app.Dir = filepath.Join(s.BaseDir, app.Dir)
		}
		s.Apps[name] = app
	}
	for name, mode := range s.Modes {
		mode.Name = name
		s.Modes[name] = mode
	}
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
