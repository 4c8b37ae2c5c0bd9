// Package suite describes the applications and build modes under test.
package suite

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Probe is an HTTP endpoint and the content its body must contain.
type Probe struct {
	URL     string `toml:"url"`
	Content string `toml:"content"`
}

// App identifies an application fixture.
type App struct {
	Name string `toml:"-"`

	// Dir is the working directory; relative paths resolve against the suite file.
	Dir    string   `toml:"dir"`
	Probes []Probe  `toml:"probes"`
	Env    []string `toml:"env,omitempty"`

	// Whitelist holds regular expressions for log lines tolerated despite
	// containing a forbidden marker.
	Whitelist []string `toml:"whitelist,omitempty"`
}

// Mode is a build mode: a named pair of build and run command lines.
type Mode struct {
	Name   string `toml:"-"`
	Build  string `toml:"build"`
	Run    string `toml:"run"`
	Native bool   `toml:"native,omitempty"`
}

// Platform declares capabilities of the host, set explicitly in configuration.
type Platform struct {
	// GracefulSignals allows a termination signal before the forceful kill.
	GracefulSignals bool `toml:"graceful_signals"`
	// Native allows modes marked native (ahead-of-time compiled builds).
	Native bool `toml:"native"`
}

// MarkerSet lists the markers the log verifier applies to one log.
type MarkerSet struct {
	Required  []string `toml:"required,omitempty"`
	Forbidden []string `toml:"forbidden,omitempty"`
}

// Markers holds the marker sets for build and run logs.
type Markers struct {
	Build MarkerSet `toml:"build"`
	Run   MarkerSet `toml:"run"`
}

// Defaults are per-case timing knobs.
type Defaults struct {
	BuildTimeout  Duration `toml:"build_timeout"`
	ProbeAttempts int      `toml:"probe_attempts"`
	ProbeInterval Duration `toml:"probe_interval"`
	PortTimeout   Duration `toml:"port_timeout"`

	// Clean lists doublestar patterns, relative to the app dir, removed before
	// and after each case.
	Clean []string `toml:"clean"`
}

// Suite is the full test definition.
type Suite struct {
	Name     string          `toml:"name"`
	Platform Platform        `toml:"platform"`
	Defaults Defaults        `toml:"defaults"`
	Markers  Markers         `toml:"markers"`
	Apps     map[string]App  `toml:"apps"`
	Modes    map[string]Mode `toml:"modes"`

	// BaseDir is the directory of the suite file.
	BaseDir string `toml:"-"`
}

// Pair is one (app, mode) combination to test.
type Pair struct {
	App  App
	Mode Mode
}

// Name returns "app/mode".
func (p Pair) Name() string {
	return p.App.Name + "/" + p.Mode.Name
}

// Duration is a time.Duration decoded from a TOML string such as "30m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppNames returns app names sorted.
func (s *Suite) AppNames() []string {
	names := make([]string, 0, len(s.Apps))
	for name := range s.Apps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ModeNames returns mode names sorted.
func (s *Suite) ModeNames() []string {
	names := make([]string, 0, len(s.Modes))
	for name := range s.Modes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Select returns the (app, mode) pairs to run, in app-then-mode order.
// Empty filters select everything; unknown names are an error.
func (s *Suite) Select(apps, modes []string) ([]Pair, error) {
	if len(apps) == 0 {
		apps = s.AppNames()
	}
	if len(modes) == 0 {
		modes = s.ModeNames()
	}

	pairs := make([]Pair, 0, len(apps)*len(modes))
	for _, a := range apps {
		app, ok := s.Apps[a]
		if !ok {
			return nil, fmt.Errorf("unknown app %q (have %v)", a, s.AppNames())
		}
		for _, m := range modes {
			mode, ok := s.Modes[m]
			if !ok {
				return nil, fmt.Errorf("unknown mode %q (have %v)", m, s.ModeNames())
			}
			pairs = append(pairs, Pair{App: app, Mode: mode})
		}
	}
	return pairs, nil
}

// Validate checks the suite for missing or malformed fields.
func (s *Suite) Validate() error {
	if len(s.Apps) == 0 {
		return fmt.Errorf("suite defines no apps")
	}
	if len(s.Modes) == 0 {
		return fmt.Errorf("suite defines no modes")
	}
	for name, app := range s.Apps {
		if app.Dir == "" {
			return fmt.Errorf("app %q: dir is required", name)
		}
		if len(app.Probes) == 0 {
			return fmt.Errorf("app %q: at least one probe is required", name)
		}
		for i, p := range app.Probes {
			u, err := url.Parse(p.URL)
			if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("app %q: probe %d: invalid url %q", name, i, p.URL)
			}
		}
	}
	for name, mode := range s.Modes {
		if mode.Build == "" || mode.Run == "" {
			return fmt.Errorf("mode %q: build and run commands are required", name)
		}
	}
	if s.Defaults.ProbeAttempts < 1 {
		return fmt.Errorf("defaults.probe_attempts must be at least 1")
	}
	return nil
}
