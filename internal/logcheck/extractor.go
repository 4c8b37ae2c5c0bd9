package logcheck

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"

	"github.com/smazurov/startstop/internal/faults"
)

// Default timestamp patterns. Each must have one capture group holding the
// duration in seconds.
const (
	DefaultStartedPattern = `started in ([0-9]+(?:\.[0-9]+)?)s`
	DefaultStoppedPattern = `stopped in ([0-9]+(?:\.[0-9]+)?)s`
)

// Extractor parses self-reported start and stop durations from a run log.
type Extractor struct {
	started *regexp.Regexp
	stopped *regexp.Regexp
}

// NewExtractor creates an Extractor with the default patterns.
func NewExtractor() *Extractor {
	return &Extractor{
		started: regexp.MustCompile(DefaultStartedPattern),
		stopped: regexp.MustCompile(DefaultStoppedPattern),
	}
}

// NewExtractorWithPatterns creates an Extractor from custom patterns. Empty
// patterns fall back to the defaults.
func NewExtractorWithPatterns(started, stopped string) (*Extractor, error) {
	if started == "" {
		started = DefaultStartedPattern
	}
	if stopped == "" {
		stopped = DefaultStoppedPattern
	}

	e := &Extractor{}
	var err error
	if e.started, err = compileDuration(started); err != nil {
		return nil, err
	}
	if e.stopped, err = compileDuration(stopped); err != nil {
		return nil, err
	}
	return e, nil
}

func compileDuration(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, faults.Wrap(faults.CodeInvalidConfig, "invalid timestamp pattern", err, map[string]any{"pattern": pattern})
	}
	if re.NumSubexp() < 1 {
		return nil, faults.New(faults.CodeInvalidConfig, "timestamp pattern needs a capture group", map[string]any{"pattern": pattern})
	}
	return re, nil
}

// Extract returns the first started and stopped durations, in seconds,
// found in the log at path. Both are required; a missing one fails with
// PARSE_FAILED.
func (e *Extractor) Extract(path string) (started, stopped float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, faults.Wrap(faults.CodeParseFailed, "failed to open run log", err, map[string]any{"path": path})
	}
	defer f.Close()

	var haveStarted, haveStopped bool
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() && !(haveStarted && haveStopped) {
		line := scanner.Text()
		if !haveStarted {
			if v, ok := matchSeconds(e.started, line); ok {
				started, haveStarted = v, true
			}
		}
		if !haveStopped {
			if v, ok := matchSeconds(e.stopped, line); ok {
				stopped, haveStopped = v, true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch {
	case !haveStarted:
		return 0, 0, faults.New(faults.CodeParseFailed, "started timestamp not found", map[string]any{
			"path":    path,
			"pattern": e.started.String(),
		})
	case !haveStopped:
		return 0, 0, faults.New(faults.CodeParseFailed, "stopped timestamp not found", map[string]any{
			"path":    path,
			"pattern": e.stopped.String(),
		})
	}
	return started, stopped, nil
}

func matchSeconds(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Millis converts seconds to whole milliseconds, rounding to nearest.
func Millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
