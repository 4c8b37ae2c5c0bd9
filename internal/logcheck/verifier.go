package logcheck

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/logging"
	"github.com/smazurov/startstop/internal/suite"
)

// DefaultTailLines is the number of trailing log lines attached to errors.
const DefaultTailLines = 20

const maxLineBytes = 1 << 20

// LogContext identifies a log and the markers that apply to it.
type LogContext struct {
	App     string
	Mode    string
	Phase   string // "build" or "run"
	Markers suite.MarkerSet

	// Whitelist holds regular expressions; a line matching any of them is
	// never reported as forbidden.
	Whitelist []string
}

// Verifier checks log contents against a LogContext.
type Verifier struct {
	logger    logging.Logger
	tailLines int
}

// NewVerifier creates a Verifier.
func NewVerifier(logger logging.Logger) *Verifier {
	return &Verifier{logger: logger, tailLines: DefaultTailLines}
}

// CheckLog fails with LOG_CONTENT when a forbidden marker appears on a
// non-whitelisted line or a required marker never appears. The error
// carries the offending line and the log tail.
func (v *Verifier) CheckLog(path string, lc LogContext) error {
	whitelist, err := compileAll(lc.Whitelist)
	if err != nil {
		return faults.Wrap(faults.CodeInvalidConfig, "invalid whitelist pattern", err, map[string]any{"app": lc.App})
	}

	f, err := os.Open(path)
	if err != nil {
		return v.contentErr(path, lc, "log file is missing", err, nil)
	}
	defer f.Close()

	missing := make(map[string]bool, len(lc.Markers.Required))
	for _, m := range lc.Markers.Required {
		missing[m] = true
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		for m := range missing {
			if strings.Contains(line, m) {
				delete(missing, m)
			}
		}

		marker := firstContained(line, lc.Markers.Forbidden)
		if marker == "" || matchesAny(line, whitelist) {
			continue
		}
		return v.contentErr(path, lc, "forbidden marker in log", nil, map[string]any{
			"marker": marker,
			"line":   line,
			"lineno": lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Report in configuration order.
	for _, m := range lc.Markers.Required {
		if missing[m] {
			return v.contentErr(path, lc, "required marker missing from log", nil, map[string]any{"marker": m})
		}
	}

	v.logger.Debug("Log verified", "path", path, "app", lc.App, "mode", lc.Mode, "phase", lc.Phase, "lines", lineNo)
	return nil
}

func (v *Verifier) contentErr(path string, lc LogContext, msg string, cause error, extra map[string]any) error {
	ctx := map[string]any{
		"path":  path,
		"app":   lc.App,
		"mode":  lc.Mode,
		"phase": lc.Phase,
	}
	for k, val := range extra {
		ctx[k] = val
	}
	if tail, err := Tail(path, v.tailLines); err == nil {
		ctx[faults.TailKey] = strings.Join(tail, "\n")
	}

	if cause != nil {
		return faults.Wrap(faults.CodeLogContent, msg, cause, ctx)
	}
	return faults.New(faults.CodeLogContent, msg, ctx)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func firstContained(line string, markers []string) string {
	for _, m := range markers {
		if m != "" && strings.Contains(line, m) {
			return m
		}
	}
	return ""
}

func matchesAny(line string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Tail returns up to the last n lines of the file at path.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, scanner.Err()
}
