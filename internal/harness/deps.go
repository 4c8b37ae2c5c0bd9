package harness

import (
	"context"
	"time"

	"github.com/smazurov/startstop/internal/events"
	"github.com/smazurov/startstop/internal/logcheck"
	"github.com/smazurov/startstop/internal/logging"
	"github.com/smazurov/startstop/internal/measure"
	"github.com/smazurov/startstop/internal/process"
	"github.com/smazurov/startstop/internal/sampler"
)

// Runner builds and launches commands. Implemented by *process.Runner.
type Runner interface {
	Build(ctx context.Context, command, workDir, logFile string, timeout time.Duration) error
	Start(command, workDir, logFile string, env ...string) (process.Handle, error)
}

// Prober checks HTTP readiness. Implemented by *probe.Prober.
type Prober interface {
	WaitUntilReady(ctx context.Context, endpoint, content string, maxAttempts int, interval time.Duration) (time.Duration, error)
	CheckOnce(ctx context.Context, endpoint, content string) (bool, error)
}

// Sampler reads process resources. Implemented by *sampler.Sampler.
type Sampler interface {
	Sample(pid int) (sampler.Sample, error)
}

// Terminator stops processes. Implemented by *process.Terminator.
type Terminator interface {
	Stop(h process.Handle, force bool) error
	WaitForPortClosed(ctx context.Context, host string, port int, timeout time.Duration) bool
}

// LogVerifier checks log markers. Implemented by *logcheck.Verifier.
type LogVerifier interface {
	CheckLog(path string, lc logcheck.LogContext) error
}

// TimestampExtractor parses start and stop durations. Implemented by
// *logcheck.Extractor.
type TimestampExtractor interface {
	Extract(path string) (started, stopped float64, err error)
}

// Archiver keeps case logs. Implemented by *artifacts.Archiver.
type Archiver interface {
	Archive(path, suiteName, app, mode string) error
}

// Cleaner removes build output. Implemented by *artifacts.Cleaner.
type Cleaner interface {
	Clean(dir string, patterns []string) error
}

// Observer receives measurements and outcomes. Implemented by
// *metrics.Collector.
type Observer interface {
	ObserveRecord(r measure.Record)
	ObserveResult(app, mode, result string, d time.Duration)
}

// Deps are the collaborators of an Orchestrator. Observer and Bus are
// optional.
type Deps struct {
	Runner     Runner
	Prober     Prober
	Sampler    Sampler
	Terminator Terminator
	Verifier   LogVerifier
	Extractor  TimestampExtractor
	Archiver   Archiver
	Cleaner    Cleaner
	Recorder   measure.Recorder
	Observer   Observer
	Bus        *events.Bus
	Logger     logging.Logger
}
