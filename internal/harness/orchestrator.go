// Package harness drives one start/stop case per (app, mode) pair through
// build, launch, readiness, sampling, shutdown, log verification and
// measurement, with cleanup on every exit path.
package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/startstop/internal/events"
	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/logcheck"
	"github.com/smazurov/startstop/internal/measure"
	"github.com/smazurov/startstop/internal/probe"
	"github.com/smazurov/startstop/internal/suite"
)

// LogsDir is the directory, relative to the app dir, holding case logs.
const LogsDir = "logs"

// Result is the outcome of one case.
type Result struct {
	Pair     suite.Pair
	RunID    string
	State    State // terminal state
	FailedIn State // last state reached before the failure
	Record   *measure.Record
	Err      error
	Duration time.Duration
}

// Passed reports whether the case recorded a measurement.
func (r Result) Passed() bool { return r.State == StateRecorded }

// Orchestrator runs cases of one suite.
type Orchestrator struct {
	suite *suite.Suite
	deps  Deps
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(s *suite.Suite, deps Deps) *Orchestrator {
	return &Orchestrator{suite: s, deps: deps}
}

// BuildLog returns the build log path of a case.
func BuildLog(pair suite.Pair) string {
	return filepath.Join(pair.App.Dir, LogsDir, pair.Mode.Name+"-build.log")
}

// RunLog returns the run log path of a case.
func RunLog(pair suite.Pair) string {
	return filepath.Join(pair.App.Dir, LogsDir, pair.Mode.Name+"-run.log")
}

// RunCase executes one case. Cleanup has completed when RunCase returns.
func (o *Orchestrator) RunCase(ctx context.Context, pair suite.Pair) Result {
	c := &caseRun{
		o:     o,
		pair:  pair,
		runID: uuid.NewString(),
		state: StateInit,
		scope: NewScope(o.deps.Logger),
	}
	start := time.Now()
	res := Result{Pair: pair, RunID: c.runID}

	if pair.Mode.Native && !o.suite.Platform.Native {
		o.deps.Logger.Info("Skipping native mode, platform lacks native support", "case", pair.Name())
		res.State = StateSkipped
		c.finish(res, ResultSkipped)
		return res
	}

	record, err := c.executeRecovered(ctx)
	if err != nil {
		res.FailedIn = c.state
		res.Err = fmt.Errorf("%s failed after %s: %w", pair.Name(), c.state, err)
		c.transition(StateFailed, err)
	}

	c.scope.Close()
	res.Duration = time.Since(start)

	if err != nil {
		c.transition(StateFailedAfterCleanup, err)
		res.State = StateFailedAfterCleanup
		c.finish(res, ResultFailed)
		return res
	}

	res.State = StateRecorded
	res.Record = record
	c.finish(res, ResultPassed)
	return res
}

// caseRun holds the mutable state of one case.
type caseRun struct {
	o     *Orchestrator
	pair  suite.Pair
	runID string
	state State
	scope *Scope
}

// executeRecovered turns a panic in a collaborator into a case failure so
// the scope still releases the process, archives logs and cleans.
func (c *caseRun) executeRecovered(ctx context.Context) (record *measure.Record, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		c.o.deps.Logger.Error("Case panicked", "case", c.pair.Name(), "state", c.state, "panic", r, "stack", string(debug.Stack()))
		record = nil
		if e, ok := r.(error); ok {
			err = fmt.Errorf("panic: %w", e)
			return
		}
		err = fmt.Errorf("panic: %v", r)
	}()
	return c.execute(ctx)
}

func (c *caseRun) execute(ctx context.Context) (*measure.Record, error) {
	d := c.o.deps
	s := c.o.suite
	app, mode := c.pair.App, c.pair.Mode
	buildLog, runLog := BuildLog(c.pair), RunLog(c.pair)

	// Clean first, then keep logs; release order is the reverse.
	c.scope.Defer("clean target", func() error {
		return d.Cleaner.Clean(app.Dir, s.Defaults.Clean)
	})
	c.scope.Defer("archive build log", func() error {
		return d.Archiver.Archive(buildLog, s.Name, app.Name, mode.Name)
	})
	c.scope.Defer("archive run log", func() error {
		return d.Archiver.Archive(runLog, s.Name, app.Name, mode.Name)
	})

	if err := d.Cleaner.Clean(app.Dir, s.Defaults.Clean); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	c.transition(StateCleaned, nil)

	buildStart := time.Now()
	if err := d.Runner.Build(ctx, mode.Build, app.Dir, buildLog, s.Defaults.BuildTimeout.Std()); err != nil {
		return nil, err
	}
	buildTime := time.Since(buildStart)
	if err := d.Verifier.CheckLog(buildLog, c.logContext("build", s.Markers.Build)); err != nil {
		return nil, err
	}
	c.transition(StateBuilt, nil)

	h, err := d.Runner.Start(mode.Run, app.Dir, runLog, app.Env...)
	if err != nil {
		return nil, err
	}
	c.scope.Defer("stop process", func() error {
		return d.Terminator.Stop(h, true)
	})
	c.transition(StateRunning, nil)

	first := app.Probes[0]
	firstOK, err := d.Prober.WaitUntilReady(ctx, first.URL, first.Content, s.Defaults.ProbeAttempts, s.Defaults.ProbeInterval.Std())
	if err != nil {
		return nil, err
	}
	for _, p := range app.Probes[1:] {
		if ok, err := d.Prober.CheckOnce(ctx, p.URL, p.Content); !ok {
			if err == nil {
				err = faults.New(faults.CodeNotReady, "endpoint check failed", map[string]any{"url": p.URL})
			}
			return nil, err
		}
	}
	c.transition(StateProbed, nil)

	sample, err := d.Sampler.Sample(h.ID())
	if err != nil {
		return nil, err
	}
	c.transition(StateSampled, nil)

	if err := d.Terminator.Stop(h, false); err != nil {
		return nil, err
	}
	host, port, err := probe.ParseHostPort(first.URL)
	if err != nil {
		return nil, err
	}
	if !d.Terminator.WaitForPortClosed(ctx, host, port, s.Defaults.PortTimeout.Std()) {
		return nil, faults.New(faults.CodePortStillOpen, "port not released after stop", map[string]any{
			"host":    host,
			"port":    port,
			"timeout": s.Defaults.PortTimeout.Std().String(),
		})
	}
	c.transition(StateStopped, nil)

	if err := d.Verifier.CheckLog(runLog, c.logContext("run", s.Markers.Run)); err != nil {
		return nil, err
	}
	started, stopped, err := d.Extractor.Extract(runLog)
	if err != nil {
		return nil, err
	}
	c.transition(StateVerified, nil)

	record := measure.Record{
		RunID:           c.runID,
		Timestamp:       time.Now().UTC(),
		App:             app.Name,
		Mode:            mode.Name,
		BuildMs:         buildTime.Milliseconds(),
		TimeToFirstOKMs: firstOK.Milliseconds(),
		StartedMs:       logcheck.Millis(started),
		StoppedMs:       logcheck.Millis(stopped),
		RSSKB:           sample.MemoryKB,
		FDs:             sample.OpenFDs,
	}
	if err := d.Recorder.Record(ctx, record); err != nil {
		return nil, fmt.Errorf("record measurement: %w", err)
	}
	if d.Observer != nil {
		d.Observer.ObserveRecord(record)
	}
	if d.Bus != nil {
		d.Bus.Publish(events.MeasurementRecordedEvent{Suite: s.Name, Record: record})
	}
	c.transition(StateRecorded, nil)
	return &record, nil
}

func (c *caseRun) logContext(phase string, markers suite.MarkerSet) logcheck.LogContext {
	return logcheck.LogContext{
		App:       c.pair.App.Name,
		Mode:      c.pair.Mode.Name,
		Phase:     phase,
		Markers:   markers,
		Whitelist: c.pair.App.Whitelist,
	}
}

// transition moves to next, logging and publishing the change. FAILED does
// not overwrite the state so the failure point stays visible.
func (c *caseRun) transition(next State, cause error) {
	from := c.state
	if next != StateFailed {
		c.state = next
	}

	logger := c.o.deps.Logger
	if cause != nil {
		logger.Warn("Case state changed", "case", c.pair.Name(), "from", from, "to", next, "error", cause)
	} else {
		logger.Info("Case state changed", "case", c.pair.Name(), "from", from, "to", next)
	}

	if c.o.deps.Bus == nil {
		return
	}
	ev := events.CaseStateChangedEvent{
		RunID:     c.runID,
		Suite:     c.o.suite.Name,
		App:       c.pair.App.Name,
		Mode:      c.pair.Mode.Name,
		From:      string(from),
		To:        string(next),
		Timestamp: time.Now(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	c.o.deps.Bus.Publish(ev)
}

func (c *caseRun) finish(res Result, result string) {
	d := c.o.deps
	if d.Observer != nil {
		d.Observer.ObserveResult(c.pair.App.Name, c.pair.Mode.Name, result, res.Duration)
	}
	if d.Bus == nil {
		return
	}
	ev := events.CaseFinishedEvent{
		RunID:    c.runID,
		Suite:    c.o.suite.Name,
		App:      c.pair.App.Name,
		Mode:     c.pair.Mode.Name,
		Result:   result,
		Duration: res.Duration,
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	d.Bus.Publish(ev)
}

