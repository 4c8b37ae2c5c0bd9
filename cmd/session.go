package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/startstop/internal/artifacts"
	"github.com/smazurov/startstop/internal/events"
	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/harness"
	"github.com/smazurov/startstop/internal/logcheck"
	"github.com/smazurov/startstop/internal/logging"
	"github.com/smazurov/startstop/internal/measure"
	"github.com/smazurov/startstop/internal/metrics"
	"github.com/smazurov/startstop/internal/probe"
	"github.com/smazurov/startstop/internal/process"
	"github.com/smazurov/startstop/internal/sampler"
	"github.com/smazurov/startstop/internal/suite"
)

// Measurement sink names accepted in Options.Sinks.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
)

// session wires one suite to the harness collaborators.
type session struct {
	suite    *suite.Suite
	orch     *harness.Orchestrator
	recorder *measure.MultiRecorder
	metrics  *metrics.Collector
	bus      *events.Bus
	textfile string
	unsubs   []func()
}

// newSession builds the orchestrator and measurement sinks for s.
func newSession(opts *Options, s *suite.Suite, collector *metrics.Collector) (*session, error) {
	archiver := artifacts.NewArchiver(opts.OutputDir, logging.GetLogger("artifacts"))
	recorder, err := openRecorders(opts, archiver.SuiteDir(s.Name))
	if err != nil {
		return nil, err
	}

	extractor, err := logcheck.NewExtractorWithPatterns(opts.StartedPattern, opts.StoppedPattern)
	if err != nil {
		recorder.Close()
		return nil, err
	}
	smp, err := sampler.New()
	if err != nil {
		recorder.Close()
		return nil, err
	}

	multiplier, err := opts.Multiplier()
	if err != nil {
		recorder.Close()
		return nil, err
	}

	processLogger := logging.GetLogger("process")
	terminator := process.NewTerminatorWithOptions(processLogger, process.TerminatorOptions{
		GracefulTimeout: opts.GracefulTimeout,
		KillTimeout:     opts.KillTimeout,
		GracefulSignals: s.Platform.GracefulSignals,
	})
	prober := probe.NewProber(logging.GetLogger("probe"), probe.Options{
		RequestTimeout: opts.ProbeTimeout,
		Multiplier:     multiplier,
		MaxInterval:    opts.ProbeMaxInterval,
	})

	if collector == nil {
		collector = metrics.New()
	}
	bus := events.New()

	orch := harness.NewOrchestrator(s, harness.Deps{
		Runner:     process.NewRunner(processLogger),
		Prober:     prober,
		Sampler:    smp,
		Terminator: terminator,
		Verifier:   logcheck.NewVerifier(logging.GetLogger("logcheck")),
		Extractor:  extractor,
		Archiver:   archiver,
		Cleaner:    artifacts.NewCleaner(logging.GetLogger("artifacts")),
		Recorder:   recorder,
		Observer:   collector,
		Bus:        bus,
		Logger:     logging.GetLogger("harness"),
	})

	sess := &session{
		suite:    s,
		orch:     orch,
		recorder: recorder,
		metrics:  collector,
		bus:      bus,
		textfile: opts.Textfile,
	}
	sess.unsubs = append(sess.unsubs, bus.Subscribe(func(e events.CaseFinishedEvent) {
		logger().Info("Case finished",
			"run_id", e.RunID,
			"case", e.App+"/"+e.Mode,
			"result", e.Result,
			"duration", e.Duration.Round(time.Millisecond),
			"error", e.Error)
	}))
	return sess, nil
}

// openRecorders opens every configured sink. The CSV file lives in suiteDir.
func openRecorders(opts *Options, suiteDir string) (*measure.MultiRecorder, error) {
	var recorders []measure.Recorder
	closeAll := func() {
		for _, r := range recorders {
			r.Close()
		}
	}
	for _, sink := range opts.SinkList() {
		switch sink {
		case SinkCSV:
			path := filepath.Join(suiteDir, "measurements.csv")
			recorders = append(recorders, measure.NewCSVRecorder(path, logging.GetLogger("measure")))
		case SinkSQLite:
			db, err := measure.OpenSQLite(opts.Database, logging.GetLogger("measure"))
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("failed to open %s: %w", opts.Database, err)
			}
			recorders = append(recorders, db)
		default:
			closeAll()
			return nil, faults.New(faults.CodeInvalidConfig, "unknown measurement sink", map[string]any{"sink": sink})
		}
	}
	if len(recorders) == 0 {
		return nil, faults.New(faults.CodeInvalidConfig, "no measurement sink configured", nil)
	}
	return measure.NewMultiRecorder(recorders...), nil
}

// run executes pairs and writes the metrics textfile when configured.
func (s *session) run(ctx context.Context, pairs []suite.Pair, parallel int) ([]harness.Result, error) {
	results, err := s.orch.RunSuite(ctx, pairs, parallel)
	if s.textfile != "" {
		if werr := s.metrics.WriteTextfile(s.textfile); werr != nil {
			err = errors.Join(err, fmt.Errorf("failed to write metrics textfile: %w", werr))
		}
	}
	return results, err
}

// Close releases the sinks and event subscriptions.
func (s *session) Close() error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	return s.recorder.Close()
}

// loadPairs loads the suite file and selects the requested pairs.
func loadPairs(path string, apps, modes []string) (*suite.Suite, []suite.Pair, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("suite file: %w", err)
	}
	s, err := suite.Load(path)
	if err != nil {
		return nil, nil, err
	}
	pairs, err := s.Select(apps, modes)
	if err != nil {
		return nil, nil, err
	}
	return s, pairs, nil
}
