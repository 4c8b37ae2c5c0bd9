package harness

import (
	"github.com/smazurov/startstop/internal/artifacts"
	"github.com/smazurov/startstop/internal/logcheck"
	"github.com/smazurov/startstop/internal/measure"
	"github.com/smazurov/startstop/internal/metrics"
	"github.com/smazurov/startstop/internal/probe"
	"github.com/smazurov/startstop/internal/process"
	"github.com/smazurov/startstop/internal/sampler"
)

var (
	_ Runner             = (*process.Runner)(nil)
	_ Terminator         = (*process.Terminator)(nil)
	_ Prober             = (*probe.Prober)(nil)
	_ Sampler            = (*sampler.Sampler)(nil)
	_ LogVerifier        = (*logcheck.Verifier)(nil)
	_ TimestampExtractor = (*logcheck.Extractor)(nil)
	_ Archiver           = (*artifacts.Archiver)(nil)
	_ Cleaner            = (*artifacts.Cleaner)(nil)
	_ Observer           = (*metrics.Collector)(nil)
	_ measure.Recorder   = (*measure.CSVRecorder)(nil)
	_ measure.Recorder   = (*measure.SQLiteRecorder)(nil)
	_ measure.Recorder   = (*measure.MultiRecorder)(nil)
)
