package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/logcheck"
	"github.com/smazurov/startstop/internal/measure"
	"github.com/smazurov/startstop/internal/process"
	"github.com/smazurov/startstop/internal/sampler"
	"github.com/smazurov/startstop/internal/suite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHandle struct {
	pid  int
	mu   sync.Mutex
	done chan struct{}
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) ID() int { return h.pid }

func (h *fakeHandle) IsAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *fakeHandle) Terminate(process.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.IsAlive() {
		close(h.done)
	}
	return nil
}

func (h *fakeHandle) Wait(time.Duration) bool { return !h.IsAlive() }

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

// fakes implements every collaborator, logging calls in order. failAt names
// the step that fails; failDir restricts failures to one app dir.
type fakes struct {
	mu      sync.Mutex
	calls   []string
	failAt  string
	failDir string

	buildDelay time.Duration
	active     map[string]int
	overlap    bool
	inFlight   int
	maxFlight  int

	handles  []*fakeHandle
	records  []measure.Record
	results  []string
	observed []measure.Record
}

var errInjected = errors.New("injected failure")

func (f *fakes) call(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakes) fails(step, dir string) bool {
	return f.failAt == step && (f.failDir == "" || f.failDir == dir)
}

func (f *fakes) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakes) indexOf(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i] == name {
			return i
		}
	}
	return -1
}

func (f *fakes) Clean(dir string, _ []string) error {
	first := f.count("clean:"+dir) == 0
	f.call("clean:" + dir)
	f.call("clean")
	if first && f.fails("clean", dir) {
		return errInjected
	}
	return nil
}

func (f *fakes) Archive(path, _, _, _ string) error {
	f.call("archive:" + filepath.Base(path))
	return nil
}

func (f *fakes) Build(_ context.Context, _, workDir, _ string, timeout time.Duration) error {
	f.call("build")
	f.mu.Lock()
	if f.active == nil {
		f.active = map[string]int{}
	}
	f.active[workDir]++
	if f.active[workDir] > 1 {
		f.overlap = true
	}
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(f.buildDelay)

	f.mu.Lock()
	f.active[workDir]--
	f.inFlight--
	f.mu.Unlock()

	if f.fails("build", workDir) {
		return faults.New(faults.CodeBuildTimeout, "build exceeded timeout", map[string]any{"timeout": timeout.String()})
	}
	return nil
}

func (f *fakes) Start(_, workDir, _ string, _ ...string) (process.Handle, error) {
	f.call("start")
	if f.fails("start", workDir) {
		return nil, faults.New(faults.CodeSpawnFailed, "failed to start process", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := newFakeHandle(1000 + len(f.handles))
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakes) WaitUntilReady(_ context.Context, endpoint, _ string, _ int, _ time.Duration) (time.Duration, error) {
	f.call("probe")
	if f.failAt == "probe" {
		return 0, faults.New(faults.CodeNotReady, "endpoint did not become ready", map[string]any{"url": endpoint})
	}
	return 812 * time.Millisecond, nil
}

func (f *fakes) CheckOnce(context.Context, string, string) (bool, error) {
	f.call("check")
	return f.failAt != "check", nil
}

func (f *fakes) Sample(pid int) (sampler.Sample, error) {
	f.call("sample")
	if f.failAt == "samplepanic" {
		panic(errInjected)
	}
	if f.failAt == "sample" {
		return sampler.Sample{}, faults.New(faults.CodeProcessGone, "process has exited", nil)
	}
	return sampler.Sample{PID: pid, MemoryKB: 131072, OpenFDs: 212}, nil
}

func (f *fakes) Stop(h process.Handle, force bool) error {
	if force {
		f.call("stop:force")
	} else {
		f.call("stop:graceful")
		if f.failAt == "stop" {
			return errInjected
		}
	}
	return h.Terminate(process.Forceful)
}

func (f *fakes) WaitForPortClosed(context.Context, string, int, time.Duration) bool {
	f.call("port")
	return f.failAt != "port"
}

func (f *fakes) CheckLog(_ string, lc logcheck.LogContext) error {
	f.call("checklog:" + lc.Phase)
	if f.failAt == lc.Phase+"log" {
		return faults.New(faults.CodeLogContent, "forbidden marker in log", map[string]any{"marker": "Exception"})
	}
	return nil
}

func (f *fakes) Extract(string) (float64, float64, error) {
	f.call("extract")
	if f.failAt == "extract" {
		return 0, 0, faults.New(faults.CodeParseFailed, "stopped timestamp not found", nil)
	}
	return 1.234, 0.045, nil
}

func (f *fakes) Record(_ context.Context, r measure.Record) error {
	f.call("record")
	if f.failAt == "record" {
		return errInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakes) Close() error { return nil }

func (f *fakes) ObserveRecord(r measure.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, r)
}

func (f *fakes) ObserveResult(app, mode, result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, app+"/"+mode+"="+result)
}

func (f *fakes) deps() Deps {
	return Deps{
		Runner:     f,
		Prober:     f,
		Sampler:    f,
		Terminator: f,
		Verifier:   f,
		Extractor:  f,
		Archiver:   f,
		Cleaner:    f,
		Recorder:   f,
		Observer:   f,
		Logger:     testLogger(),
	}
}

func (f *fakes) callLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, " ")
}

func newTestSuite(apps ...string) *suite.Suite {
	s := &suite.Suite{
		Name:     "quarkus",
		Platform: suite.Platform{GracefulSignals: true, Native: true},
		Defaults: suite.Defaults{
			BuildTimeout:  suite.Duration(time.Minute),
			ProbeAttempts: 3,
			ProbeInterval: suite.Duration(10 * time.Millisecond),
			PortTimeout:   suite.Duration(time.Second),
			Clean:         []string{"target", "logs"},
		},
		Apps: map[string]suite.App{},
		Modes: map[string]suite.Mode{
			"jvm":    {Name: "jvm", Build: "mvn package", Run: "java -jar target/app.jar"},
			"native": {Name: "native", Build: "mvn package -Pnative", Run: "./target/app-runner", Native: true},
		},
	}
	for _, name := range apps {
		s.Apps[name] = suite.App{
			Name: name,
			Dir:  "/work/" + name,
			Probes: []suite.Probe{
				{URL: "http://localhost:8080/hello", Content: "hello world"},
				{URL: "http://localhost:8080/data/hello", Content: "Hello World"},
			},
		}
	}
	return s
}

func pair(s *suite.Suite, app, mode string) suite.Pair {
	return suite.Pair{App: s.Apps[app], Mode: s.Modes[mode]}
}
