package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/startstop/internal/measure"
)

// value returns the gauge or counter value of the series matching labels,
// or the sample count for histograms.
func value(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func TestObserveRecord(t *testing.T) {
	c := New()
	c.ObserveRecord(measure.Record{
		App: "jax-rs-minimal", Mode: "jvm",
		BuildMs: 45000, TimeToFirstOKMs: 812, StartedMs: 1234, StoppedMs: 45, RSSKB: 131072, FDs: 212,
	})
	labels := map[string]string{"app": "jax-rs-minimal", "mode": "jvm"}

	tests := []struct {
		name string
		want float64
	}{
		{"startstop_measurement_build_ms", 45000},
		{"startstop_measurement_time_to_first_ok_ms", 812},
		{"startstop_measurement_started_ms", 1234},
		{"startstop_measurement_stopped_ms", 45},
		{"startstop_measurement_rss_kb", 131072},
		{"startstop_measurement_open_fds", 212},
	}
	for _, tt := range tests {
		if got := value(t, c, tt.name, labels); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestObserveResult(t *testing.T) {
	c := New()
	c.ObserveResult("a", "jvm", "passed", 30*time.Second)
	c.ObserveResult("a", "jvm", "passed", 31*time.Second)
	c.ObserveResult("a", "native", "failed", time.Second)

	if got := value(t, c, "startstop_case_total", map[string]string{"mode": "jvm", "result": "passed"}); got != 2 {
		t.Errorf("passed = %v, want 2", got)
	}
	if got := value(t, c, "startstop_case_total", map[string]string{"mode": "native", "result": "failed"}); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := value(t, c, "startstop_case_duration_seconds", map[string]string{"mode": "jvm"}); got != 2 {
		t.Errorf("jvm duration samples = %v, want 2", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.ObserveRecord(measure.Record{App: "a", Mode: "jvm", RSSKB: 2048})
	path := filepath.Join(t.TempDir(), "textfile", "startstop.prom")

	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `startstop_measurement_rss_kb{app="a",mode="jvm"} 2048`) {
		t.Errorf("textfile missing gauge:\n%s", data)
	}
}
