package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/startstop/internal/measure"
	"github.com/smazurov/startstop/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	c := metrics.New()
	handler := HTTPHandler(c.Registry())
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	// Set a metric so there's something to export
	c.ObserveRecord(measure.Record{App: "jax-rs-minimal", Mode: "jvm", StartedMs: 1234})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, `startstop_measurement_started_ms{app="jax-rs-minimal",mode="jvm"} 1234`) {
		t.Errorf("expected measurement in response, got:\n%s", body)
	}
}
