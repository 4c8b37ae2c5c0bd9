// Package probe polls HTTP endpoints until the application under test
// answers with the expected content.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/logging"
)

const (
	maxBodyBytes       = 1 << 20
	maxDiagnosticBytes = 512
)

// Options configures a Prober.
type Options struct {
	// RequestTimeout bounds each HTTP attempt.
	RequestTimeout time.Duration
	// Multiplier above 1 grows the interval between attempts, capped at
	// MaxInterval. Otherwise the interval is fixed.
	Multiplier  float64
	MaxInterval time.Duration
}

// DefaultOptions returns fixed-interval polling with a 5s request timeout.
func DefaultOptions() Options {
	return Options{RequestTimeout: 5 * time.Second}
}

// Prober issues readiness probes.
type Prober struct {
	client *http.Client
	opts   Options
	logger logging.Logger
}

// NewProber creates a Prober backed by a pooled HTTP client.
func NewProber(logger logging.Logger, opts Options) *Prober {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultOptions().RequestTimeout
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = opts.RequestTimeout
	return &Prober{client: client, opts: opts, logger: logger}
}

// result is the outcome of one attempt.
type result struct {
	status int
	body   string
	err    error
}

func (r result) ok() bool { return r.err == nil }

// WaitUntilReady probes endpoint up to maxAttempts times, interval apart, until
// it answers 200 with a body containing content. It returns the time from
// the call until the first successful response. Exhaustion fails with
// NOT_READY carrying the last status and body.
func (p *Prober) WaitUntilReady(ctx context.Context, endpoint, content string, maxAttempts int, interval time.Duration) (time.Duration, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	start := time.Now()

	var last result
	attempts := 0
	op := func() error {
		attempts++
		last = p.attempt(ctx, endpoint, content)
		return last.err
	}
	notify := func(err error, next time.Duration) {
		p.logger.Debug("Probe not ready", "url", endpoint, "attempt", attempts, "error", err, "retry_in", next)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.policy(interval), uint64(maxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, faults.Wrap(faults.CodeNotReady, "endpoint did not become ready", err, map[string]any{
			"url":         endpoint,
			"attempts":    attempts,
			"last_status": last.status,
			"last_body":   truncate(last.body),
		})
	}

	p.logger.Info("Endpoint ready", "url", endpoint, "attempts", attempts, "elapsed", elapsed)
	return elapsed, nil
}

// CheckOnce performs a single attempt. On failure the error is a NOT_READY
// fault describing the status and body that were observed.
func (p *Prober) CheckOnce(ctx context.Context, endpoint, content string) (bool, error) {
	r := p.attempt(ctx, endpoint, content)
	if r.ok() {
		return true, nil
	}
	return false, faults.Wrap(faults.CodeNotReady, "endpoint check failed", r.err, map[string]any{
		"url":         endpoint,
		"last_status": r.status,
		"last_body":   truncate(r.body),
	})
}

func (p *Prober) policy(interval time.Duration) backoff.BackOff {
	if p.opts.Multiplier <= 1 {
		return backoff.NewConstantBackOff(interval)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.Multiplier = p.opts.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.opts.MaxInterval > 0 {
		b.MaxInterval = p.opts.MaxInterval
	}
	return b
}

func (p *Prober) attempt(ctx context.Context, endpoint, content string) result {
	reqCtx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result{err: backoff.Permanent(err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	r := result{status: resp.StatusCode, body: string(data)}
	switch {
	case err != nil:
		r.err = fmt.Errorf("failed to read body: %w", err)
	case resp.StatusCode != http.StatusOK:
		r.err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	case !strings.Contains(r.body, content):
		r.err = fmt.Errorf("body does not contain %q", content)
	}
	return r
}

func truncate(s string) string {
	if len(s) <= maxDiagnosticBytes {
		return s
	}
	return s[:maxDiagnosticBytes] + "..."
}

// ParseHostPort returns the host and port of a probe URL. The port defaults
// to 80 for http and 443 for https.
func ParseHostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("url %q has no host", rawURL)
	}

	if s := u.Port(); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("url %q has invalid port %q", rawURL, s)
		}
		return host, port, nil
	}

	switch u.Scheme {
	case "http":
		return host, 80, nil
	case "https":
		return host, 443, nil
	}
	return "", 0, fmt.Errorf("url %q has no port and unknown scheme %q", rawURL, u.Scheme)
}

// ParsePort returns the port of a probe URL.
func ParsePort(rawURL string) (int, error) {
	_, port, err := ParseHostPort(rawURL)
	return port, err
}
