// Package measure persists one measurement record per completed case.
package measure

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Record is the outcome of one successful case. Records are never mutated
// after creation.
type Record struct {
	RunID     string
	Timestamp time.Time
	App       string
	Mode      string

	BuildMs         int64
	TimeToFirstOKMs int64
	StartedMs       int64
	StoppedMs       int64
	RSSKB           int64
	FDs             int64
}

// Header is the CSV column order. The first eight columns match the
// historical measurements.csv layout.
var Header = []string{
	"App", "Mode", "buildTimeMs", "timeToFirstOKRequestMs",
	"startedInMs", "stoppedInMs", "RSSKb", "FDs",
	"RunID", "Timestamp",
}

// Row renders r in Header order.
func (r Record) Row() []string {
	return []string{
		r.App,
		r.Mode,
		strconv.FormatInt(r.BuildMs, 10),
		strconv.FormatInt(r.TimeToFirstOKMs, 10),
		strconv.FormatInt(r.StartedMs, 10),
		strconv.FormatInt(r.StoppedMs, 10),
		strconv.FormatInt(r.RSSKB, 10),
		strconv.FormatInt(r.FDs, 10),
		r.RunID,
		r.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Recorder appends records to a persistent sink.
type Recorder interface {
	Record(ctx context.Context, r Record) error
	Close() error
}

// MultiRecorder fans a record out to several recorders. Every recorder is
// attempted; errors are joined.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// Record implements Recorder.
func (m *MultiRecorder) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, rec := range m.recorders {
		if err := rec.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Recorder.
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, rec := range m.recorders {
		if err := rec.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
