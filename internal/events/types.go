package events

import (
	"time"

	"github.com/smazurov/startstop/internal/measure"
)

// Event type constants for kelindar/event.
const (
	TypeCaseStateChanged uint32 = iota + 1
	TypeMeasurementRecorded
	TypeCaseFinished
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaseStateChangedEvent is published on every orchestrator transition.
type CaseStateChangedEvent struct {
	RunID     string
	Suite     string
	App       string
	Mode      string
	From      string
	To        string
	Error     string // set when To is FAILED
	Timestamp time.Time
}

// Type returns the event type identifier for CaseStateChangedEvent.
func (e CaseStateChangedEvent) Type() uint32 { return TypeCaseStateChanged }

// MeasurementRecordedEvent carries a persisted measurement.
type MeasurementRecordedEvent struct {
	Suite  string
	Record measure.Record
}

// Type returns the event type identifier for MeasurementRecordedEvent.
func (e MeasurementRecordedEvent) Type() uint32 { return TypeMeasurementRecorded }

// CaseFinishedEvent is published once per case after cleanup.
type CaseFinishedEvent struct {
	RunID    string
	Suite    string
	App      string
	Mode     string
	Result   string // passed, failed or skipped
	Duration time.Duration
	Error    string
}

// Type returns the event type identifier for CaseFinishedEvent.
func (e CaseFinishedEvent) Type() uint32 { return TypeCaseFinished }
