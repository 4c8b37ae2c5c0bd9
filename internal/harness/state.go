package harness

// State is a step of the per-case state machine.
type State string

// Case states, in order of a successful run.
const (
	StateInit     State = "INIT"
	StateCleaned  State = "CLEANED"  // Build output removed
	StateBuilt    State = "BUILT"    // Build finished and its log verified
	StateRunning  State = "RUNNING"  // Application launched
	StateProbed   State = "PROBED"   // Every endpoint answered as expected
	StateSampled  State = "SAMPLED"  // Memory and descriptors read
	StateStopped  State = "STOPPED"  // Process gone and port released
	StateVerified State = "VERIFIED" // Run log checked and timestamps parsed
	StateRecorded State = "RECORDED" // Measurement persisted

	StateFailed             State = "FAILED"
	StateFailedAfterCleanup State = "FAILED-AFTER-CLEANUP"
	StateSkipped            State = "SKIPPED" // Mode not supported on this platform
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateRecorded, StateFailedAfterCleanup, StateSkipped:
		return true
	}
	return false
}

// Outcome results reported to observers.
const (
	ResultPassed  = "passed"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)
