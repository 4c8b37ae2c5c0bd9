package harness

import (
	"fmt"
	"sync"

	"github.com/smazurov/startstop/internal/logging"
)

type release struct {
	name string
	fn   func() error
}

// Scope collects release actions for one case. Close runs them in reverse
// registration order exactly once; failures and panics are logged, never
// returned, so cleanup cannot mask the error that ended the case.
type Scope struct {
	logger logging.Logger

	mu       sync.Mutex
	releases []release
	closed   bool
}

// NewScope creates an empty Scope.
func NewScope(logger logging.Logger) *Scope {
	return &Scope{logger: logger}
}

// Defer registers fn to run on Close. Registering on a closed scope runs fn
// immediately.
func (s *Scope) Defer(name string, fn func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.run(release{name: name, fn: fn})
		return
	}
	s.releases = append(s.releases, release{name: name, fn: fn})
	s.mu.Unlock()
}

// Close runs the registered actions, last first. Later calls do nothing.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		s.run(releases[i])
	}
}

func (s *Scope) run(r release) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Cleanup panicked", "action", r.name, "panic", fmt.Sprint(p))
		}
	}()
	if err := r.fn(); err != nil {
		s.logger.Warn("Cleanup failed", "action", r.name, "error", err)
		return
	}
	s.logger.Debug("Cleanup done", "action", r.name)
}
