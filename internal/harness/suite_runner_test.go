package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smazurov/startstop/internal/faults"
	"github.com/smazurov/startstop/internal/suite"
)

func TestRunSuiteSerializesSharedDirs(t *testing.T) {
	s := newTestSuite("a", "b", "c")
	f := &fakes{buildDelay: 30 * time.Millisecond}
	pairs, err := s.Select(nil, []string{"jvm", "native"})
	if err != nil {
		t.Fatal(err)
	}

	results, err := NewOrchestrator(s, f.deps()).RunSuite(context.Background(), pairs, 4)
	if err != nil {
		t.Fatalf("RunSuite failed: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for i, r := range results {
		if r.Pair.Name() != pairs[i].Name() {
			t.Errorf("result %d is %s, want %s", i, r.Pair.Name(), pairs[i].Name())
		}
		if !r.Passed() {
			t.Errorf("%s: %v", r.Pair.Name(), r.Err)
		}
	}
	if f.overlap {
		t.Error("cases sharing a working directory ran concurrently")
	}
	if f.maxFlight < 2 {
		t.Errorf("expected distinct dirs to run in parallel, max in flight = %d", f.maxFlight)
	}
}

func TestRunSuiteRespectsLimit(t *testing.T) {
	s := newTestSuite("a", "b", "c", "d")
	f := &fakes{buildDelay: 30 * time.Millisecond}
	pairs, _ := s.Select(nil, []string{"jvm"})

	if _, err := NewOrchestrator(s, f.deps()).RunSuite(context.Background(), pairs, 2); err != nil {
		t.Fatal(err)
	}
	if f.maxFlight > 2 {
		t.Errorf("max in flight = %d, limit 2", f.maxFlight)
	}
}

func TestRunSuiteJoinsFailures(t *testing.T) {
	s := newTestSuite("a", "b")
	f := &fakes{failAt: "build", failDir: "/work/b"}
	pairs, _ := s.Select(nil, []string{"jvm"})

	results, err := NewOrchestrator(s, f.deps()).RunSuite(context.Background(), pairs, 1)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !faults.HasCode(err, faults.CodeBuildTimeout) {
		t.Errorf("joined error lost the cause: %v", err)
	}
	if !results[0].Passed() {
		t.Errorf("a/jvm should pass: %v", results[0].Err)
	}
	if results[1].State != StateFailedAfterCleanup {
		t.Errorf("b/jvm state = %s", results[1].State)
	}
}

func TestRunSuiteCancelled(t *testing.T) {
	s := newTestSuite("a")
	f := &fakes{}
	pairs, _ := s.Select(nil, []string{"jvm", "native"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewOrchestrator(s, f.deps()).RunSuite(ctx, pairs, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, r := range results {
		if r.Passed() {
			t.Errorf("%s ran after cancellation", r.Pair.Name())
		}
	}
}

func TestGroupByDir(t *testing.T) {
	mk := func(dir string) suite.Pair { return suite.Pair{App: suite.App{Dir: dir}} }
	groups := groupByDir([]suite.Pair{mk("/x"), mk("/y"), mk("/x"), mk("/z"), mk("/y")})

	want := [][]int{{0, 2}, {1, 4}, {3}}
	if len(groups) != len(want) {
		t.Fatalf("groups = %v", groups)
	}
	for i := range want {
		if len(groups[i]) != len(want[i]) {
			t.Fatalf("groups = %v, want %v", groups, want)
		}
		for j := range want[i] {
			if groups[i][j] != want[i][j] {
				t.Errorf("groups = %v, want %v", groups, want)
			}
		}
	}
}
