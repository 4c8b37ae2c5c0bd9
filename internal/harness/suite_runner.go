package harness

import (
	"context"
	"errors"

	"github.com/smazurov/startstop/internal/suite"
	"golang.org/x/sync/errgroup"
)

// RunSuite runs every pair with at most parallel cases in flight. Pairs
// sharing a working directory run one after another in input order, since
// they would clean and build over each other. Results keep input order; the
// returned error joins the errors of all failed cases.
func (o *Orchestrator) RunSuite(ctx context.Context, pairs []suite.Pair, parallel int) ([]Result, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]Result, len(pairs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, group := range groupByDir(pairs) {
		g.Go(func() error {
			for _, i := range group {
				if ctx.Err() != nil {
					results[i] = Result{Pair: pairs[i], State: StateFailedAfterCleanup, Err: ctx.Err()}
					continue
				}
				results[i] = o.RunCase(ctx, pairs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	passed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			errs = append(errs, r.Err)
		case r.Passed():
			passed++
		}
	}
	o.deps.Logger.Info("Suite finished", "suite", o.suite.Name, "cases", len(results), "passed", passed, "failed", len(errs))
	return results, errors.Join(errs...)
}

// groupByDir returns pair indexes grouped by app dir, groups ordered by
// first appearance.
func groupByDir(pairs []suite.Pair) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for i, p := range pairs {
		g, ok := index[p.App.Dir]
		if !ok {
			g = len(groups)
			index[p.App.Dir] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
