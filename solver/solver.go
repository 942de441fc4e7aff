// Package solver isolates the combinatorial optimization step behind the
// sharing-graph rewrite (maximize total flop savings from a set of
// candidate temporary-sharing groups, no two of which may conflict)
// behind a narrow interface. An exact solution is an integer program;
// nothing in this module's dependency surface provides an ILP solver, so
// Heuristic is the only implementation shipped. A future Solver backed by
// a real ILP library plugs in without touching sharinggraph's callers.
package solver

import "sort"

// Candidate is one group the sharing-graph rewrite could apply.
type Candidate struct {
	Name      string
	Gain      int
	Conflicts []string // names of other candidates incompatible with this one
}

// Solver selects a subset of candidates maximizing total Gain such that
// no two selected candidates name each other in Conflicts.
type Solver interface {
	Solve(candidates []Candidate) []string
}

// Heuristic greedily selects candidates by descending gain, skipping any
// candidate that conflicts with one already chosen. It is not guaranteed
// optimal — two mutually exclusive high-gain candidates can starve a
// cluster of smaller compatible ones a global optimum would have
// preferred — but it runs in O(n log n + n*k) and needs no external
// solver.
type Heuristic struct{}

// Solve implements Solver.
func (Heuristic) Solve(candidates []Candidate) []string {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Gain > ordered[j].Gain })

	chosen := make(map[string]bool)
	blocked := make(map[string]bool)
	var selected []string
	for _, c := range ordered {
		if blocked[c.Name] {
			continue
		}
		chosen[c.Name] = true
		selected = append(selected, c.Name)
		for _, conflict := range c.Conflicts {
			blocked[conflict] = true
		}
	}
	return selected
}
