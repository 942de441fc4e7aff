// Package sharinggraph models the candidate temporary-sharing groups the
// "SGrewrite" optimization level considers: clusters of subexpressions
// that could be computed through one shared set of temporaries instead
// of independently. Choosing which clusters to actually apply is a
// combinatorial selection problem (maximize total savings subject to no
// two chosen clusters touching the same node), delegated to a
// solver.Solver so the graph itself stays free of solver internals.
package sharinggraph

import (
	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/solver"
)

// Group is one candidate sharing opportunity: a set of expression nodes
// that could be rewritten to share Gain flops worth of computation.
type Group struct {
	Name    string
	Members []ast.NodeID
	Gain    int
}

// Graph collects the candidate Groups found for one kernel.
type Graph struct {
	Groups []Group
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{}
}

// AddGroup records a candidate sharing opportunity.
func (g *Graph) AddGroup(name string, members []ast.NodeID, gain int) {
	g.Groups = append(g.Groups, Group{Name: name, Members: append([]ast.NodeID(nil), members...), Gain: gain})
}

// Candidates converts every Group into a solver.Candidate, with
// Conflicts populated from any other group sharing at least one member
// node: applying both would rewrite the same subtree twice.
func (g *Graph) Candidates() []solver.Candidate {
	owners := make(map[ast.NodeID][]string)
	for _, grp := range g.Groups {
		for _, m := range grp.Members {
			owners[m] = append(owners[m], grp.Name)
		}
	}
	out := make([]solver.Candidate, len(g.Groups))
	for i, grp := range g.Groups {
		conflictSet := make(map[string]bool)
		for _, m := range grp.Members {
			for _, other := range owners[m] {
				if other != grp.Name {
					conflictSet[other] = true
				}
			}
		}
		conflicts := make([]string, 0, len(conflictSet))
		for name := range conflictSet {
			conflicts = append(conflicts, name)
		}
		out[i] = solver.Candidate{Name: grp.Name, Gain: grp.Gain, Conflicts: conflicts}
	}
	return out
}

// Select runs s over the graph's candidates and returns the chosen
// groups' names.
func (g *Graph) Select(s solver.Solver) []string {
	return s.Solve(g.Candidates())
}

// Group returns the Group named name, or nil.
func (g *Graph) Group(name string) *Group {
	for i := range g.Groups {
		if g.Groups[i].Name == name {
			return &g.Groups[i]
		}
	}
	return nil
}
