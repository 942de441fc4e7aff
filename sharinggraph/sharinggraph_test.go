package sharinggraph

import (
	"testing"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/solver"
)

func TestSelectSkipsConflictingLowerGainGroup(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	y := a.NewSymbol("y")

	g := New()
	g.AddGroup("big", []ast.NodeID{x.ID(), y.ID()}, 10)
	g.AddGroup("small", []ast.NodeID{x.ID()}, 3)

	chosen := g.Select(solver.Heuristic{})
	if len(chosen) != 1 || chosen[0] != "big" {
		t.Fatalf("Select() = %v, want [big]", chosen)
	}
}

func TestSelectKeepsDisjointGroups(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	y := a.NewSymbol("y")

	g := New()
	g.AddGroup("g1", []ast.NodeID{x.ID()}, 5)
	g.AddGroup("g2", []ast.NodeID{y.ID()}, 4)

	chosen := g.Select(solver.Heuristic{})
	if len(chosen) != 2 {
		t.Fatalf("Select() = %v, want both disjoint groups kept", chosen)
	}
}
