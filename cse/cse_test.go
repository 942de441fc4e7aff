package cse

import (
	"testing"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/session"
)

func TestShouldPushCheapSingleUse(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	y := a.NewSymbol("y")
	sum := a.Sum(x.ID(), y.ID())
	sess := session.New(a)
	g := exprgraph.New()
	u := New(sess, g)

	u.Track("t0", sum.ID())
	use := a.NewSymbol("t0")
	root := a.NewBlock(false, use.ID())
	u.CountUses(root.ID(), "t0")

	if !u.ShouldPush("t0") {
		t.Fatal("a cheap, singly-used temporary should be pushed")
	}
}

func TestShouldNotPushExpensiveMultiUse(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	y := a.NewSymbol("y")
	z := a.NewSymbol("z")
	prod := a.Prod(a.Prod(x.ID(), y.ID()).ID(), z.ID())
	sess := session.New(a)
	g := exprgraph.New()
	u := New(sess, g)

	u.Track("t0", prod.ID())
	use1 := a.NewSymbol("t0")
	use2 := a.NewSymbol("t0")
	root := a.NewBlock(false, use1.ID(), use2.ID())
	u.CountUses(root.ID(), "t0")

	if u.ShouldPush("t0") {
		t.Fatal("an expensive, multiply-used temporary should not be pushed")
	}
}

func TestCycleNeverPushed(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	sess := session.New(a)
	g := exprgraph.New()
	g.AddSelfEdge("acc")
	u := New(sess, g)
	u.Track("acc", x.ID())
	u.CountUses(x.ID(), "acc")

	if u.ShouldPush("acc") {
		t.Fatal("a temporary flagged with a dependency cycle should never be pushed")
	}
}

// TestSurveyPushesCheapToRecomputeButCostlyTemporary grounds spec
// scenario 6's intuition (CSE unpick chain) in the cost model directly:
// a temporary whose definition multiplies the same operand against
// itself repeatedly has a high EstimateFlops cost but only one distinct
// post-factorization operand, so recomputing it at its use site is far
// cheaper than the N loads its materialized array would otherwise cost.
// Survey over a large trip count should choose to push it.
func TestSurveyPushesCheapToRecomputeButCostlyTemporary(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	expr := x.ID()
	for i := 0; i < 4; i++ {
		expr = a.Prod(expr, a.NewSymbol("x").ID()).ID()
	}

	sess := session.New(a)
	g := exprgraph.New()
	u := New(sess, g)
	u.Track("t0", expr)
	use := a.NewSymbol("t0")
	root := a.NewBlock(false, use.ID())
	u.CountUses(root.ID(), "t0")

	if u.Level("t0") != 0 {
		t.Fatalf("Level(t0) = %d, want 0 (reads only program symbols)", u.Level("t0"))
	}

	lo, hi := u.Survey(100)
	if !(hi > lo) {
		t.Fatalf("Survey(100) = (%d, %d], want a non-empty push range", lo, hi)
	}
	if !u.ShouldPush("t0") {
		t.Fatal("a cheap-to-recompute, high-cost temporary should be pushed after Survey")
	}
}

func TestPushReturnsFreshCopy(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	sess := session.New(a)
	g := exprgraph.New()
	u := New(sess, g)
	u.Track("t0", x.ID())

	copy1 := u.Push("t0")
	if copy1 == x.ID() {
		t.Fatal("Push should return a fresh copy, not alias the original definition")
	}
	if !ast.Equal(a, copy1, x.ID()) {
		t.Fatal("pushed copy should be structurally equal to the original definition")
	}
}
