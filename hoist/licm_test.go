package hoist

import (
	"testing"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/extract"
	"github.com/willowfield/coffee/lda"
	"github.com/willowfield/coffee/session"
)

// buildKernel builds: for(i) { for(j) { Acc[i] += D * E } }
// D and E carry no rank at all, so their product is invariant with
// respect to both i and j and should hoist above the entire nest.
func buildKernel(a *ast.Arena) (outer, inner *ast.For, expr ast.NodeID) {
	d := a.NewSymbol("D")
	e := a.NewSymbol("E")
	prod := a.Prod(d.ID(), e.ID())
	acc := a.NewSymbol("Acc", "i")
	w := a.NewWriter(ast.OpIncr, acc, prod.ID())
	innerBlock := a.NewBlock(false, w.ID())
	innerFor := a.NewFor("j", 4, innerBlock.ID())
	outerBlock := a.NewBlock(false, innerFor.ID())
	outerFor := a.NewFor("i", 3, outerBlock.ID())
	return outerFor, innerFor, prod.ID()
}

func TestHoistAboveEntireNest(t *testing.T) {
	a := ast.NewArena()
	outer, inner, expr := buildKernel(a)
	an := lda.Analyze(a, outer.ID())
	sess := session.New(a)
	h := NewHoister(sess, an, exprgraph.New())

	replacement, hoisted := h.Hoist([]*ast.For{outer, inner}, expr, extract.Normal)
	if !hoisted {
		t.Fatal("D*E does not depend on i or j, expected a hoist")
	}
	sym, ok := a.Get(replacement).(*ast.Symbol)
	if !ok {
		t.Fatalf("expected replacement to be a Symbol, got %T", a.Get(replacement))
	}
	if len(sym.Rank) != 0 {
		t.Fatalf("fully invariant expression should get a scalar temp, got rank %v", sym.Rank)
	}
	if h.Registry.Len() != 1 {
		t.Fatalf("Registry.Len() = %d, want 1", h.Registry.Len())
	}
	p := h.Registry.Get(sym.Name)
	if p.WrapLoop != 0 {
		t.Fatalf("scalar hoist should not synthesize a wrap loop, got %v", p.WrapLoop)
	}
	if p.PlacementBlock != "header" {
		t.Fatalf("PlacementBlock = %q, want %q", p.PlacementBlock, "header")
	}
}

func TestHoistDedupsIdenticalExpression(t *testing.T) {
	a := ast.NewArena()
	outer, inner, expr := buildKernel(a)
	an := lda.Analyze(a, outer.ID())
	sess := session.New(a)
	h := NewHoister(sess, an, exprgraph.New())

	r1, _ := h.Hoist([]*ast.For{outer, inner}, expr, extract.Normal)
	// A second, independently-built but structurally identical copy of
	// the same expression should reuse the first placement.
	expr2 := ast.Copy(a, expr)
	r2, hoisted2 := h.Hoist([]*ast.For{outer, inner}, expr2, extract.Normal)
	if !hoisted2 {
		t.Fatal("expected second occurrence to also report a hoist (via dedup)")
	}
	if !ast.Equal(a, r1, r2) {
		t.Fatal("deduped hoists should reference the same temporary")
	}
	if h.Registry.Len() != 1 {
		t.Fatalf("Registry.Len() = %d, want 1 after dedup", h.Registry.Len())
	}
}

func TestLeafIsNeverHoisted(t *testing.T) {
	a := ast.NewArena()
	outer, inner, _ := buildKernel(a)
	an := lda.Analyze(a, outer.ID())
	sess := session.New(a)
	h := NewHoister(sess, an, exprgraph.New())

	d := a.NewSymbol("D", "i")
	_, hoisted := h.Hoist([]*ast.For{outer, inner}, d.ID(), extract.Normal)
	if hoisted {
		t.Fatal("a bare symbol reference should never be hoisted")
	}
}

// TestHoistOneDimInPerfectNestSynthesizesWrapLoop mirrors spec scenario 1
// (basic LICM): A[i][j] += X[i]*Y[j]*C within a perfect nest i,j. X[i]*C
// depends only on i, which is not the innermost loop, so it should hoist
// above the entire nest with a synthesized copy of loop i wrapping its
// declaration.
func TestHoistOneDimInPerfectNestSynthesizesWrapLoop(t *testing.T) {
	a := ast.NewArena()
	xi := a.NewSymbol("X", "i")
	c := a.NewSymbol("C")
	prod := a.Prod(xi.ID(), c.ID())
	yj := a.NewSymbol("Y", "j")
	acc := a.NewSymbol("A", "i", "j")
	w := a.NewWriter(ast.OpIncr, acc, a.Prod(prod.ID(), yj.ID()).ID())
	innerBlock := a.NewBlock(false, w.ID())
	innerFor := a.NewFor("j", 8, innerBlock.ID())
	outerBlock := a.NewBlock(false, innerFor.ID())
	outerFor := a.NewFor("i", 8, outerBlock.ID())

	an := lda.Analyze(a, outerFor.ID())
	sess := session.New(a)
	h := NewHoister(sess, an, exprgraph.New())

	repl, hoisted := h.Hoist([]*ast.For{outerFor, innerFor}, prod.ID(), extract.Normal)
	if !hoisted {
		t.Fatal("expected X[i]*C to hoist")
	}
	sym := a.Get(repl).(*ast.Symbol)
	p := h.Registry.Get(sym.Name)
	if p.PlacementBlock != "header" {
		t.Fatalf("PlacementBlock = %q, want %q", p.PlacementBlock, "header")
	}
	if p.WrapLoop == 0 {
		t.Fatal("a 1-D hoist above a perfect nest must synthesize a wrap loop")
	}
	wrap, ok := a.Get(p.WrapLoop).(*ast.For)
	if !ok || wrap.Dim != "i" {
		t.Fatalf("expected wrap loop over dim i, got %#v", a.Get(p.WrapLoop))
	}
}

// TestHoistAggressiveNDCoveringFullNest mirrors spec scenario 3
// (aggressive N-D hoist): a subexpression depending on both i and j,
// covering the entire nest, should hoist above it with nested copies of
// both loops under extract.Aggressive.
func TestHoistAggressiveNDCoveringFullNest(t *testing.T) {
	a := ast.NewArena()
	ki := a.NewSymbol("K", "i")
	lj := a.NewSymbol("L", "j")
	prod := a.Prod(ki.ID(), lj.ID())
	acc := a.NewSymbol("A", "i", "j")
	w := a.NewWriter(ast.OpIncr, acc, prod.ID())
	innerBlock := a.NewBlock(false, w.ID())
	innerFor := a.NewFor("j", 8, innerBlock.ID())
	outerBlock := a.NewBlock(false, innerFor.ID())
	outerFor := a.NewFor("i", 8, outerBlock.ID())

	an := lda.Analyze(a, outerFor.ID())
	sess := session.New(a)
	h := NewHoister(sess, an, exprgraph.New())

	repl, hoisted := h.Hoist([]*ast.For{outerFor, innerFor}, prod.ID(), extract.Aggressive)
	if !hoisted {
		t.Fatal("expected K[i]*L[j] to hoist under aggressive mode")
	}
	sym := a.Get(repl).(*ast.Symbol)
	if len(sym.Rank) != 2 {
		t.Fatalf("expected a 2-D temporary, got rank %v", sym.Rank)
	}
	p := h.Registry.Get(sym.Name)
	if p.PlacementBlock != "header" {
		t.Fatalf("PlacementBlock = %q, want %q", p.PlacementBlock, "header")
	}
	if p.WrapLoop == 0 {
		t.Fatal("a full-nest aggressive hoist must synthesize nested wrap loops")
	}
}
