package lda

import (
	"testing"

	"github.com/willowfield/coffee/ast"
)

// buildNest builds: for(i) { for(j) { A[i] = A[i] + B[i][j] * C[j] } }
func buildNest(a *ast.Arena) (root ast.NodeID, rvalue ast.NodeID) {
	ai := a.NewSymbol("A", "i")
	biJ := a.NewSymbol("B", "i", "j")
	cj := a.NewSymbol("C", "j")
	prod := a.Prod(biJ.ID(), cj.ID())
	ai2 := a.NewSymbol("A", "i")
	sum := a.Sum(ai2.ID(), prod.ID())
	w := a.NewWriter(ast.OpAssign, ai, sum.ID())
	innerBlock := a.NewBlock(false, w.ID())
	innerFor := a.NewFor("j", 4, innerBlock.ID())
	outerBlock := a.NewBlock(false, innerFor.ID())
	outerFor := a.NewFor("i", 3, outerBlock.ID())
	return outerFor.ID(), sum.ID()
}

func TestSymbolDependsOnlyOnItsRankDims(t *testing.T) {
	a := ast.NewArena()
	root, _ := buildNest(a)
	an := Analyze(a, root)

	// Find the B[i][j] symbol by walking.
	var biID ast.NodeID
	ast.Preorder(a, root, func(id ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name == "B" {
			biID = id
		}
		return true
	})
	if biID == 0 {
		t.Fatal("did not find B symbol")
	}
	deps := an.DepsOf(biID)
	if !deps.Contains("i") || !deps.Contains("j") {
		t.Fatalf("B[i][j] should depend on i and j, got %v", deps.Dims())
	}
}

func TestInvariantPrefix(t *testing.T) {
	a := ast.NewArena()
	root, _ := buildNest(a)
	an := Analyze(a, root)

	var cjID ast.NodeID
	ast.Preorder(a, root, func(id ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name == "C" {
			cjID = id
		}
		return true
	})
	prefix := an.InvariantPrefix(cjID, []string{"i", "j"})
	if len(prefix) != 1 || prefix[0] != "i" {
		t.Fatalf("C[j] should be invariant w.r.t. i only, got %v", prefix)
	}
}

func TestIsInvariant(t *testing.T) {
	a := ast.NewArena()
	root, _ := buildNest(a)
	an := Analyze(a, root)

	var cjID ast.NodeID
	ast.Preorder(a, root, func(id ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name == "C" {
			cjID = id
		}
		return true
	})
	if !an.IsInvariant(cjID, "i") {
		t.Fatal("C[j] should be invariant w.r.t. i")
	}
	if an.IsInvariant(cjID, "j") {
		t.Fatal("C[j] should not be invariant w.r.t. j")
	}
}
