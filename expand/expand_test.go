package expand

import (
	"testing"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/hoist"
	"github.com/willowfield/coffee/session"
)

func TestExpandAllModeDistributesProductOverSum(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x", "i")
	y := a.NewSymbol("y", "i")
	z := a.NewSymbol("z", "j")
	sum := a.Sum(x.ID(), y.ID())
	prod := a.Prod(sum.ID(), z.ID())

	ex := New(a, All)
	got := ex.Expand(prod.ID())
	want := "((x[i]*z[j])+(y[i]*z[j]))"
	if text := ast.Text(a, got); text != want {
		t.Fatalf("Expand() = %q, want %q", text, want)
	}
}

func TestExpandIsIdempotentViaCache(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x", "i")
	y := a.NewSymbol("y", "i")
	z := a.NewSymbol("z", "j")
	sum := a.Sum(x.ID(), y.ID())
	prod := a.Prod(sum.ID(), z.ID())

	ex := New(a, All)
	first := ex.Expand(prod.ID())
	second := ex.Expand(prod.ID())
	if first != second {
		t.Fatal("expanding the same expression twice should hit the cache and return the same NodeID")
	}
}

func TestExpandLeavesNonDistributableAlone(t *testing.T) {
	a := ast.NewArena()
	x := a.NewSymbol("x")
	y := a.NewSymbol("y")
	prod := a.Prod(x.ID(), y.ID())

	ex := New(a, Standard)
	got := ex.Expand(prod.ID())
	if ast.Text(a, got) != "(x*y)" {
		t.Fatalf("Expand() of a plain product changed it: %q", ast.Text(a, got))
	}
}

// TestStandardModePicksHighestOccurrenceDomainDim mirrors spec scenario 2
// (expand to expose factor): (X[i]+Y[i])*Z[j]. i occurs twice (X, Y), j
// occurs once (Z), so standard mode expands along i, distributing Z[j]
// over the sum.
func TestStandardModePicksHighestOccurrenceDomainDim(t *testing.T) {
	a := ast.NewArena()
	xi := a.NewSymbol("X", "i")
	yi := a.NewSymbol("Y", "i")
	zj := a.NewSymbol("Z", "j")
	sum := a.Sum(xi.ID(), yi.ID())
	prod := a.Prod(sum.ID(), zj.ID())

	ex := New(a, Standard)
	ex.Meta = ast.NewMetaExpr("double", 0, []string{"i", "j"}, []string{"i", "j"})
	got := ex.Expand(prod.ID())
	want := "((X[i]*Z[j])+(Y[i]*Z[j]))"
	if text := ast.Text(a, got); text != want {
		t.Fatalf("Expand() = %q, want %q", text, want)
	}
}

func TestDimensionsModeExpandsOnlyNamedDims(t *testing.T) {
	a := ast.NewArena()
	xi := a.NewSymbol("X", "i")
	yj := a.NewSymbol("Y", "j")
	zk := a.NewSymbol("Z", "k")
	sum := a.Sum(xi.ID(), yj.ID())
	prod := a.Prod(sum.ID(), zk.ID())

	ex := New(a, Dimensions)
	ex.Dims = []string{"i"}
	got := ex.Expand(prod.ID())
	// Only X[i] is eligible, so the Sum stays opaque (Y[j] does not
	// qualify) and the product is left alone.
	if ast.Text(a, got) != "((X[i]+Y[j])*Z[k])" {
		t.Fatalf("Expand() = %q, want the product untouched", ast.Text(a, got))
	}
}

// TestExpandAggregatesIntoHoistedTemporary mirrors spec scenario 4
// (aggregation into hoisted): a normal LICM has already produced
// Y[j] = h(j); expanding X[i]*Y[j]*F (F loop-invariant) should merge F
// into Y's own definition rather than introduce a new multiply.
func TestExpandAggregatesIntoHoistedTemporary(t *testing.T) {
	a := ast.NewArena()
	hj := a.NewSymbol("h", "j")
	yDecl := a.NewWriter(ast.OpAssign, a.NewSymbol("Y", "j"), hj.ID())

	graph := exprgraph.New()
	graph.AddDependency("Y", "h")
	h := hoist.NewHoister(session.New(a), nil, graph)
	h.Registry.Register("Y", "h[j]", &hoist.Placement{Name: "Y", Expr: hj.ID(), Decl: yDecl.ID(), Rank: []string{"j"}, PlacementBlock: "header"})

	xi := a.NewSymbol("X", "i")
	yRef := a.NewSymbol("Y", "j")
	f := a.NewSymbol("F")
	rhs := a.Prod(xi.ID(), a.Prod(yRef.ID(), f.ID()).ID()).ID()

	ex := New(a, Standard)
	ex.Hoister = h
	ex.Graph = graph
	got := ex.Expand(rhs)

	if ast.Text(a, got) != "(X[i]*Y[j])" {
		t.Fatalf("Expand() = %q, want X[i]*Y[j] after folding F into Y", ast.Text(a, got))
	}
	decl := a.Get(yDecl.ID()).(*ast.Writer)
	if ast.Text(a, decl.Rvalue) != "(h[j]*F)" {
		t.Fatalf("Y's definition = %q, want h[j]*F after aggregation", ast.Text(a, decl.Rvalue))
	}
}
