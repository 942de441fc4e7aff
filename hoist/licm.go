package hoist

import (
	"strings"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/extract"
	"github.com/willowfield/coffee/lda"
	"github.com/willowfield/coffee/session"
)

// Hoister drives generalized LICM over one kernel, using an Analysis
// already computed for it and an ExpressionGraph shared with the rest of
// the rewrite session.
type Hoister struct {
	Arena    *ast.Arena
	Session  *session.Session
	Analysis *lda.Analysis
	Graph    *exprgraph.Graph
	Registry *Registry
	// Pass names this hoister's attribution in the session log;
	// NewHoister sets it to "licm".
	Pass string
	// GlobalCSE, when true, lets Hoist reuse an existing placement for a
	// textually identical expression regardless of which block it was
	// placed in, instead of requiring an exact placement-block match.
	GlobalCSE bool
}

// NewHoister returns a Hoister with a fresh Registry, sharing graph with
// the rest of the session so hoisting can both consult and extend the
// read-after-write dependency bookkeeping.
func NewHoister(sess *session.Session, an *lda.Analysis, graph *exprgraph.Graph) *Hoister {
	return &Hoister{Arena: sess.Arena, Session: sess, Analysis: an, Graph: graph, Registry: NewRegistry(), Pass: "licm"}
}

// Hoist considers expr, which sits inside the loop nest described by
// nest (outermost to innermost). mode selects the placement policy used
// when expr's dependency set spans two or more dimensions:
// extract.Aggressive permits placing an N-D temporary entirely outside
// the nest when its dependency set covers every nest dimension; every
// other mode confines a multi-dimensional hoist to the outermost loop its
// dependency set reaches. A bare leaf (Symbol or FunCall) is never
// hoisted on its own, and an expression that reads a value the graph
// flags as re-assigned within its own scope (a self-edge) is left alone
// rather than risk duplicating a hazardous read.
func (h *Hoister) Hoist(nest []*ast.For, expr ast.NodeID, mode extract.Mode) (ast.NodeID, bool) {
	if ast.IsLeaf(h.Arena, expr) {
		return expr, false
	}
	if h.hazardous(expr) {
		return expr, false
	}

	deps := h.Analysis.DepsOf(expr)
	order := deps.SortByNest(nestDims(nest))

	switch {
	case len(order) == 0:
		return h.place(nest, expr, nil, "header")
	case len(order) == 1:
		return h.placeSingleDim(nest, expr, order[0])
	default:
		return h.placeMultiDim(nest, expr, order, mode)
	}
}

func (h *Hoister) placeSingleDim(nest []*ast.For, expr ast.NodeID, dim string) (ast.NodeID, bool) {
	idx := indexOfDim(nest, dim)
	if idx < 0 || idx == len(nest)-1 {
		// Unknown dimension, or expr varies with the innermost enclosing
		// loop: nowhere shallower to place it.
		return expr, false
	}
	if isPerfectNest(h.Arena, nest) {
		return h.place(nest, expr, []string{dim}, "header")
	}
	if len(nest) > 1 {
		return h.place(nest, expr, nil, "loop:"+dim)
	}
	return h.place(nest, expr, nil, "before_writer")
}

func (h *Hoister) placeMultiDim(nest []*ast.For, expr ast.NodeID, order []string, mode extract.Mode) (ast.NodeID, bool) {
	full := nestDims(nest)
	if mode == extract.Aggressive && sameDims(order, full) {
		return h.place(nest, expr, full, "header")
	}
	if !isPerfectNest(h.Arena, nest) {
		deepest := nest[indexOfDim(nest, order[len(order)-1])]
		return h.place(nest, expr, nil, "loop:"+deepest.Dim)
	}
	outerIdx := indexOfDim(nest, order[0])
	if outerIdx < 0 || outerIdx == len(nest)-1 {
		return expr, false
	}
	return h.place(nest, expr, order[1:], "loop:"+order[0])
}

// place deduplicates expr against the registry (by canonical text key and
// placement block, or by key alone under GlobalCSE), or else synthesizes
// a fresh temporary: a declaration computing expr, wrapped in nested
// copies of wrapDims's loops when non-empty, registers it, and wires the
// expression graph so later passes can see what the new temporary reads.
func (h *Hoister) place(nest []*ast.For, expr ast.NodeID, wrapDims []string, block string) (ast.NodeID, bool) {
	key := ast.CanonicalKey(h.Arena, expr)
	if p, ok := h.Registry.Lookup(key); ok && (h.GlobalCSE || p.PlacementBlock == block) {
		return h.reference(p), true
	}

	name := h.Session.NextExprName("lic")
	copyExpr := ast.Copy(h.Arena, expr)
	sym := h.Arena.NewSymbol(name, wrapDims...)
	decl := h.Arena.NewWriter(ast.OpAssign, h.Arena.NewSymbol(name, wrapDims...), copyExpr)

	var wrap ast.NodeID
	if len(wrapDims) > 0 {
		wrap = h.buildWrapLoop(nest, wrapDims, decl.ID())
	}

	p := &Placement{Name: name, Expr: copyExpr, Decl: decl.ID(), WrapLoop: wrap, Rank: wrapDims, PlacementBlock: block}
	h.Registry.Register(name, key, p)
	h.wireGraph(name, copyExpr)
	h.Session.Log.Infof(h.Pass, "hoisted %s to %s", ast.Text(h.Arena, expr), describePlacement(block))
	return sym.ID(), true
}

// buildWrapLoop synthesizes nested For copies, outermost dim first, of
// the loops named by dims (each looked up in nest for its trip count and
// linearity), with declID nested at the bottom. It returns the outermost
// For's NodeID.
func (h *Hoister) buildWrapLoop(nest []*ast.For, dims []string, declID ast.NodeID) ast.NodeID {
	cur := declID
	for i := len(dims) - 1; i >= 0; i-- {
		src := nest[indexOfDim(nest, dims[i])]
		block := h.Arena.NewBlock(false, cur).ID()
		f := h.Arena.NewFor(dims[i], src.Size, block)
		f.SizeExpr = src.SizeExpr
		f.IsLinear = src.IsLinear
		cur = f.ID()
	}
	return cur
}

// wireGraph records, in the shared expression graph, that name's
// definition reads every distinct symbol occurring in expr — the
// add_dependency bookkeeping a hoist must perform so later passes (the
// CSE unpicker's cycle guard, a subsequent hoist's hazard check) see an
// accurate picture of what the new temporary depends on.
func (h *Hoister) wireGraph(name string, expr ast.NodeID) {
	h.Graph.AddNode(name)
	seen := make(map[string]bool)
	ast.Preorder(h.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name != name && !seen[s.Name] {
			seen[s.Name] = true
			h.Graph.AddDependency(name, s.Name)
		}
		return true
	})
}

// hazardous reports whether expr reads any symbol the graph flags with a
// self-edge (re-assigned and read within the same scope): hoisting a copy
// of such a read is unsafe because the copy would freeze a value that is
// still meant to change.
func (h *Hoister) hazardous(expr ast.NodeID) bool {
	hazard := false
	ast.Preorder(h.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && h.Graph.HasSelfEdge(s.Name) {
			hazard = true
		}
		return true
	})
	return hazard
}

func (h *Hoister) reference(p *Placement) ast.NodeID {
	return h.Arena.NewSymbol(p.Name, p.Rank...).ID()
}

func nestDims(nest []*ast.For) []string {
	dims := make([]string, len(nest))
	for i, f := range nest {
		dims[i] = f.Dim
	}
	return dims
}

func indexOfDim(nest []*ast.For, dim string) int {
	for i, f := range nest {
		if f.Dim == dim {
			return i
		}
	}
	return -1
}

func sameDims(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(b))
	for _, d := range b {
		seen[d] = true
	}
	for _, d := range a {
		if !seen[d] {
			return false
		}
	}
	return true
}

// isPerfectNest reports whether every loop in nest but the innermost
// contains nothing but the next loop in its body, so a copy of any prefix
// of nest's loops can be synthesized outside the whole nest without
// changing what any sibling statement computes.
func isPerfectNest(a *ast.Arena, nest []*ast.For) bool {
	for i := 0; i < len(nest)-1; i++ {
		body, ok := a.Get(nest[i].Body).(*ast.Block)
		if !ok || len(body.Children) != 1 || body.Children[0] != nest[i+1].ID() {
			return false
		}
	}
	return true
}

func describePlacement(block string) string {
	switch {
	case block == "header":
		return "above the entire nest"
	case strings.HasPrefix(block, "loop:"):
		return "the top of loop " + strings.TrimPrefix(block, "loop:")
	default:
		return "immediately before the writer"
	}
}
