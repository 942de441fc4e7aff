// Package expand implements algebraic expansion: distributing a product
// over a sum, e.g. (a+b)*c -> a*c + b*c, so that a later factorization
// pass can re-group the resulting terms around a cheaper common factor
// than the one the kernel builder happened to emit.
//
// Expansion only pays off when the distributed terms let some other pass
// do less work overall (typically: hoist more of the sum out of an inner
// loop than could be hoisted as one product), so every expansion is
// cached by the canonical text of its input: re-expanding a
// structurally-identical subtree returns the earlier result instead of
// rebuilding and re-registering hoisted temporaries for it a second time.
package expand

import (
	"fmt"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/hoist"
)

// Mode selects should_expand, the predicate deciding which Symbol
// occurrences are distribution candidates.
type Mode int

const (
	// Standard computes per-domain-dimension occurrence counts over
	// every symbol in the expression and expands along the dimension
	// with the highest count (falling back to out-of-domain dimensions
	// if no domain dimension occurs at all).
	Standard Mode = iota
	// Dimensions expands a symbol that depends on any of a
	// caller-supplied dimension set.
	Dimensions
	// All expands a symbol that depends on any loop dimension at all.
	All
	// Domain expands a symbol that depends on a domain dimension.
	Domain
	// OutDomain expands a symbol that depends on an out-of-domain
	// dimension.
	OutDomain
)

// kind is the result classification the post-order algorithm propagates:
// EXPAND means the node was rewritten into a list of terms still to be
// summed; GROUP means it collapsed back into a single, opaque node.
type kind int

const (
	group kind = iota
	expandKind
)

// Expander distributes products over sums in an expression tree,
// expanding only the Symbol occurrences should_expand accepts under Mode.
type Expander struct {
	Arena *ast.Arena
	Mode  Mode
	Dims  []string // consulted only by Dimensions mode
	Meta  *ast.MetaExpr

	// Graph and Hoister, when set, let Expand attempt the "aggregation
	// with hoisted temporaries" step: merging a GROUP factor into a
	// hoisted temporary's own definition instead of emitting a new
	// multiply. Both are nil-safe to leave unset, which disables
	// aggregation entirely (equivalent to not_aggregate).
	Graph        *exprgraph.Graph
	Hoister      *hoist.Hoister
	NotAggregate bool

	dim      string
	aggSeq   int
	cache    map[string]ast.NodeID
	aggCache map[string]ast.NodeID
}

// New returns an Expander configured with mode.
func New(arena *ast.Arena, mode Mode) *Expander {
	return &Expander{Arena: arena, Mode: mode, cache: make(map[string]ast.NodeID), aggCache: make(map[string]ast.NodeID)}
}

// Expand returns the root of expr's subtree with every eligible product
// distributed over its sum operand, bottom-up.
func (ex *Expander) Expand(expr ast.NodeID) ast.NodeID {
	key := ast.CanonicalKey(ex.Arena, expr)
	if cached, ok := ex.cache[key]; ok {
		return cached
	}
	if ex.Mode == Standard {
		ex.dim = ex.chooseStandardDim(expr)
	}
	list, _ := ex.visit(expr)
	result := asNode(ex.Arena, list)
	ex.cache[key] = result
	return result
}

// chooseStandardDim computes per-dimension occurrence counts across every
// Symbol in expr and returns the domain dimension with the highest count
// (ties broken lexicographically), falling back to the best out-of-domain
// dimension when no domain dimension occurs.
func (ex *Expander) chooseStandardDim(expr ast.NodeID) string {
	if ex.Meta == nil {
		return ""
	}
	counts := make(map[string]int)
	ast.Preorder(ex.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		s, ok := n.(*ast.Symbol)
		if !ok {
			return true
		}
		for _, r := range s.Rank {
			if !ast.IsConstDim(r) {
				counts[r]++
			}
		}
		return true
	})
	if d, ok := bestOf(counts, ex.Meta.Domain); ok {
		return d
	}
	d, _ := bestOf(counts, ex.Meta.OutDomain())
	return d
}

func bestOf(counts map[string]int, dims []string) (string, bool) {
	best, bestCount, found := "", -1, false
	for _, d := range dims {
		c := counts[d]
		if c <= 0 {
			continue
		}
		if c > bestCount || (c == bestCount && d < best) {
			best, bestCount, found = d, c, true
		}
	}
	return best, found
}

func (ex *Expander) shouldExpand(s *ast.Symbol) bool {
	switch ex.Mode {
	case Dimensions:
		return intersects(s.Rank, ex.Dims)
	case All:
		return anyLoopDim(s.Rank)
	case Domain:
		return anyMatch(s.Rank, ex.Meta != nil, ex.isDomainDim)
	case OutDomain:
		return anyMatch(s.Rank, ex.Meta != nil, ex.isOutDomainDim)
	default: // Standard
		if ex.dim == "" {
			return false
		}
		return containsStr(s.Rank, ex.dim)
	}
}

func (ex *Expander) isDomainDim(d string) bool {
	return ex.Meta != nil && ex.Meta.IsDomain(d)
}

func (ex *Expander) isOutDomainDim(d string) bool {
	if ex.Meta == nil {
		return false
	}
	for _, od := range ex.Meta.OutDomain() {
		if od == d {
			return true
		}
	}
	return false
}

func anyMatch(rank []string, guard bool, pred func(string) bool) bool {
	if !guard {
		return false
	}
	for _, r := range rank {
		if !ast.IsConstDim(r) && pred(r) {
			return true
		}
	}
	return false
}

func anyLoopDim(rank []string) bool {
	for _, r := range rank {
		if !ast.IsConstDim(r) {
			return true
		}
	}
	return false
}

func intersects(rank, dims []string) bool {
	for _, r := range rank {
		if containsStr(dims, r) {
			return true
		}
	}
	return false
}

func containsStr(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

// visit implements the post-order should_expand algorithm: every node
// returns the list of terms it expanded into (or a single-element list
// when it stayed opaque) and which of the two it did.
func (ex *Expander) visit(id ast.NodeID) ([]ast.NodeID, kind) {
	switch v := ex.Arena.Get(id).(type) {
	case *ast.Symbol:
		cp := ex.Arena.NewSymbol(v.Name, v.Rank...)
		cp.Offset = v.Offset
		if ex.shouldExpand(v) {
			return []ast.NodeID{cp.ID()}, expandKind
		}
		return []ast.NodeID{cp.ID()}, group
	case *ast.BinOp:
		switch v.Op {
		case ast.OpProd:
			return ex.visitProd(v)
		case ast.OpSum, ast.OpSub:
			return ex.visitSum(v)
		default: // Div: recurse into children only, stays GROUP
			lList, _ := ex.visit(v.Left)
			rList, _ := ex.visit(v.Right)
			return []ast.NodeID{ex.Arena.NewBinOp(v.Op, asNode(ex.Arena, lList), asNode(ex.Arena, rList)).ID()}, group
		}
	case *ast.UnOp:
		list, _ := ex.visit(v.Child)
		return []ast.NodeID{ex.Arena.NewUnOp(v.Op, asNode(ex.Arena, list)).ID()}, group
	case *ast.FunCall:
		args := make([]ast.NodeID, len(v.Args))
		for i, a := range v.Args {
			list, _ := ex.visit(a)
			args[i] = asNode(ex.Arena, list)
		}
		return []ast.NodeID{ex.Arena.NewFunCall(v.Name, args...).ID()}, group
	case *ast.Ternary:
		cList, _ := ex.visit(v.Cond)
		tList, _ := ex.visit(v.T)
		fList, _ := ex.visit(v.F)
		return []ast.NodeID{ex.Arena.NewTernary(asNode(ex.Arena, cList), asNode(ex.Arena, tList), asNode(ex.Arena, fList)).ID()}, group
	default:
		return []ast.NodeID{id}, group
	}
}

func (ex *Expander) visitProd(v *ast.BinOp) ([]ast.NodeID, kind) {
	lList, lKind := ex.visit(v.Left)
	rList, rKind := ex.visit(v.Right)
	if lKind == group && rKind == group {
		node := ex.Arena.Prod(lList[0], rList[0]).ID()
		return []ast.NodeID{ex.tryAggregate(node)}, group
	}
	out := make([]ast.NodeID, 0, len(lList)*len(rList))
	for _, l := range lList {
		for _, r := range rList {
			node := ex.Arena.Prod(ast.Copy(ex.Arena, l), ast.Copy(ex.Arena, r)).ID()
			out = append(out, ex.tryAggregate(node))
		}
	}
	return out, expandKind
}

func (ex *Expander) visitSum(v *ast.BinOp) ([]ast.NodeID, kind) {
	lList, lKind := ex.visit(v.Left)
	rList, rKind := ex.visit(v.Right)
	if lKind == expandKind && rKind == expandKind {
		out := append([]ast.NodeID{}, lList...)
		for _, r := range rList {
			if v.Op == ast.OpSub {
				r = ex.Arena.Neg(r).ID()
			}
			out = append(out, r)
		}
		return out, expandKind
	}
	return []ast.NodeID{ex.Arena.NewBinOp(v.Op, asNode(ex.Arena, lList), asNode(ex.Arena, rList)).ID()}, group
}

// asNode collapses a term list (singleton for a GROUP result, possibly
// many for an EXPAND result left unconsumed by a GROUP ancestor) into one
// node, summing left to right.
func asNode(a *ast.Arena, list []ast.NodeID) ast.NodeID {
	acc := list[0]
	for _, n := range list[1:] {
		acc = a.Sum(acc, n).ID()
	}
	return acc
}

// tryAggregate attempts spec's "aggregation with hoisted temporaries" step
// on a freshly-built Prod(l, r) node: when one side is a Symbol reference
// to an already-hoisted temporary and the other side (grp) varies only
// within that temporary's own wrap-loop dims, grp is folded into the
// temporary's definition (or a sibling temporary alongside it) instead of
// leaving a new multiply in the tree. Any node that doesn't match this
// shape, or that isn't a valid aggregation candidate (grp escapes the
// temporary's wrap-loop dims), is returned unchanged.
func (ex *Expander) tryAggregate(id ast.NodeID) ast.NodeID {
	if ex.NotAggregate || ex.Hoister == nil || ex.Graph == nil {
		return id
	}
	b, ok := ex.Arena.Get(id).(*ast.BinOp)
	if !ok || b.Op != ast.OpProd {
		return id
	}
	if sym, ok := ex.Arena.Get(b.Left).(*ast.Symbol); ok {
		if p := ex.Hoister.Registry.Get(sym.Name); p != nil {
			return ex.mergeOrSynthesize(id, b.Left, b.Right, sym.Name, p)
		}
	}
	if sym, ok := ex.Arena.Get(b.Right).(*ast.Symbol); ok {
		if p := ex.Hoister.Registry.Get(sym.Name); p != nil {
			return ex.mergeOrSynthesize(id, b.Right, b.Left, sym.Name, p)
		}
	}
	return id
}

// mergeOrSynthesize implements the two-way choice spec's aggregation step
// prescribes, gated on whether grp is even a valid aggregation candidate:
// grp must depend on nothing beyond exp's own wrap-loop dims, or folding it
// into exp's definition (which lives inside a loop over only those dims)
// would make that definition vary over a dimension its wrap loop doesn't
// iterate. Only once that holds does it choose between folding grp into
// exp's own defining statement in place (nobody else reads exp) or minting
// a sibling temporary alongside exp's declaration (exp is read elsewhere).
// orig is returned untouched whenever grp isn't confined, since the pairing
// is then not a valid aggregation candidate at all.
func (ex *Expander) mergeOrSynthesize(orig, exp, grp ast.NodeID, name string, p *hoist.Placement) ast.NodeID {
	if !ex.confinedTo(grp, p.Rank) {
		return orig
	}
	cacheKey := ast.CanonicalKey(ex.Arena, exp) + "|" + ast.CanonicalKey(ex.Arena, grp)
	if cached, ok := ex.aggCache[cacheKey]; ok {
		return cached
	}
	var result ast.NodeID
	if len(ex.Graph.Readers(name)) == 0 {
		decl, ok := ex.Arena.Get(p.Decl).(*ast.Writer)
		if !ok {
			return orig
		}
		decl.Rvalue = ex.Arena.Prod(decl.Rvalue, ast.Copy(ex.Arena, grp)).ID()
		ex.wireGraph(name, grp)
		result = ex.Arena.NewSymbol(name, p.Rank...).ID()
	} else {
		result = ex.synthesizeAggregate(exp, grp, name, p)
	}
	ex.aggCache[cacheKey] = result
	return result
}

func (ex *Expander) confinedTo(expr ast.NodeID, allowed []string) bool {
	ok := true
	ast.Preorder(ex.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		s, sok := n.(*ast.Symbol)
		if !sok {
			return true
		}
		for _, r := range s.Rank {
			if !ast.IsConstDim(r) && !containsStr(allowed, r) {
				ok = false
			}
		}
		return true
	})
	return ok
}

func (ex *Expander) synthesizeAggregate(exp, grp ast.NodeID, origName string, p *hoist.Placement) ast.NodeID {
	ex.aggSeq++
	name := fmt.Sprintf("%s_EXP_%d_%d", origName, int(exp), ex.aggSeq)
	copyExpr := ex.Arena.Prod(ast.Copy(ex.Arena, exp), ast.Copy(ex.Arena, grp)).ID()
	decl := ex.Arena.NewWriter(ast.OpAssign, ex.Arena.NewSymbol(name, p.Rank...), copyExpr)
	newP := &hoist.Placement{Name: name, Expr: copyExpr, Decl: decl.ID(), WrapLoop: p.WrapLoop, Rank: p.Rank, PlacementBlock: p.PlacementBlock}
	ex.Hoister.Registry.Register(name, ast.CanonicalKey(ex.Arena, copyExpr), newP)
	ex.wireGraph(name, copyExpr)
	if p.WrapLoop != 0 {
		appendToWrapLoopBody(ex.Arena, p.WrapLoop, decl.ID())
	}
	return ex.Arena.NewSymbol(name, p.Rank...).ID()
}

func (ex *Expander) wireGraph(name string, expr ast.NodeID) {
	ex.Graph.AddNode(name)
	seen := make(map[string]bool)
	ast.Preorder(ex.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name != name && !seen[s.Name] {
			seen[s.Name] = true
			ex.Graph.AddDependency(name, s.Name)
		}
		return true
	})
}

// appendToWrapLoopBody descends wrap's chain of nested For loops to the
// innermost Block and appends stmt as a new sibling statement there,
// beside the declaration buildWrapLoop originally wrapped.
func appendToWrapLoopBody(a *ast.Arena, wrap ast.NodeID, stmt ast.NodeID) {
	cur := wrap
	for {
		f, ok := a.Get(cur).(*ast.For)
		if !ok {
			break
		}
		cur = f.Body
	}
	if block, ok := a.Get(cur).(*ast.Block); ok {
		block.Children = append(block.Children, stmt)
	}
}
