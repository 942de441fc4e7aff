// Package extract selects candidate subexpressions for hoisting out of a
// loop nest. It sits between the dependence analyzer and the hoister:
// lda answers "what does this node depend on", extract answers "which
// nodes are worth asking the hoister about at all", and hoist does the
// actual rewrite.
//
// The four non-Normal modes mirror the original rewriter's extraction
// modes, which let a caller target a specific class of subexpression
// (compile-time constant, something that only varies over the domain
// loops indexing the Writer's left-hand side, or something that only
// varies over the out-of-domain quadrature/reduction loops) instead of
// the general case.
package extract

import (
	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/dimset"
	"github.com/willowfield/coffee/lda"
)

// Mode selects which subexpressions Extract treats as candidates.
type Mode int

const (
	// Normal candidates are any arithmetic subexpression depending on
	// fewer loop dimensions than the expression's domain Dimension().
	Normal Mode = iota
	// Aggressive behaves like Normal but keeps descending into a node's
	// children even after selecting it as a candidate, surfacing nested
	// candidates a single top-down cut would otherwise hide.
	Aggressive
	// OnlyConst candidates are subexpressions invariant w.r.t. the
	// entire enclosing nest (compile-time constant for the kernel call).
	OnlyConst
	// OnlyDomain candidates depend on domain dimensions only.
	OnlyDomain
	// OnlyOutDomain candidates depend on out-of-domain dimensions only.
	OnlyOutDomain
)

// Extractor selects candidates within one expression's subtree.
type Extractor struct {
	Arena    *ast.Arena
	Analysis *lda.Analysis
	Meta     *ast.MetaExpr
	Mode     Mode
}

// New returns an Extractor configured with mode.
func New(arena *ast.Arena, an *lda.Analysis, meta *ast.MetaExpr, mode Mode) *Extractor {
	return &Extractor{Arena: arena, Analysis: an, Meta: meta, Mode: mode}
}

// Extract returns expr's candidate subexpressions, outermost first.
func (e *Extractor) Extract(expr ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	e.visit(expr, &out)
	return out
}

func (e *Extractor) visit(id ast.NodeID, out *[]ast.NodeID) {
	if id == 0 || !ast.IsArithmetic(e.Arena, id) {
		return
	}
	captured := e.isCandidate(id)
	if captured {
		*out = append(*out, id)
		if e.Mode != Aggressive {
			return
		}
	}
	for _, c := range ast.Children(e.Arena, e.Arena.Get(id)) {
		e.visit(c, out)
	}
}

func (e *Extractor) isCandidate(id ast.NodeID) bool {
	deps := e.Analysis.DepsOf(id)
	switch e.Mode {
	case OnlyConst:
		return deps.Empty()
	case OnlyDomain:
		return dependsOnlyOn(deps, e.Meta.Domain)
	case OnlyOutDomain:
		return dependsOnlyOn(deps, e.Meta.OutDomain())
	default: // Normal, Aggressive
		return deps.Len() < e.Meta.Dimension()
	}
}

func dependsOnlyOn(deps *dimset.Set, allowed []string) bool {
	if deps.Empty() {
		return false
	}
	for _, d := range deps.Dims() {
		if !containsStr(allowed, d) {
			return false
		}
	}
	return true
}

func containsStr(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
