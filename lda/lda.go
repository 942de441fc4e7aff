// Package lda implements the loop-dependence analyzer: for every
// expression node in a kernel, which of its enclosing loop dimensions its
// value actually varies over.
//
// This is the same shape of problem the teacher's analysis/dataflow
// package solves for reaching definitions and liveness — propagate a set
// forward or backward over a graph until it stabilizes — except here the
// "graph" is the AST itself (a symbol depends on the loops whose
// dimension appears in its rank; every other node depends on the union
// of its children's dependence sets) and the walk is a single top-down
// pass with an explicit loop-nest stack rather than a fixed-point
// iteration, since a kernel's AST has no back edges.
package lda

import (
	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/dimset"
)

// Analysis holds the per-node results of analyzing one kernel.
type Analysis struct {
	Interner *dimset.Interner
	deps     map[ast.NodeID]*dimset.Set
	nest     map[ast.NodeID][]string
}

// Analyze walks the subtree rooted at id, entering For nodes to grow the
// current loop nest, and returns the dependence sets of every expression
// node beneath it.
func Analyze(a *ast.Arena, id ast.NodeID) *Analysis {
	an := &Analysis{
		Interner: dimset.NewInterner(),
		deps:     make(map[ast.NodeID]*dimset.Set),
		nest:     make(map[ast.NodeID][]string),
	}
	an.walk(a, id, nil)
	return an
}

func (an *Analysis) walk(a *ast.Arena, id ast.NodeID, nest []string) *dimset.Set {
	if id == 0 {
		return dimset.New(an.Interner)
	}
	an.nest[id] = append([]string(nil), nest...)
	switch v := a.Get(id).(type) {
	case *ast.Symbol:
		s := dimset.New(an.Interner)
		for _, r := range v.Rank {
			if ast.IsConstDim(r) {
				continue
			}
			if containsDim(nest, r) {
				s.Add(r)
			}
		}
		an.deps[id] = s
		return s
	case *ast.For:
		childNest := append(append([]string(nil), nest...), v.Dim)
		body := an.walk(a, v.Body, childNest)
		an.deps[id] = body
		return body
	default:
		s := dimset.New(an.Interner)
		for _, c := range ast.Children(a, v) {
			s = s.Union(an.walk(a, c, nest))
		}
		an.deps[id] = s
		return s
	}
}

func containsDim(nest []string, d string) bool {
	for _, n := range nest {
		if n == d {
			return true
		}
	}
	return false
}

// DepsOf returns id's dependence set, or an empty set if id was not
// visited by Analyze.
func (an *Analysis) DepsOf(id ast.NodeID) *dimset.Set {
	if s, ok := an.deps[id]; ok {
		return s
	}
	return dimset.New(an.Interner)
}

// NestOf returns the ordered loop dimensions enclosing id at the point
// Analyze visited it, outermost first.
func (an *Analysis) NestOf(id ast.NodeID) []string {
	return an.nest[id]
}

// IsInvariant reports whether id's value does not depend on dim — the
// core predicate LICM uses to decide whether a subexpression can be
// hoisted above the loop iterating dim.
func (an *Analysis) IsInvariant(id ast.NodeID, dim string) bool {
	return !an.DepsOf(id).Contains(dim)
}

// InvariantPrefix returns the longest prefix of nest (outermost first)
// that id is invariant with respect to, i.e. the loops id's
// subexpression can be hoisted above without changing behavior.
func (an *Analysis) InvariantPrefix(id ast.NodeID, nest []string) []string {
	deps := an.DepsOf(id)
	i := 0
	for ; i < len(nest); i++ {
		if deps.Contains(nest[i]) {
			break
		}
	}
	return nest[:i]
}
