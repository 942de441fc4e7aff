// Package cse implements CSE unpicking: deciding, after LICM and
// factorization have introduced a round of shared temporaries, which of
// those temporaries are not actually worth materializing and inlining
// ("pushing") their definition back into the statements that reference
// them.
//
// The decision follows the cost model every other pass in this module
// is built around (ast.EstimateFlops), applied across the dependency
// *levels* the shared temporaries form: level 0 temporaries read only
// program symbols, level 1 temporaries read at least one level-0
// temporary, and so on — the longest dependent-write chain ending at a
// name, found by walking exprgraph.Graph. Pushing every temporary in a
// level range (lo, hi] back into its consumers trades N avoided
// loads/stores per level against the extra per-consumer recomputation;
// Survey evaluates that trade for every candidate range and keeps the
// cheapest, rather than a single magic-constant threshold.
package cse

import (
	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/session"
)

// Temporary tracks one named, shared subexpression the rewriter
// introduced.
type Temporary struct {
	Name       string
	Expr       ast.NodeID
	Level      int            // longest chain of dependent tracked writes ending here
	Cost       int            // ast.EstimateFlops of Expr
	ReadsCosts map[string]int // per-operand read tally, keyed by symbol name
	Uses       int
}

// Unpicker tracks every Temporary introduced during a rewrite session,
// surveys the cost of pushing ranges of dependency levels back into
// their consumers, and decides which to push.
type Unpicker struct {
	Arena   *ast.Arena
	Graph   *exprgraph.Graph
	Session *session.Session

	temps map[string]*Temporary
	order []string
	level map[string]int

	lo, hi   int  // the (lo, hi] push range Survey last chose; hi==lo means push nothing
	surveyed bool // whether Survey has run since the last Track
}

// New returns an Unpicker over sess's arena, recording dependencies in
// graph.
func New(sess *session.Session, graph *exprgraph.Graph) *Unpicker {
	return &Unpicker{
		Arena:   sess.Arena,
		Graph:   graph,
		Session: sess,
		temps:   make(map[string]*Temporary),
		level:   make(map[string]int),
	}
}

// Track registers name as a temporary computed by expr, seeding its cost
// from ast.EstimateFlops and its per-operand ReadsCosts. Re-tracking an
// existing name updates its definition in place (e.g. after a later pass
// rewrote it) and invalidates any previously Surveyed push range.
func (u *Unpicker) Track(name string, expr ast.NodeID) *Temporary {
	t, ok := u.temps[name]
	if !ok {
		t = &Temporary{Name: name}
		u.temps[name] = t
		u.order = append(u.order, name)
	}
	t.Expr = expr
	t.Cost = ast.EstimateFlops(u.Arena, expr)
	t.ReadsCosts = u.readsCosts(expr)
	u.wireGraph(name, expr)
	u.level = make(map[string]int)
	u.lo, u.hi = 0, 0
	u.surveyed = false
	return t
}

// wireGraph records, in the shared expression graph, that name's
// definition reads every distinct symbol occurring in expr: the same
// add_dependency bookkeeping LICM and expansion perform, kept current
// here so Level's chain walk and a later hazard check both see an
// accurate picture of what this temporary depends on.
func (u *Unpicker) wireGraph(name string, expr ast.NodeID) {
	u.Graph.AddNode(name)
	seen := make(map[string]bool)
	ast.Preorder(u.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name != name && !seen[s.Name] {
			seen[s.Name] = true
			u.Graph.AddDependency(name, s.Name)
		}
		return true
	})
}

// readsCosts tallies, for every distinct Symbol name expr reads, how
// many times it is read — the "reads_costs" a pushed definition's
// consumers must absorb.
func (u *Unpicker) readsCosts(expr ast.NodeID) map[string]int {
	out := make(map[string]int)
	ast.Preorder(u.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok {
			out[s.Name]++
		}
		return true
	})
	return out
}

// CountUses scans root for Symbol occurrences named name and records the
// count on the tracked Temporary, returning it.
func (u *Unpicker) CountUses(root ast.NodeID, name string) int {
	count := 0
	ast.Preorder(u.Arena, root, func(id ast.NodeID, n ast.Node) bool {
		if s, ok := n.(*ast.Symbol); ok && s.Name == name {
			count++
		}
		return true
	})
	if t, ok := u.temps[name]; ok {
		t.Uses = count
	}
	return count
}

// Get returns the tracked Temporary for name, or nil.
func (u *Unpicker) Get(name string) *Temporary {
	return u.temps[name]
}

// Names returns every tracked temporary name in the order first Tracked.
func (u *Unpicker) Names() []string {
	return append([]string(nil), u.order...)
}

// Level returns name's dependency level: the longest chain of tracked
// temporaries name's definition transitively reads, 0 if it reads none.
// Only edges into other tracked temporaries count; reads of ordinary
// program symbols don't extend the chain.
func (u *Unpicker) Level(name string) int {
	if l, ok := u.level[name]; ok {
		return l
	}
	best := 0
	for _, dep := range u.Graph.Dependencies(name) {
		if _, tracked := u.temps[dep]; !tracked {
			continue
		}
		if l := 1 + u.Level(dep); l > best {
			best = l
		}
	}
	u.level[name] = best
	return best
}

func (u *Unpicker) maxLevel() int {
	max := 0
	for _, name := range u.order {
		if l := u.Level(name); l > max {
			max = l
		}
	}
	return max
}

// Survey runs the level-range cost model over every tracked temporary,
// assuming the enclosing loop has trip count n, and records the
// minimizing (lo*, hi*]. Call it once after every temporary relevant to
// one loop has been Tracked and CountUses'd.
func (u *Unpicker) Survey(n int) (lo, hi int) {
	max := u.maxLevel()
	bestCost := u.upToLevelCost(n, max, max)
	bestLo, bestHi := max, max
	// lo starts at -1 so level-0 temporaries (the common case: a plain
	// hoisted value reading only program symbols, no other tracked
	// temporary) are themselves eligible for the (lo, hi] push range.
	for l := -1; l <= max; l++ {
		for h := l; h <= max; h++ {
			c := u.upToLevelCost(n, l, h)
			if c < bestCost {
				bestCost, bestLo, bestHi = c, l, h
			}
		}
	}
	u.lo, u.hi = bestLo, bestHi
	u.surveyed = true
	return bestLo, bestHi
}

// upToLevelCost evaluates uptolevel_cost(lo, hi): the cost of keeping
// every temporary materialized except those at levels (lo, hi], which
// are pushed back into their consumers and re-paid per iteration.
func (u *Unpicker) upToLevelCost(n, lo, hi int) int {
	var keptCost, outLoopCost, inLoopCost int
	for _, name := range u.order {
		t := u.temps[name]
		l := u.Level(name)
		if l > lo && l <= hi {
			for _, c := range t.ReadsCosts {
				outLoopCost += c
			}
			inLoopCost += 2*len(t.ReadsCosts) - 1
			continue
		}
		keptCost += t.Cost
	}
	return n*keptCost + outLoopCost + n*inLoopCost
}

// ShouldPush reports whether name's definition should be inlined back
// into its use sites instead of kept materialized: its level falls
// within the (lo, hi] range the last Survey chose, or — if Survey was
// never called — it is read at most once. A temporary the expression
// graph flags as part of a dependency cycle (e.g. an accumulator
// re-read and re-assigned in the same loop body) is never pushed, since
// inlining it would duplicate a side effect rather than a pure value.
func (u *Unpicker) ShouldPush(name string) bool {
	t, ok := u.temps[name]
	if !ok {
		return false
	}
	if u.Graph.HasCycleThrough(name) {
		return false
	}
	if u.surveyed {
		l := u.Level(name)
		return l > u.lo && l <= u.hi
	}
	return t.Uses <= 1
}

// Push returns a fresh copy of name's definition expression, suitable for
// splicing into a use site in place of a reference to name. It panics if
// name was never tracked, since a caller should have checked ShouldPush
// (which implies tracking) first.
func (u *Unpicker) Push(name string) ast.NodeID {
	t := u.temps[name]
	return ast.Copy(u.Arena, t.Expr)
}
