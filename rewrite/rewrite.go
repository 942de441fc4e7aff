// Package rewrite is the facade the rest of the module is built to
// support: one Rewriter wraps a session and exposes each optimization
// pass (LICM, expansion, factorization, reassociation, division
// replacement, preevaluation, the sharing-graph rewrite, and CSE
// unpicking) as a method, plus Apply to run the subset a given
// session.Level calls for. This mirrors the teacher's engine.Engine
// composing independent refactoring.Refactoring implementations behind
// one driver, except here the passes share one mutable Session instead of
// each producing an independent edit set.
package rewrite

import (
	"strings"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/exprgraph"
	"github.com/willowfield/coffee/extract"
	"github.com/willowfield/coffee/expand"
	"github.com/willowfield/coffee/cse"
	"github.com/willowfield/coffee/factor"
	"github.com/willowfield/coffee/hoist"
	"github.com/willowfield/coffee/lda"
	"github.com/willowfield/coffee/log"
	"github.com/willowfield/coffee/session"
	"github.com/willowfield/coffee/sharinggraph"
	"github.com/willowfield/coffee/solver"
)

// Rewriter runs rewrite passes over one kernel, sharing a Session across
// them.
type Rewriter struct {
	Session *session.Session
	Graph   *exprgraph.Graph
	Hoister *hoist.Hoister
}

// New returns a Rewriter over sess.
func New(sess *session.Session) *Rewriter {
	return &Rewriter{Session: sess, Graph: exprgraph.New()}
}

// Log returns the diagnostic log accumulated by every pass run so far.
func (r *Rewriter) Log() *log.Log {
	return r.Session.Log
}

// writerSite pairs a Writer statement with the stack of For nodes
// enclosing it, outermost first.
type writerSite struct {
	Writer *ast.Writer
	Nest   []*ast.For
}

func collectWriters(a *ast.Arena, root ast.NodeID) []writerSite {
	var out []writerSite
	var walk func(ast.NodeID, []*ast.For)
	walk = func(id ast.NodeID, nest []*ast.For) {
		if id == 0 {
			return
		}
		switch v := a.Get(id).(type) {
		case *ast.For:
			walk(v.Body, append(append([]*ast.For(nil), nest...), v))
		case *ast.Block:
			for _, c := range v.Children {
				walk(c, nest)
			}
		case *ast.Root:
			for _, c := range v.Children {
				walk(c, nest)
			}
		case *ast.Writer:
			out = append(out, writerSite{Writer: v, Nest: nest})
		}
	}
	walk(root, nil)
	return out
}

func nestDims(nest []*ast.For) []string {
	dims := make([]string, len(nest))
	for i, f := range nest {
		dims[i] = f.Dim
	}
	return dims
}

// metaFor derives site's MetaExpr: its domain dimensions are the nest
// dims that index site's Writer's left-hand side (the reduction this
// Writer accumulates into); every other enclosing loop dim — typically a
// quadrature/basis-function loop — is out-of-domain.
func metaFor(site writerSite) *ast.MetaExpr {
	dims := nestDims(site.Nest)
	var domain []string
	for _, d := range dims {
		if containsStr(site.Writer.Lvalue.Rank, d) {
			domain = append(domain, d)
		}
	}
	return ast.NewMetaExpr("double", 0, dims, domain)
}

// LICM runs generalized loop-invariant code motion over every Writer
// statement in the kernel rooted at root, hoisting extract-selected
// candidates via a shared Hoister (so identical subexpressions across
// different statements dedup into the same temporary). The populated
// Hoister is retained on r for a subsequent Preevaluate or driver to
// place its Registry's declarations into the tree. mode.GlobalCSE relaxes
// deduplication to match by canonical key alone, mode.MaxSharing skips
// hoisting a group whose subtrees outnumber the symbols they share (left
// for factorization to handle instead), and mode.LookAhead turns the
// pass into a dry run that only logs what would be hoisted. mode.Iterative
// repeats extract+hoist over each Writer until a round finds nothing new.
func (r *Rewriter) LICM(root ast.NodeID, mode session.Mode) {
	arena := r.Session.Arena
	var h *hoist.Hoister
	if r.Hoister != nil {
		h = r.Hoister
	} else {
		h = hoist.NewHoister(r.Session, nil, r.Graph)
	}
	h.Pass = "licm"
	h.GlobalCSE = mode.GlobalCSE

	for _, site := range collectWriters(arena, root) {
		an := lda.Analyze(arena, root)
		h.Analysis = an
		meta := metaFor(site)
		extractMode := extract.Normal
		for {
			ex := extract.New(arena, an, meta, extractMode)
			candidates := ex.Extract(site.Writer.Rvalue)
			if mode.MaxSharing {
				candidates = filterMaxSharing(arena, an, candidates)
			}
			progressed := false
			for _, candidate := range candidates {
				if mode.LookAhead {
					r.Session.Log.Infof("licm", "look-ahead: %s is hoistable", ast.Text(arena, candidate))
					continue
				}
				repl, hoisted := h.Hoist(site.Nest, candidate, extractMode)
				if hoisted {
					if ast.ReplaceInPlace(arena, site.Writer.Rvalue, candidate, repl) == 0 && site.Writer.Rvalue == candidate {
						site.Writer.Rvalue = repl
					}
					progressed = true
				}
			}
			if !mode.Iterative || !progressed || mode.LookAhead {
				break
			}
			an = lda.Analyze(arena, root)
			h.Analysis = an
		}
	}
	r.Hoister = h
}

// filterMaxSharing drops any group of candidates whose subtree count
// exceeds the number of distinct symbols its members share: spec's
// max_sharing filter leaves such a group for factorization, which groups
// around a shared operand more cheaply than hoisting every subtree
// individually would.
func filterMaxSharing(arena *ast.Arena, an *lda.Analysis, candidates []ast.NodeID) []ast.NodeID {
	groups := make(map[string][]ast.NodeID)
	var order []string
	for _, c := range candidates {
		key := an.DepsOf(c).Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	var out []ast.NodeID
	for _, key := range order {
		group := groups[key]
		symbols := make(map[string]bool)
		for _, c := range group {
			ast.Preorder(arena, c, func(_ ast.NodeID, n ast.Node) bool {
				if s, ok := n.(*ast.Symbol); ok {
					symbols[s.Name] = true
				}
				return true
			})
		}
		if len(group) > len(symbols) {
			continue
		}
		out = append(out, group...)
	}
	return out
}

// Expand runs algebraic expansion over every Writer's right-hand side in
// the kernel rooted at root, in Standard mode, attempting to aggregate
// distributed factors into any temporary r.Hoister has already
// registered (per site, unless mode.NotAggregate suppresses it).
func (r *Rewriter) Expand(root ast.NodeID, mode session.Mode) {
	arena := r.Session.Arena
	for _, site := range collectWriters(arena, root) {
		ex := expand.New(arena, expand.Standard)
		ex.Meta = metaFor(site)
		ex.NotAggregate = mode.NotAggregate
		if r.Hoister != nil {
			ex.Hoister = r.Hoister
			ex.Graph = r.Graph
		}
		site.Writer.Rvalue = ex.Expand(site.Writer.Rvalue)
	}
}

// Factorize runs standard factorization over every Writer's right-hand
// side in the kernel rooted at root.
func (r *Rewriter) Factorize(root ast.NodeID) {
	arena := r.Session.Arena
	for _, site := range collectWriters(arena, root) {
		fz := factor.New(arena, factor.Standard)
		fz.Meta = metaFor(site)
		site.Writer.Rvalue = fz.Factorize(site.Writer.Rvalue)
	}
}

// Reassociate rewrites every Writer's right-hand side into its
// canonical, reassociated form, the same normalization Canonicalize
// applies before keying a dedup cache, exposed here as a standalone pass
// so a driver can force a deterministic operand order ahead of printing
// or diffing a kernel.
func (r *Rewriter) Reassociate(root ast.NodeID) {
	arena := r.Session.Arena
	for _, site := range collectWriters(arena, root) {
		site.Writer.Rvalue = ast.Canonicalize(arena, site.Writer.Rvalue)
	}
}

// ReplaceDiv rewrites every a/b division in the kernel into a *
// (1.0/b), so that hoisting b's reciprocal (left to a later LICM pass)
// turns a per-iteration division into a per-iteration multiply.
func (r *Rewriter) ReplaceDiv(root ast.NodeID) {
	arena := r.Session.Arena
	for _, site := range collectWriters(arena, root) {
		site.Writer.Rvalue = replaceDiv(arena, site.Writer.Rvalue)
	}
}

func replaceDiv(a *ast.Arena, id ast.NodeID) ast.NodeID {
	if id == 0 {
		return 0
	}
	switch v := a.Get(id).(type) {
	case *ast.BinOp:
		left := replaceDiv(a, v.Left)
		right := replaceDiv(a, v.Right)
		if v.Op == ast.OpDiv {
			one := a.NewSymbol("1.0")
			recip := a.DivOp(one.ID(), right)
			return a.Prod(left, recip.ID()).ID()
		}
		return a.NewBinOp(v.Op, left, right).ID()
	case *ast.UnOp:
		return a.NewUnOp(v.Op, replaceDiv(a, v.Child)).ID()
	case *ast.FunCall:
		args := make([]ast.NodeID, len(v.Args))
		for i, arg := range v.Args {
			args[i] = replaceDiv(a, arg)
		}
		return a.NewFunCall(v.Name, args...).ID()
	case *ast.Ternary:
		return a.NewTernary(replaceDiv(a, v.Cond), replaceDiv(a, v.T), replaceDiv(a, v.F)).ID()
	default:
		return id
	}
}

// Preevaluate inspects every temporary r.Hoister's Registry produced
// (LICM must have run first) and, for each whose Rank names only
// compile-time constants (or is empty), logs nothing further — the value
// is already eligible for constant folding by a downstream compiler.
// For a temporary whose Rank names a dimension that is not one of
// nestDims (a symbolic, non-loop rank the analyzer could not attribute to
// this nest), Preevaluate conservatively leaves it untouched and records
// a Warning rather than risk mis-scoping it: this is the documented
// resolution for the "what if a hoisted symbol's rank is not a loop
// dimension" case.
func (r *Rewriter) Preevaluate(nestDims []string) {
	if r.Hoister == nil {
		return
	}
	for _, name := range r.Hoister.Registry.Names() {
		p := r.Hoister.Registry.Get(name)
		for _, dim := range p.Rank {
			if ast.IsConstDim(dim) {
				continue
			}
			if !containsStr(nestDims, dim) {
				r.Session.Log.Warningf("preevaluate", name, "rank dimension %q is not a loop dimension of the reduction nest; skipping", dim)
			}
		}
	}
}

func containsStr(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

// SGrewrite builds a sharing-graph with one group per hoisted temporary,
// whose gain is ast.EstimateFlops of its definition (Rank is not
// consulted; groups conflict only when they share a member node), and
// selects a conflict-free subset maximizing total estimated savings,
// using a solver.Heuristic since no ILP solver is wired into this
// module. It returns the names of the temporaries selected for sharing.
func (r *Rewriter) SGrewrite() []string {
	if r.Hoister == nil {
		return nil
	}
	g := sharinggraph.New()
	for _, name := range r.Hoister.Registry.Names() {
		p := r.Hoister.Registry.Get(name)
		gain := ast.EstimateFlops(r.Session.Arena, p.Expr)
		g.AddGroup(name, []ast.NodeID{p.Expr}, gain)
	}
	return g.Select(solver.Heuristic{})
}

// tripCount estimates how many times nest's innermost body executes,
// used as Survey's per-iteration trip count n. A symbolic SizeExpr
// contributes no factor (its trip count isn't known at rewrite time), so
// the estimate degrades gracefully to a lower bound rather than failing.
func tripCount(nest []*ast.For) int {
	n := 1
	for _, f := range nest {
		if f.SizeExpr != "" {
			continue
		}
		if f.Size > 0 {
			n *= f.Size
		}
	}
	return n
}

// UnpickCSE reconsiders every temporary r.Hoister's Registry produced: it
// Surveys the cost of pushing each dependency level back into its
// consumers (per the widest loop nest in the kernel, as the trip count
// the push/keep trade-off is evaluated against), then inlines every
// temporary cse.Unpicker.ShouldPush selects back into the Writer bodies
// that reference it.
func (r *Rewriter) UnpickCSE(root ast.NodeID) []string {
	if r.Hoister == nil {
		return nil
	}
	arena := r.Session.Arena
	u := cse.New(r.Session, r.Graph)
	var pushed []string
	n := 1
	for _, name := range r.Hoister.Registry.Names() {
		p := r.Hoister.Registry.Get(name)
		u.Track(name, p.Expr)
		u.CountUses(root, name)
	}
	for _, site := range collectWriters(arena, root) {
		if tc := tripCount(site.Nest); tc > n {
			n = tc
		}
	}
	u.Survey(n)
	for _, site := range collectWriters(arena, root) {
		ast.Preorder(arena, site.Writer.Rvalue, func(id ast.NodeID, node ast.Node) bool {
			s, ok := node.(*ast.Symbol)
			if !ok {
				return true
			}
			if u.ShouldPush(s.Name) {
				repl := u.Push(s.Name)
				ast.ReplaceInPlace(arena, site.Writer.Rvalue, id, repl)
			}
			return true
		})
	}
	for _, name := range u.Names() {
		if u.ShouldPush(name) {
			pushed = append(pushed, name)
		}
	}
	return pushed
}

// Apply runs the passes appropriate for level over the kernel rooted at
// root, in the fixed order the optimization levels compose in:
// reassociation, then LICM; then (at level >= LevelExpandFactor)
// expansion and factorization followed by a second LICM pass to hoist
// what factorization exposed; then (at level >= LevelCSE) preevaluation
// of any now-constant hoisted temporaries followed by CSE unpicking;
// then (at level >= LevelSharingGraph) the sharing-graph rewrite. Zero
// column elimination (spec level 3's other half) is out of scope for
// this module, so LevelCSE folds preevaluation into the slot it would
// have occupied instead. When mode.Iterative is set, the
// expand/factorize/LICM round repeats until a pass leaves the kernel's
// canonical form unchanged, rather than running exactly once. It returns
// the first fatal error logged, if any; non-fatal diagnostics remain on
// Log.
func (r *Rewriter) Apply(root ast.NodeID, level session.Level, mode session.Mode) error {
	if level >= session.LevelLICM {
		r.Reassociate(root)
		r.LICM(root, mode)
	}
	if level >= session.LevelExpandFactor {
		for {
			before := writerKeys(r.Session.Arena, root)
			r.Expand(root, mode)
			r.Factorize(root)
			r.LICM(root, mode)
			if !mode.Iterative || before == writerKeys(r.Session.Arena, root) {
				break
			}
		}
	}
	if level >= session.LevelCSE {
		r.Preevaluate(kernelDims(r.Session.Arena, root))
		r.UnpickCSE(root)
	}
	if level >= session.LevelSharingGraph {
		r.SGrewrite()
	}
	if r.Session.Log.ContainsFatalErrors() {
		return errFatal{r.Session.Log}
	}
	return nil
}

// writerKeys returns the concatenated canonical key of every Writer's
// right-hand side in the kernel, in a stable traversal order — a cheap
// fingerprint Apply uses to detect when an iterative expand/factorize/LICM
// round has reached a fixed point.
func writerKeys(a *ast.Arena, root ast.NodeID) string {
	var sb strings.Builder
	for _, site := range collectWriters(a, root) {
		sb.WriteString(ast.CanonicalKey(a, site.Writer.Rvalue))
		sb.WriteByte(';')
	}
	return sb.String()
}

// kernelDims returns every loop dimension appearing anywhere in the
// kernel rooted at root, used by Preevaluate to validate a hoisted
// temporary's rank against the nests that actually exist.
func kernelDims(a *ast.Arena, root ast.NodeID) []string {
	seen := make(map[string]bool)
	var dims []string
	for _, site := range collectWriters(a, root) {
		for _, d := range nestDims(site.Nest) {
			if !seen[d] {
				seen[d] = true
				dims = append(dims, d)
			}
		}
	}
	return dims
}

type errFatal struct {
	log *log.Log
}

func (e errFatal) Error() string {
	return "rewrite: fatal error encountered: " + e.log.String()
}
