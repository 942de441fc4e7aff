// Package factor implements factorization: the inverse of expand,
// re-grouping a sum of products around a factor shared by as many terms
// as possible, e.g. a*c + b*c -> (a+b)*c, so the multiply is paid for
// once per group of terms rather than once per term.
//
// A Term is one additive operand of a (flattened) sum, itself flattened
// into its multiplicative factors and split into two lists: Operands,
// the factors eligible for collection under the active mode's
// should_factorize predicate, and Factors, everything else multiplied
// alongside. Factorization repeatedly picks the Operand shared by the
// most Terms, pulls it out of those Terms as Prod(operand, Sum(rest)),
// and continues on the Terms that did not carry it.
package factor

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/willowfield/coffee/ast"
)

// Mode selects should_factorize, the predicate deciding which factors of
// a Term are collection-eligible Operands rather than opaque Factors, or
// (for Adhoc/Heuristic) the strategy that picks the group to factor out.
type Mode int

const (
	// Standard computes per-domain-dimension occurrence counts over every
	// symbol in the expression, picks the dimension with the highest
	// count (falling back to out-of-domain dims if none occurs), and
	// collects the symbols that do not depend on that dimension.
	Standard Mode = iota
	// Dimensions collects a symbol depending on any of a caller-supplied
	// dimension set.
	Dimensions
	// All collects a symbol depending on any loop dimension at all.
	All
	// Domain collects a symbol depending on a domain dimension.
	Domain
	// OutDomain collects a symbol depending on an out-of-domain dimension.
	OutDomain
	// Constants collects rank-less (compile-time constant) symbols.
	Constants
	// Adhoc factors out only a single, caller-supplied factor (by its
	// canonical text key), optionally constrained by AdhocMap, leaving
	// every other term untouched. Used when a caller already knows which
	// factor it wants pulled out.
	Adhoc
	// Heuristic greedily factors out the most shared factor, repeatedly,
	// until no factor occurs in more than one remaining term.
	Heuristic
)

// Term is one additive operand of a sum, decomposed into its
// multiplicative factors and partitioned into collection-eligible
// Operands and opaque Factors.
type Term struct {
	Expr     ast.NodeID   // the term's original (unfactored) subtree
	Operands []ast.NodeID // factors should_factorize accepted
	Factors  []ast.NodeID // every other factor
	opKeys   []string     // Text() of each Operand, parallel to Operands
	facKeys  []string     // Text() of each Factor, parallel to Factors
}

// Factorizer re-groups the terms of a Sum/Sub chain around shared
// operands.
type Factorizer struct {
	Arena *ast.Arena
	Mode  Mode
	Dims  []string // consulted only by Dimensions mode
	Meta  *ast.MetaExpr

	// Target, for Adhoc mode, is the canonical key of the single operand
	// to pull out.
	Target string
	// AdhocMap, for Adhoc mode, maps an operand's canonical key to the
	// set of co-operand canonical keys a Term's remaining factors are
	// allowed to contain; a Term whose factors mention a co-operand
	// outside this set is excluded from the group even though it carries
	// Target. Nil means unconstrained.
	AdhocMap map[string][]string

	dim string
}

// New returns a Factorizer configured with mode.
func New(arena *ast.Arena, mode Mode) *Factorizer {
	return &Factorizer{Arena: arena, Mode: mode}
}

// CollectTerms flattens the Sum/Sub chain rooted at expr into Terms, each
// itself flattened over Prod and partitioned into Operands/Factors, with
// constant-premultiplication folding every numeric-literal factor of a
// Term into a single literal first.
func (f *Factorizer) CollectTerms(expr ast.NodeID) []Term {
	if f.Mode == Standard {
		f.dim = f.chooseStandardDim(expr)
	}
	op := ast.OpSum
	if b, ok := f.Arena.Get(expr).(*ast.BinOp); ok && b.Op == ast.OpSub {
		op = ast.OpSub
	}
	addends := ast.FlattenChain(f.Arena, expr, op)
	terms := make([]Term, len(addends))
	for i, o := range addends {
		terms[i] = f.buildTerm(o)
	}
	return terms
}

func (f *Factorizer) buildTerm(expr ast.NodeID) Term {
	raw := ast.FlattenChain(f.Arena, expr, ast.OpProd)
	raw = f.foldConstants(raw)

	var operands, factors []ast.NodeID
	for _, fa := range raw {
		if f.eligible(fa) {
			operands = append(operands, fa)
		} else {
			factors = append(factors, fa)
		}
	}
	opKeys := make([]string, len(operands))
	for i, o := range operands {
		opKeys[i] = ast.CanonicalKey(f.Arena, o)
	}
	facKeys := make([]string, len(factors))
	for i, fa := range factors {
		facKeys[i] = ast.CanonicalKey(f.Arena, fa)
	}
	return Term{Expr: expr, Operands: operands, Factors: factors, opKeys: opKeys, facKeys: facKeys}
}

// eligible reports whether factor node fa is should_factorize-eligible
// (an Operand) under the active mode. Adhoc and Heuristic treat every
// factor as potentially eligible: which one actually gets collected is
// decided by the grouping algorithm, not per-factor here.
func (f *Factorizer) eligible(fa ast.NodeID) bool {
	sym, ok := f.Arena.Get(fa).(*ast.Symbol)
	if !ok {
		return false
	}
	switch f.Mode {
	case Dimensions:
		return intersects(sym.Rank, f.Dims)
	case All:
		return anyLoopDim(sym.Rank)
	case Domain:
		return anyMatch(sym.Rank, f.Meta != nil, f.isDomainDim)
	case OutDomain:
		return anyMatch(sym.Rank, f.Meta != nil, f.isOutDomainDim)
	case Constants:
		return len(sym.Rank) == 0
	case Adhoc, Heuristic:
		return true
	default: // Standard
		// Standard factorize inverts standard expand: expand distributed
		// along the highest-occurrence domain dim, so the symbols that do
		// *not* depend on that dim are the ones left in common across the
		// terms it produced, and are what should be collected back out.
		if f.dim == "" {
			return false
		}
		return !containsStr(sym.Rank, f.dim)
	}
}

// chooseStandardDim mirrors the expander's: the domain dimension with the
// highest occurrence count across every symbol in expr, falling back to
// out-of-domain dims when no domain dimension occurs.
func (f *Factorizer) chooseStandardDim(expr ast.NodeID) string {
	if f.Meta == nil {
		return ""
	}
	counts := make(map[string]int)
	ast.Preorder(f.Arena, expr, func(_ ast.NodeID, n ast.Node) bool {
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
	if d, ok := bestOf(counts, f.Meta.Domain); ok {
		return d
	}
	d, _ := bestOf(counts, f.Meta.OutDomain())
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

func (f *Factorizer) isDomainDim(d string) bool {
	return f.Meta != nil && f.Meta.IsDomain(d)
}

func (f *Factorizer) isOutDomainDim(d string) bool {
	if f.Meta == nil {
		return false
	}
	for _, od := range f.Meta.OutDomain() {
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

// foldConstants combines every rank-less numeric-literal factor of a
// Prod chain into a single literal, so e.g. 2*X[i]*3 collects to
// 6*X[i] before operand/factor partitioning sees it.
func (f *Factorizer) foldConstants(factors []ast.NodeID) []ast.NodeID {
	var lits []ast.NodeID
	var rest []ast.NodeID
	product := 1.0
	sawLit := false
	for _, fa := range factors {
		if sym, ok := f.Arena.Get(fa).(*ast.Symbol); ok && len(sym.Rank) == 0 {
			if v, err := strconv.ParseFloat(sym.Name, 64); err == nil {
				lits = append(lits, fa)
				product *= v
				sawLit = true
				continue
			}
		}
		rest = append(rest, fa)
	}
	if len(lits) < 2 {
		return factors
	}
	_ = sawLit
	folded := f.Arena.NewSymbol(formatConst(product)).ID()
	return append([]ast.NodeID{folded}, rest...)
}

func formatConst(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Factorize rewrites expr, a Sum/Sub chain, by grouping terms around
// shared operands, and returns the new expression root.
func (f *Factorizer) Factorize(expr ast.NodeID) ast.NodeID {
	terms := f.CollectTerms(expr)
	if len(terms) < 2 {
		return expr
	}
	terms = f.dedupTerms(terms)
	if f.Mode == Adhoc {
		return f.factorAdhoc(terms)
	}
	return f.factorGreedy(terms)
}

// dedupTerms collapses syntactically identical terms (same canonical
// key for the whole, unfactored addend) into one, promoting the
// duplicate count into a numeric factor multiplying the survivor.
func (f *Factorizer) dedupTerms(terms []Term) []Term {
	counts := make(map[string]int)
	order := make([]string, 0, len(terms))
	first := make(map[string]Term)
	for _, t := range terms {
		key := ast.CanonicalKey(f.Arena, t.Expr)
		if counts[key] == 0 {
			order = append(order, key)
			first[key] = t
		}
		counts[key]++
	}
	out := make([]Term, 0, len(order))
	for _, key := range order {
		t := first[key]
		if counts[key] > 1 {
			lit := f.Arena.NewSymbol(formatConst(float64(counts[key]))).ID()
			t.Factors = append([]ast.NodeID{lit}, t.Factors...)
			t.facKeys = append([]string{ast.CanonicalKey(f.Arena, lit)}, t.facKeys...)
		}
		out = append(out, t)
	}
	return out
}

func (f *Factorizer) factorAdhoc(terms []Term) ast.NodeID {
	var matched, unmatched []Term
	for _, t := range terms {
		idx := indexOfKey(t.opKeys, f.Target)
		if idx < 0 {
			idx = indexOfKey(t.facKeys, f.Target)
			if idx < 0 {
				unmatched = append(unmatched, t)
				continue
			}
			if f.forbidden(t.facKeys, idx) {
				unmatched = append(unmatched, t)
				continue
			}
			matched = append(matched, f.withoutFactorAt(t, idx))
			continue
		}
		if f.forbidden(t.opKeys, idx) {
			unmatched = append(unmatched, t)
			continue
		}
		matched = append(matched, f.withoutOperandAt(t, idx))
	}
	if len(matched) < 2 {
		return f.rebuildSum(terms)
	}
	group := f.rebuildSum(matched)
	grouped := f.Arena.Prod(f.findOperandNode(terms, f.Target), group).ID()
	all := append([]Term{{Expr: grouped, Factors: []ast.NodeID{grouped}}}, unmatched...)
	return f.rebuildSum(all)
}

// forbidden reports whether term's remaining co-operands (everything
// but the index-th) contain a key AdhocMap[f.Target] does not list,
// when AdhocMap constrains f.Target.
func (f *Factorizer) forbidden(keys []string, idx int) bool {
	if f.AdhocMap == nil {
		return false
	}
	allowed, ok := f.AdhocMap[f.Target]
	if !ok {
		return false
	}
	for i, k := range keys {
		if i == idx {
			continue
		}
		if !containsStr(allowed, k) {
			return true
		}
	}
	return false
}

func (f *Factorizer) findOperandNode(terms []Term, key string) ast.NodeID {
	for _, t := range terms {
		if idx := indexOfKey(t.opKeys, key); idx >= 0 {
			return ast.Copy(f.Arena, t.Operands[idx])
		}
		if idx := indexOfKey(t.facKeys, key); idx >= 0 {
			return ast.Copy(f.Arena, t.Factors[idx])
		}
	}
	return 0
}

// factorGreedy finds the should_factorize-eligible operand symbol
// occurring in the most terms and pulls it out via factorAdhoc, until no
// eligible symbol occurs in more than one remaining term. A symbol
// occurring in every term is adopted outright as the universal operand.
// Used by every mode but Adhoc: under Heuristic every factor is eligible
// so this degenerates to the plain greedy-most-shared-factor strategy;
// under the filtered modes (Standard, Dimensions, All, Domain, OutDomain,
// Constants) only factors the active predicate accepted are candidates.
func (f *Factorizer) factorGreedy(terms []Term) ast.NodeID {
	counts := make(map[string]int)
	for _, t := range terms {
		seen := make(map[string]bool)
		for _, k := range t.opKeys {
			if !seen[k] {
				counts[k]++
				seen[k] = true
			}
		}
	}
	best, bestCount := "", 1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] == len(terms) {
			best, bestCount = k, counts[k]
			break
		}
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	if best == "" {
		return f.rebuildSum(terms)
	}
	f.Target = best
	var with, without []Term
	for _, t := range terms {
		if indexOfKey(t.opKeys, best) >= 0 {
			with = append(with, t)
		} else {
			without = append(without, t)
		}
	}
	if len(without) < 2 {
		return f.factorAdhoc(terms)
	}
	grouped := f.factorAdhoc(with)
	return f.Arena.Sum(grouped, f.factorGreedy(without)).ID()
}

func (f *Factorizer) rebuildSum(terms []Term) ast.NodeID {
	nodes := make([]ast.NodeID, len(terms))
	for i, t := range terms {
		nodes[i] = t.Expr
	}
	acc := nodes[0]
	for _, n := range nodes[1:] {
		acc = f.Arena.Sum(acc, n).ID()
	}
	return acc
}

func indexOfKey(keys []string, target string) int {
	for i, k := range keys {
		if k == target {
			return i
		}
	}
	return -1
}

// withoutOperandAt returns a Term equal to t with its idx-th Operand
// removed, re-multiplying what's left of that list back into Factors'
// company via Expr (used for a Term that carries the operand being
// pulled out).
func (f *Factorizer) withoutOperandAt(t Term, idx int) Term {
	operands := removeAt(t.Operands, idx)
	opKeys := removeKeyAt(t.opKeys, idx)
	remaining := append(append([]ast.NodeID{}, operands...), t.Factors...)
	return Term{Operands: operands, opKeys: opKeys, Factors: t.Factors, facKeys: t.facKeys, Expr: f.remultiply(remaining)}
}

// withoutFactorAt returns a Term equal to t with its idx-th Factor
// removed, re-multiplying the remaining factors (and operands) into
// Expr. A term left with nothing multiplies to the identity.
func (f *Factorizer) withoutFactorAt(t Term, idx int) Term {
	factors := removeAt(t.Factors, idx)
	facKeys := removeKeyAt(t.facKeys, idx)
	remaining := append(append([]ast.NodeID{}, t.Operands...), factors...)
	return Term{Operands: t.Operands, opKeys: t.opKeys, Factors: factors, facKeys: facKeys, Expr: f.remultiply(remaining)}
}

func removeAt(xs []ast.NodeID, idx int) []ast.NodeID {
	out := make([]ast.NodeID, 0, len(xs)-1)
	for i, x := range xs {
		if i != idx {
			out = append(out, x)
		}
	}
	return out
}

func removeKeyAt(xs []string, idx int) []string {
	out := make([]string, 0, len(xs)-1)
	for i, x := range xs {
		if i != idx {
			out = append(out, x)
		}
	}
	return out
}

func (f *Factorizer) remultiply(factors []ast.NodeID) ast.NodeID {
	if len(factors) == 0 {
		// Every factor of this term was the one being pulled out: what
		// remains multiplies to the identity.
		return f.Arena.NewSymbol("1").ID()
	}
	acc := factors[0]
	for _, fa := range factors[1:] {
		acc = f.Arena.Prod(acc, fa).ID()
	}
	return acc
}

// String renders a Term for debugging/logging: "operands=[...] factors=[...]".
func (t Term) String() string {
	return fmt.Sprintf("operands=%v factors=%v", t.opKeys, t.facKeys)
}
