// Package dimset represents sets of loop dimensions — the "dep" tuples
// that flow through the loop-dependence analyzer, extractor, hoister,
// expander, and factorizer.
//
// A Set is backed by a bitset.BitSet for O(1) membership, union, and
// subset tests, the same way the teacher's extras/cfg package represents
// GEN/KILL/DEF/USE sets over an interned index space. A parallel ordered
// slice preserves the order in which dimensions were first observed
// while walking a loop nest outer-to-inner, since the rewriting passes
// require deterministic, nest-order iteration (e.g. when sorting
// extracted dep-tuples, or wrapping a hoisted temporary in nested loops).
package dimset

import (
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Interner assigns small, stable, nest-order integer indices to loop
// dimension names so that dimension sets for a single rewrite session
// can share one bitset universe.
type Interner struct {
	index map[string]uint
	names []string
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{index: make(map[string]uint)}
}

// Intern returns dim's index, assigning it the next free index the first
// time it is seen. Dimensions are expected to be interned in the order
// they are first encountered walking a loop nest outer-to-inner, so that
// index order coincides with nest order.
func (in *Interner) Intern(dim string) uint {
	if idx, ok := in.index[dim]; ok {
		return idx
	}
	idx := uint(len(in.names))
	in.index[dim] = idx
	in.names = append(in.names, dim)
	return idx
}

// Lookup returns dim's index and whether it has been interned.
func (in *Interner) Lookup(dim string) (uint, bool) {
	idx, ok := in.index[dim]
	return idx, ok
}

// Name returns the dimension name at idx.
func (in *Interner) Name(idx uint) string {
	return in.names[idx]
}

// Set is an ordered, bitset-backed collection of loop dimensions.
type Set struct {
	in    *Interner
	bits  *bitset.BitSet
	order []string
}

// New returns an empty Set sharing in's index space.
func New(in *Interner) *Set {
	return &Set{in: in, bits: bitset.New(0)}
}

// Of returns a new Set containing dims, interning any not yet seen.
func Of(in *Interner, dims ...string) *Set {
	s := New(in)
	s.Add(dims...)
	return s
}

// Add inserts dims into s, preserving first-seen order.
func (s *Set) Add(dims ...string) {
	for _, d := range dims {
		idx := s.in.Intern(d)
		if s.bits.Test(idx) {
			continue
		}
		s.bits.Set(idx)
		s.order = append(s.order, d)
	}
}

// Contains reports whether dim is in s.
func (s *Set) Contains(dim string) bool {
	idx, ok := s.in.Lookup(dim)
	if !ok {
		return false
	}
	return s.bits.Test(idx)
}

// Len returns the number of dimensions in s.
func (s *Set) Len() int {
	return len(s.order)
}

// Empty reports whether s has no dimensions (i.e. is constant w.r.t.
// every loop).
func (s *Set) Empty() bool {
	return len(s.order) == 0
}

// Dims returns the dimensions of s in first-seen (nest) order. The
// returned slice must not be mutated.
func (s *Set) Dims() []string {
	return s.order
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	return &Set{in: s.in, bits: s.bits.Clone(), order: append([]string(nil), s.order...)}
}

// Union returns a new Set containing the dimensions of s and other, in
// first-seen order (s's order first, then any of other's dims not in s);
// it does not re-sort them into nest order.
func (s *Set) Union(other *Set) *Set {
	u := s.Clone()
	u.Add(other.order...)
	return u
}

// Subset reports whether every dimension in s is also in other.
func (s *Set) Subset(other *Set) bool {
	for _, d := range s.order {
		if !other.Contains(d) {
			return false
		}
	}
	return true
}

// Equal reports whether s and other contain exactly the same dimensions.
func (s *Set) Equal(other *Set) bool {
	return s.Subset(other) && other.Subset(s)
}

// Disjoint reports whether s and other share no dimension.
func (s *Set) Disjoint(other *Set) bool {
	for _, d := range s.order {
		if other.Contains(d) {
			return false
		}
	}
	return true
}

// SortByNest returns s's dimensions sorted by their position in nest,
// the ordered list of dimensions from outermost to innermost. Dimensions
// of s not present in nest are appended afterwards in first-seen order.
func (s *Set) SortByNest(nest []string) []string {
	pos := make(map[string]int, len(nest))
	for i, d := range nest {
		pos[d] = i
	}
	out := append([]string(nil), s.order...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := pos[out[i]]
		pj, okj := pos[out[j]]
		if oki && okj {
			return pi < pj
		}
		if oki != okj {
			return oki
		}
		return false
	})
	return out
}

// Key returns a canonical string key for s, suitable for use as a map
// key when grouping by dependency tuple (e.g. in the extractor's output
// map, keyed by dep-tuple).
func (s *Set) Key() string {
	return strings.Join(s.order, ",")
}

func (s *Set) String() string {
	return "{" + s.Key() + "}"
}
