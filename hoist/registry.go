// Package hoist implements generalized loop-invariant code motion: given
// a loop-dependence analysis of a kernel, decide which subexpressions can
// be computed once outside some prefix of the enclosing loop nest instead
// of being recomputed on every iteration, and keep a registry of the
// temporaries created to hold them.
//
// The registry is grounded on the teacher's doctor/cache.go pattern of an
// insertion-ordered, name-keyed store: insertion order here matters
// because hoisted declarations must be emitted in the order they were
// introduced for later hoists to be able to reference earlier ones.
package hoist

import "github.com/willowfield/coffee/ast"

// Placement records where and as what a hoisted subexpression was
// materialized: the statement that computes it, its declaration, the
// loop(s) synthesized to wrap that statement when the hoisted value is
// not a scalar, and which block of the original nest the declaration
// (and its wrap loop, if any) was placed in.
type Placement struct {
	Name string
	Expr ast.NodeID // the hoisted expression, owned by this placement
	Decl ast.NodeID // the Writer statement computing Name

	// WrapLoop is 0 when Name is a scalar or was placed directly inside
	// an existing loop with no loop of its own synthesized. Otherwise it
	// is the outermost of one or more nested For nodes synthesized
	// around Decl, one per entry of Rank, so every element of Name is
	// actually computed rather than just its first.
	WrapLoop ast.NodeID
	Rank     []string // loop dims Name is still indexed by, outer to inner

	// PlacementBlock identifies where Decl (and WrapLoop, if any) sits
	// relative to the original nest: "header" (above the entire nest),
	// "loop:<dim>" (at the top of the body of the loop named dim), or
	// "before_writer" (immediately before the target Writer, with no
	// loop of the original nest to attach to).
	PlacementBlock string
}

// CutLoop returns the Dim of the loop Decl was placed inside, or "" if it
// sits above the entire nest or immediately before the writer.
func (p *Placement) CutLoop() string {
	const prefix = "loop:"
	if len(p.PlacementBlock) > len(prefix) && p.PlacementBlock[:len(prefix)] == prefix {
		return p.PlacementBlock[len(prefix):]
	}
	return ""
}

// Registry is an insertion-ordered, dedup-aware store of hoisted
// temporaries, keyed both by synthesized name and by the canonical text
// key of the expression they replace.
type Registry struct {
	order  []string
	byName map[string]*Placement
	byKey  map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Placement), byKey: make(map[string]string)}
}

// Lookup returns the Placement previously registered under canonical key,
// if any — the dedup check the hoister runs before minting a new
// temporary for a subexpression it has already hoisted once.
func (r *Registry) Lookup(key string) (*Placement, bool) {
	name, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return r.byName[name], true
}

// Register records p under name, keyed for future Lookups by key.
func (r *Registry) Register(name, key string, p *Placement) {
	r.order = append(r.order, name)
	r.byName[name] = p
	r.byKey[key] = name
}

// Get returns the Placement registered under name, or nil.
func (r *Registry) Get(name string) *Placement {
	return r.byName[name]
}

// Names returns every registered temporary name in the order it was
// first hoisted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len reports how many temporaries are registered.
func (r *Registry) Len() int {
	return len(r.order)
}

// Delete removes name's placement and every key referencing it.
func (r *Registry) Delete(name string) {
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	for k, n := range r.byKey {
		if n == name {
			delete(r.byKey, k)
		}
	}
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
