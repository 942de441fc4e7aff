// Package exprgraph tracks read-after-write dependencies between the
// named temporaries a rewrite session introduces (hoisted subexpressions,
// factorized partial sums, CSE-unpicked partial products). An edge
// u -> v means the statement defining u reads v's current value, so any
// pass that wants to move or delete v's definition must first confirm no
// edge still depends on it.
//
// A self-edge on a node flags a hazard the teacher's CFG-based dataflow
// analysis would represent as a definition reaching its own use: the
// temporary is re-assigned (e.g. accumulated into) inside the same block
// that reads it, so the two occurrences cannot be treated as a single SSA
// value without first proving the re-assignment happens after every read
// it would otherwise race with.
package exprgraph

import "golang.org/x/tools/container/intsets"

// Graph is a directed graph over interned temporary names.
type Graph struct {
	index map[string]int
	names []string
	out   map[int]map[int]struct{}
	self  map[int]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		out:   make(map[int]map[int]struct{}),
		self:  make(map[int]struct{}),
	}
}

func (g *Graph) intern(name string) int {
	if id, ok := g.index[name]; ok {
		return id
	}
	id := len(g.names)
	g.index[name] = id
	g.names = append(g.names, name)
	return id
}

// AddNode ensures name exists in the graph even if it has no edges yet.
func (g *Graph) AddNode(name string) {
	g.intern(name)
}

// AddDependency records that the definition of writer reads reader's
// current value.
func (g *Graph) AddDependency(writer, reader string) {
	u := g.intern(writer)
	v := g.intern(reader)
	if u == v {
		g.self[u] = struct{}{}
		return
	}
	if g.out[u] == nil {
		g.out[u] = make(map[int]struct{})
	}
	g.out[u][v] = struct{}{}
}

// AddSelfEdge flags name as re-assigned and read within the same scope.
func (g *Graph) AddSelfEdge(name string) {
	g.self[g.intern(name)] = struct{}{}
}

// HasSelfEdge reports whether name was flagged by AddSelfEdge or a
// self-referential AddDependency.
func (g *Graph) HasSelfEdge(name string) bool {
	id, ok := g.index[name]
	if !ok {
		return false
	}
	_, flagged := g.self[id]
	return flagged
}

// Reaches reports whether to is reachable from from by following
// dependency edges, i.e. whether the definition of from transitively
// reads to's value. Visited nodes are tracked in an intsets.Sparse over
// the interned integer space, the same sparse-set representation the
// teacher's CFG package would reach for over a dense bitset when the
// graph is large and sparse.
func (g *Graph) Reaches(from, to string) bool {
	u, ok1 := g.index[from]
	v, ok2 := g.index[to]
	if !ok1 || !ok2 {
		return false
	}
	if u == v {
		return g.HasCycleThrough(from)
	}
	var visited intsets.Sparse
	return g.reaches(u, v, &visited)
}

func (g *Graph) reaches(u, v int, visited *intsets.Sparse) bool {
	if visited.Has(u) {
		return false
	}
	visited.Insert(u)
	for w := range g.out[u] {
		if w == v {
			return true
		}
		if g.reaches(w, v, visited) {
			return true
		}
	}
	return false
}

// HasCycleThrough reports whether name participates in a dependency
// cycle: either it carries a self-edge, or some node it transitively
// depends on depends back on it.
func (g *Graph) HasCycleThrough(name string) bool {
	id, ok := g.index[name]
	if !ok {
		return false
	}
	if _, flagged := g.self[id]; flagged {
		return true
	}
	var visited intsets.Sparse
	for w := range g.out[id] {
		if w == id {
			return true
		}
		if g.reaches(w, id, &visited) {
			return true
		}
	}
	return false
}

// Dependencies returns the names that name's definition directly reads,
// in no particular order.
func (g *Graph) Dependencies(name string) []string {
	id, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.out[id]))
	for w := range g.out[id] {
		out = append(out, g.names[w])
	}
	return out
}

// Nodes returns every name added to the graph, in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// Readers returns the names of every node whose definition reads name's
// current value (the reverse of Dependencies) — the check a pass must
// make before folding name's definition into a single reader's RHS, since
// doing so while a second reader still exists would silently drop that
// second reader's dependency.
func (g *Graph) Readers(name string) []string {
	id, ok := g.index[name]
	if !ok {
		return nil
	}
	var out []string
	for u, edges := range g.out {
		if _, ok := edges[id]; ok {
			out = append(out, g.names[u])
		}
	}
	return out
}
