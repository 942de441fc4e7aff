// Package ast models a numeric-kernel loop nest as a closed set of tagged
// node variants, allocated out of an Arena and addressed by NodeID rather
// than by pointer. Indices rather than parent pointers let a rewrite pass
// snapshot the arena cheaply (Checkpoint/Rollback) and let two subtrees
// share a child without the ownership questions pointer-based ASTs raise.
//
// The node kinds mirror the ones a single assembly kernel (one perfect or
// imperfect loop nest computing a local element tensor) can be built from:
// Symbol and Decl as leaves, Writer statements (Assign/Incr/Decr/IMul/IDiv),
// arithmetic BinOp/UnOp nodes, FunCall, Ternary, For, Block, Root, and an
// escape hatch FlatBlock for text the rewriter never looks inside.
package ast

import "fmt"

// NodeID addresses a node inside an Arena. The zero value is invalid;
// valid IDs start at 1.
type NodeID int

// Node is implemented by every concrete node type. A Node's identity is
// its ID, not its address: two *Symbol values can be == without being the
// same node, and the same NodeID always resolves to the same node via the
// Arena that allocated it.
type Node interface {
	ID() NodeID
	Kind() Kind
}

// Offset describes an affine access offset applied to one rank of a
// Symbol, e.g. the "+1" in A[i+1].
type Offset struct {
	Stride int
	Base   int
}

// Symbol is a named reference with an ordered rank (its indices, e.g. the
// "i, j" in A[i][j]). A rank entry is either a loop dimension name or a
// literal constant index rendered as a decimal string; IsConstDim tells
// the two apart.
type Symbol struct {
	id     NodeID
	Name   string
	Rank   []string
	Offset []Offset // nil, or parallel to Rank
}

func (s *Symbol) ID() NodeID { return s.id }
func (s *Symbol) Kind() Kind { return KindSymbol }

// Decl declares a symbol, optionally with an initializer expression.
type Decl struct {
	id         NodeID
	Type       string
	Sym        *Symbol
	Init       NodeID // 0 if none
	Qualifiers []string
	Scope      Scope
}

func (d *Decl) ID() NodeID { return d.id }
func (d *Decl) Kind() Kind { return KindDecl }

// Writer is a statement that assigns or accumulates into an lvalue
// Symbol: Assign (Op == OpAssign), Incr, Decr, IMul, IDiv. They share one
// struct because they differ only in Op.
type Writer struct {
	id     NodeID
	Op     WriterOp
	Lvalue *Symbol
	Rvalue NodeID
}

func (w *Writer) ID() NodeID { return w.id }
func (w *Writer) Kind() Kind { return KindWriter }

// BinOp is a binary arithmetic node: Sum, Sub, Prod, Div.
type BinOp struct {
	id          NodeID
	Op          BinOpKind
	Left, Right NodeID
}

func (b *BinOp) ID() NodeID { return b.id }
func (b *BinOp) Kind() Kind { return KindBinOp }

// UnOp is a unary arithmetic node: Neg, Par.
type UnOp struct {
	id    NodeID
	Op    UnOpKind
	Child NodeID
}

func (u *UnOp) ID() NodeID { return u.id }
func (u *UnOp) Kind() Kind { return KindUnOp }

// FunCall applies a named function (e.g. a libm intrinsic) to Args.
type FunCall struct {
	id   NodeID
	Name string
	Args []NodeID
}

func (f *FunCall) ID() NodeID { return f.id }
func (f *FunCall) Kind() Kind { return KindFunCall }

// Ternary is a conditional expression Cond ? T : F.
type Ternary struct {
	id         NodeID
	Cond, T, F NodeID
}

func (t *Ternary) ID() NodeID { return t.id }
func (t *Ternary) Kind() Kind { return KindTernary }

// For is a single loop in the nest. Init, Cond, Incr are kept as opaque
// text since their internal structure never participates in rewriting;
// only Dim, Size and IsLinear are read by the dependence analyzer and the
// loop-fusion bookkeeping used when placing hoisted code.
type For struct {
	id    NodeID
	Dim   string
	Size  int    // trip count, valid when SizeExpr == ""
	SizeExpr string // non-empty for a symbolic (non-constant) trip count
	IsLinear bool
	Body  NodeID // Block
	Pragma []string
	Init, Cond, Incr string
}

func (f *For) ID() NodeID { return f.id }
func (f *For) Kind() Kind { return KindFor }

// Block is a sequence of statements, optionally opening its own lexical
// scope for Decls within it.
type Block struct {
	id        NodeID
	Children  []NodeID
	OpenScope bool
}

func (b *Block) ID() NodeID { return b.id }
func (b *Block) Kind() Kind { return KindBlock }

// Root is the top-level container of a kernel: the function signature's
// parameter Decls followed by the body statements.
type Root struct {
	id       NodeID
	Children []NodeID
}

func (r *Root) ID() NodeID { return r.id }
func (r *Root) Kind() Kind { return KindRoot }

// FlatBlock is verbatim text the rewriter treats as opaque: pragmas,
// vendor intrinsics, anything emitted upstream of the optimizer that it
// must preserve but never needs to parse.
type FlatBlock struct {
	id   NodeID
	Text string
}

func (f *FlatBlock) ID() NodeID { return f.id }
func (f *FlatBlock) Kind() Kind { return KindFlatBlock }

// Arena owns every node allocated during a rewrite session. NodeID 0 is
// reserved and never resolves to a node.
type Arena struct {
	nodes []Node
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{nodes: []Node{nil}}
}

// alloc assigns n an ID and stores it, returning the ID.
func (a *Arena) alloc(n Node) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, n)
	return id
}

// Get resolves id to its node. It panics on an invalid or rolled-back ID,
// the same way indexing past a slice's length would.
func (a *Arena) Get(id NodeID) Node {
	if id <= 0 || int(id) >= len(a.nodes) {
		panic(fmt.Sprintf("ast: invalid NodeID %d", id))
	}
	return a.nodes[id]
}

// Checkpoint returns a mark that Rollback can later restore to, undoing
// every node allocated since. It does not undo in-place mutation of nodes
// that existed at the checkpoint; a pass that mutates shared nodes must
// either avoid doing so before it can still fail, or deep-copy first via
// Copy.
func (a *Arena) Checkpoint() int {
	return len(a.nodes)
}

// Rollback truncates the arena back to a Checkpoint, discarding every
// node allocated since. NodeIDs issued after cp must not be used again.
func (a *Arena) Rollback(cp int) {
	a.nodes = a.nodes[:cp]
}

// Len reports how many nodes are live, for diagnostics and tests.
func (a *Arena) Len() int {
	return len(a.nodes) - 1
}
