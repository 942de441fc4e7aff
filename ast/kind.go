package ast

// Kind discriminates the closed set of node variants a kernel AST can be
// built from. Traversals switch over Kind (via the Children/type-switch
// helpers in this package) rather than relying on dynamic type checks, so
// that adding a node kind is a compile-time-checked, exhaustive exercise.
type Kind int

const (
	KindSymbol Kind = iota
	KindDecl
	KindWriter
	KindBinOp
	KindUnOp
	KindFunCall
	KindTernary
	KindFor
	KindBlock
	KindRoot
	KindFlatBlock
)

func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "Symbol"
	case KindDecl:
		return "Decl"
	case KindWriter:
		return "Writer"
	case KindBinOp:
		return "BinOp"
	case KindUnOp:
		return "UnOp"
	case KindFunCall:
		return "FunCall"
	case KindTernary:
		return "Ternary"
	case KindFor:
		return "For"
	case KindBlock:
		return "Block"
	case KindRoot:
		return "Root"
	case KindFlatBlock:
		return "FlatBlock"
	default:
		return "Unknown"
	}
}

// WriterOp discriminates the Writer statement variants: Assign, Incr,
// Decr, IMul, IDiv. These share one struct (see Writer in node.go) since
// they differ only in their compound-assignment operator, exactly as
// spec.md groups them as "collectively Writer".
type WriterOp int

const (
	OpAssign WriterOp = iota
	OpIncr
	OpDecr
	OpIMul
	OpIDiv
)

func (op WriterOp) String() string {
	switch op {
	case OpAssign:
		return "="
	case OpIncr:
		return "+="
	case OpDecr:
		return "-="
	case OpIMul:
		return "*="
	case OpIDiv:
		return "/="
	default:
		return "?="
	}
}

// BinOpKind discriminates the binary arithmetic node variants Sum, Sub,
// Prod, Div.
type BinOpKind int

const (
	OpSum BinOpKind = iota
	OpSub
	OpProd
	OpDiv
)

func (op BinOpKind) String() string {
	switch op {
	case OpSum:
		return "+"
	case OpSub:
		return "-"
	case OpProd:
		return "*"
	case OpDiv:
		return "/"
	default:
		return "?"
	}
}

// UnOpKind discriminates the unary node variants Neg and Par.
type UnOpKind int

const (
	OpNeg UnOpKind = iota
	OpPar
)

func (op UnOpKind) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpPar:
		return "()"
	default:
		return "?"
	}
}

// Scope discriminates a Decl's storage scope.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
	ScopeParam
)
