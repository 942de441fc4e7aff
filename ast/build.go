package ast

// NewSymbol allocates a Symbol with the given name and rank.
func (a *Arena) NewSymbol(name string, rank ...string) *Symbol {
	s := &Symbol{Name: name, Rank: append([]string(nil), rank...)}
	s.id = a.alloc(s)
	return s
}

// NewDecl allocates a Decl for sym.
func (a *Arena) NewDecl(typ string, sym *Symbol, init NodeID, scope Scope, qualifiers ...string) *Decl {
	d := &Decl{Type: typ, Sym: sym, Init: init, Scope: scope, Qualifiers: append([]string(nil), qualifiers...)}
	d.id = a.alloc(d)
	return d
}

// NewWriter allocates a Writer statement lvalue `op` rvalue.
func (a *Arena) NewWriter(op WriterOp, lvalue *Symbol, rvalue NodeID) *Writer {
	w := &Writer{Op: op, Lvalue: lvalue, Rvalue: rvalue}
	w.id = a.alloc(w)
	return w
}

// NewBinOp allocates a binary arithmetic node.
func (a *Arena) NewBinOp(op BinOpKind, left, right NodeID) *BinOp {
	b := &BinOp{Op: op, Left: left, Right: right}
	b.id = a.alloc(b)
	return b
}

// Sum is a convenience wrapper over NewBinOp(OpSum, ...).
func (a *Arena) Sum(left, right NodeID) *BinOp { return a.NewBinOp(OpSum, left, right) }

// Sub is a convenience wrapper over NewBinOp(OpSub, ...).
func (a *Arena) Sub(left, right NodeID) *BinOp { return a.NewBinOp(OpSub, left, right) }

// Prod is a convenience wrapper over NewBinOp(OpProd, ...).
func (a *Arena) Prod(left, right NodeID) *BinOp { return a.NewBinOp(OpProd, left, right) }

// DivOp is a convenience wrapper over NewBinOp(OpDiv, ...).
func (a *Arena) DivOp(left, right NodeID) *BinOp { return a.NewBinOp(OpDiv, left, right) }

// NewUnOp allocates a unary arithmetic node.
func (a *Arena) NewUnOp(op UnOpKind, child NodeID) *UnOp {
	u := &UnOp{Op: op, Child: child}
	u.id = a.alloc(u)
	return u
}

// Neg is a convenience wrapper over NewUnOp(OpNeg, ...).
func (a *Arena) Neg(child NodeID) *UnOp { return a.NewUnOp(OpNeg, child) }

// Par is a convenience wrapper over NewUnOp(OpPar, ...).
func (a *Arena) Par(child NodeID) *UnOp { return a.NewUnOp(OpPar, child) }

// NewFunCall allocates a function-call expression.
func (a *Arena) NewFunCall(name string, args ...NodeID) *FunCall {
	f := &FunCall{Name: name, Args: append([]NodeID(nil), args...)}
	f.id = a.alloc(f)
	return f
}

// NewTernary allocates a conditional expression.
func (a *Arena) NewTernary(cond, t, f NodeID) *Ternary {
	te := &Ternary{Cond: cond, T: t, F: f}
	te.id = a.alloc(te)
	return te
}

// NewFor allocates a loop over dim with the given trip count.
func (a *Arena) NewFor(dim string, size int, body NodeID) *For {
	f := &For{Dim: dim, Size: size, Body: body, IsLinear: true}
	f.id = a.alloc(f)
	return f
}

// NewBlock allocates a statement sequence.
func (a *Arena) NewBlock(openScope bool, children ...NodeID) *Block {
	b := &Block{Children: append([]NodeID(nil), children...), OpenScope: openScope}
	b.id = a.alloc(b)
	return b
}

// NewRoot allocates the top-level container of a kernel.
func (a *Arena) NewRoot(children ...NodeID) *Root {
	r := &Root{Children: append([]NodeID(nil), children...)}
	r.id = a.alloc(r)
	return r
}

// NewFlatBlock allocates an opaque text node.
func (a *Arena) NewFlatBlock(text string) *FlatBlock {
	f := &FlatBlock{Text: text}
	f.id = a.alloc(f)
	return f
}
