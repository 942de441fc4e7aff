package ast

// Copy deep-copies the subtree rooted at id into fresh arena slots and
// returns the new root's ID. Every descendant gets a fresh identity, so
// the copy can be mutated (e.g. hoisted into a different loop, or folded
// during expansion) without aliasing the original subtree — the same
// guarantee a pass gets from copying a Python AST subtree with
// copy.deepcopy before rewriting it in place.
func Copy(a *Arena, id NodeID) NodeID {
	if id == 0 {
		return 0
	}
	switch v := a.Get(id).(type) {
	case *Symbol:
		s := a.NewSymbol(v.Name, v.Rank...)
		if v.Offset != nil {
			s.Offset = append([]Offset(nil), v.Offset...)
		}
		return s.id
	case *Decl:
		d := a.NewDecl(v.Type, copySymbol(a, v.Sym), Copy(a, v.Init), v.Scope, v.Qualifiers...)
		return d.id
	case *Writer:
		w := a.NewWriter(v.Op, copySymbol(a, v.Lvalue), Copy(a, v.Rvalue))
		return w.id
	case *BinOp:
		b := a.NewBinOp(v.Op, Copy(a, v.Left), Copy(a, v.Right))
		return b.id
	case *UnOp:
		u := a.NewUnOp(v.Op, Copy(a, v.Child))
		return u.id
	case *FunCall:
		args := make([]NodeID, len(v.Args))
		for i, arg := range v.Args {
			args[i] = Copy(a, arg)
		}
		f := a.NewFunCall(v.Name, args...)
		return f.id
	case *Ternary:
		t := a.NewTernary(Copy(a, v.Cond), Copy(a, v.T), Copy(a, v.F))
		return t.id
	case *For:
		f := a.NewFor(v.Dim, v.Size, Copy(a, v.Body))
		f.SizeExpr = v.SizeExpr
		f.IsLinear = v.IsLinear
		f.Pragma = append([]string(nil), v.Pragma...)
		f.Init, f.Cond, f.Incr = v.Init, v.Cond, v.Incr
		return f.id
	case *Block:
		children := make([]NodeID, len(v.Children))
		for i, c := range v.Children {
			children[i] = Copy(a, c)
		}
		b := a.NewBlock(v.OpenScope, children...)
		return b.id
	case *Root:
		children := make([]NodeID, len(v.Children))
		for i, c := range v.Children {
			children[i] = Copy(a, c)
		}
		r := a.NewRoot(children...)
		return r.id
	case *FlatBlock:
		f := a.NewFlatBlock(v.Text)
		return f.id
	default:
		return 0
	}
}

func copySymbol(a *Arena, s *Symbol) *Symbol {
	if s == nil {
		return nil
	}
	cp := a.NewSymbol(s.Name, s.Rank...)
	if s.Offset != nil {
		cp.Offset = append([]Offset(nil), s.Offset...)
	}
	return cp
}
