package ast

import "strconv"

// IsConstDim reports whether a Symbol rank entry is a literal constant
// index (e.g. "0", "3") rather than a loop dimension name.
func IsConstDim(dim string) bool {
	_, err := strconv.Atoi(dim)
	return err == nil
}

// Children returns the immediate child expressions/statements of n, in
// evaluation order, using a, so that Symbol/FlatBlock/Decl leaves that
// carry no NodeID children return nil. Text rendering, flop counting,
// canonicalization and copying use their own per-kind switches rather
// than this one.
func Children(a *Arena, n Node) []NodeID {
	switch v := n.(type) {
	case *Symbol:
		return nil
	case *Decl:
		if v.Init != 0 {
			return []NodeID{v.Init}
		}
		return nil
	case *Writer:
		return []NodeID{v.Rvalue}
	case *BinOp:
		return []NodeID{v.Left, v.Right}
	case *UnOp:
		return []NodeID{v.Child}
	case *FunCall:
		return v.Args
	case *Ternary:
		return []NodeID{v.Cond, v.T, v.F}
	case *For:
		return []NodeID{v.Body}
	case *Block:
		return v.Children
	case *Root:
		return v.Children
	case *FlatBlock:
		return nil
	default:
		return nil
	}
}

// SetChild replaces n's i-th child (as returned by Children) with id. It
// panics if i is out of range for n's kind, the same way Children's
// slice would.
func SetChild(n Node, i int, id NodeID) {
	switch v := n.(type) {
	case *Decl:
		v.Init = id
	case *Writer:
		v.Rvalue = id
	case *BinOp:
		if i == 0 {
			v.Left = id
		} else {
			v.Right = id
		}
	case *UnOp:
		v.Child = id
	case *FunCall:
		v.Args[i] = id
	case *Ternary:
		switch i {
		case 0:
			v.Cond = id
		case 1:
			v.T = id
		default:
			v.F = id
		}
	case *For:
		v.Body = id
	case *Block:
		v.Children[i] = id
	case *Root:
		v.Children[i] = id
	}
}

// Preorder calls visit for id and every descendant, parent before
// children, in Children order. visit may return false to skip id's
// subtree without halting the walk.
func Preorder(a *Arena, id NodeID, visit func(NodeID, Node) bool) {
	if id == 0 {
		return
	}
	n := a.Get(id)
	if !visit(id, n) {
		return
	}
	for _, c := range Children(a, n) {
		Preorder(a, c, visit)
	}
}

// ReplaceInPlace finds every direct child reference equal to old within
// root's subtree and mutates it in place to new, returning how many
// occurrences were replaced. Passes use this to splice a hoisted,
// expanded, or factorized replacement back into the tree at the exact
// slot the original subexpression occupied, without having to rebuild
// every ancestor on the path back to root the way a purely functional
// rewrite would.
func ReplaceInPlace(a *Arena, root NodeID, old, new NodeID) int {
	count := 0
	var walk func(NodeID)
	walk = func(id NodeID) {
		if id == 0 {
			return
		}
		n := a.Get(id)
		children := Children(a, n)
		for i, c := range children {
			if c == old {
				SetChild(n, i, new)
				count++
			} else {
				walk(c)
			}
		}
	}
	walk(root)
	return count
}

// IsArithmetic reports whether id's node is a BinOp or UnOp, the closed
// set of nodes an expression-rewriting pass descends through looking for
// more arithmetic.
func IsArithmetic(a *Arena, id NodeID) bool {
	switch a.Get(id).(type) {
	case *BinOp, *UnOp:
		return true
	default:
		return false
	}
}

// IsLeaf reports whether id's node is a Symbol or a FunCall — the
// expression forms a rewriting pass stops descending at because they
// carry no further arithmetic of their own (a FunCall's arguments are
// rewritten independently, not folded into the caller's term structure).
func IsLeaf(a *Arena, id NodeID) bool {
	switch a.Get(id).(type) {
	case *Symbol, *FunCall:
		return true
	default:
		return false
	}
}
