package ast

import "sort"

// Canonicalize deep-copies the subtree at id into a new arena slot with
// every Sum chain and every Prod chain reassociated into a single
// left-leaning chain whose operands are sorted by their Text rendering.
//
// Sum and Prod are commutative and associative, so "a+b" and "b+a" (or
// "(a+b)+c" and "a+(b+c)") denote the same value but render as different
// Text keys. Passes that key a dedup cache by Text (the hoister's
// subexpression cache and the global-CSE cache) call Canonicalize first
// so that two occurrences of the same sum or product, built independently
// with operands in a different order, collide in the cache instead of
// being hoisted or uniquified twice. This resolves the "should dedup
// consider reassociation" design question in favor of: always
// canonicalize before keying.
func Canonicalize(a *Arena, id NodeID) NodeID {
	if id == 0 {
		return 0
	}
	switch v := a.Get(id).(type) {
	case *BinOp:
		if v.Op == OpSum || v.Op == OpProd {
			operands := FlattenChain(a, id, v.Op)
			canon := make([]NodeID, len(operands))
			for i, o := range operands {
				canon[i] = Canonicalize(a, o)
			}
			sort.Slice(canon, func(i, j int) bool { return Text(a, canon[i]) < Text(a, canon[j]) })
			return rebuild(a, v.Op, canon)
		}
		return a.NewBinOp(v.Op, Canonicalize(a, v.Left), Canonicalize(a, v.Right)).id
	case *UnOp:
		return a.NewUnOp(v.Op, Canonicalize(a, v.Child)).id
	case *FunCall:
		args := make([]NodeID, len(v.Args))
		for i, arg := range v.Args {
			args[i] = Canonicalize(a, arg)
		}
		return a.NewFunCall(v.Name, args...).id
	case *Ternary:
		return a.NewTernary(Canonicalize(a, v.Cond), Canonicalize(a, v.T), Canonicalize(a, v.F)).id
	default:
		return Copy(a, id)
	}
}

// FlattenChain collects every operand of the maximal chain of op-nodes
// rooted at id, descending through further op nodes of the same operator
// but stopping at anything else (a different operator, a Par, a leaf).
// It is the building block both Canonicalize and the factorizer use to
// see a nested binary tree of Sums or Prods as one flat list of operands.
func FlattenChain(a *Arena, id NodeID, op BinOpKind) []NodeID {
	n, ok := a.Get(id).(*BinOp)
	if !ok || n.Op != op {
		return []NodeID{id}
	}
	return append(FlattenChain(a, n.Left, op), FlattenChain(a, n.Right, op)...)
}

// rebuild re-associates operands into a left-leaning chain of op nodes.
func rebuild(a *Arena, op BinOpKind, operands []NodeID) NodeID {
	if len(operands) == 1 {
		return operands[0]
	}
	acc := operands[0]
	for _, o := range operands[1:] {
		acc = a.NewBinOp(op, acc, o).id
	}
	return acc
}

// CanonicalKey returns the Text rendering of id's Canonicalized subtree,
// the dedup key used by the hoister and the global-CSE cache.
func CanonicalKey(a *Arena, id NodeID) string {
	return Text(a, Canonicalize(a, id))
}
