package ast

// EstimateFlops counts the arithmetic operations in the subtree at id:
// each BinOp contributes one operation (Sum/Sub count as an add, Prod/Div
// as a costlier multiply-class op), each UnOp Neg contributes one, Par
// and leaves contribute none of their own. FunCall arguments are counted
// but the call itself is not, since its cost depends on an intrinsic the
// optimizer has no model for.
//
// This mirrors the FLOP-counting heuristic the original cost model uses
// to rank candidate CSE unpicking transformations and to decide whether
// a factorization actually reduces operation count.
func EstimateFlops(a *Arena, id NodeID) int {
	if id == 0 {
		return 0
	}
	switch v := a.Get(id).(type) {
	case *Symbol:
		return 0
	case *BinOp:
		cost := 1
		if v.Op == OpProd || v.Op == OpDiv {
			cost = MulCost
		}
		return cost + EstimateFlops(a, v.Left) + EstimateFlops(a, v.Right)
	case *UnOp:
		if v.Op == OpPar {
			return EstimateFlops(a, v.Child)
		}
		return 1 + EstimateFlops(a, v.Child)
	case *FunCall:
		total := 0
		for _, arg := range v.Args {
			total += EstimateFlops(a, arg)
		}
		return total
	case *Ternary:
		t := EstimateFlops(a, v.T)
		f := EstimateFlops(a, v.F)
		if f > t {
			return f
		}
		return t
	case *Writer:
		return EstimateFlops(a, v.Rvalue)
	case *Decl:
		return EstimateFlops(a, v.Init)
	default:
		return 0
	}
}

// MulCost is the weight a multiply or divide contributes to an
// EstimateFlops total, relative to 1 for an add or subtract, matching the
// original kernel-cost model's bias toward minimizing multiply count
// first and foremost.
const MulCost = 2
