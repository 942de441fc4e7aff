package ast

import (
	"bytes"
	"fmt"
)

// Text renders id's subtree as a deterministic, parenthesized expression
// string. It is not meant to be valid source for any particular target
// language; it exists so that two structurally identical subtrees,
// possibly built independently by two different passes, produce
// identical strings — the dedup key the hoister and the global-CSE pass
// key their caches by, mirroring the original implementation's use of
// str(node) as a dictionary key.
func Text(a *Arena, id NodeID) string {
	var buf bytes.Buffer
	writeText(a, id, &buf)
	return buf.String()
}

func writeText(a *Arena, id NodeID, buf *bytes.Buffer) {
	if id == 0 {
		return
	}
	switch v := a.Get(id).(type) {
	case *Symbol:
		buf.WriteString(v.Name)
		for i, r := range v.Rank {
			buf.WriteByte('[')
			buf.WriteString(r)
			if v.Offset != nil {
				off := v.Offset[i]
				if off.Stride != 1 {
					fmt.Fprintf(buf, "*%d", off.Stride)
				}
				if off.Base > 0 {
					fmt.Fprintf(buf, "+%d", off.Base)
				} else if off.Base < 0 {
					fmt.Fprintf(buf, "%d", off.Base)
				}
			}
			buf.WriteByte(']')
		}
	case *Decl:
		buf.WriteString(v.Type)
		buf.WriteByte(' ')
		buf.WriteString(v.Sym.Name)
		if v.Init != 0 {
			buf.WriteString(" = ")
			writeText(a, v.Init, buf)
		}
	case *Writer:
		buf.WriteString(v.Lvalue.Name)
		for _, r := range v.Lvalue.Rank {
			buf.WriteByte('[')
			buf.WriteString(r)
			buf.WriteByte(']')
		}
		buf.WriteByte(' ')
		buf.WriteString(v.Op.String())
		buf.WriteByte(' ')
		writeText(a, v.Rvalue, buf)
	case *BinOp:
		buf.WriteByte('(')
		writeText(a, v.Left, buf)
		buf.WriteString(v.Op.String())
		writeText(a, v.Right, buf)
		buf.WriteByte(')')
	case *UnOp:
		if v.Op == OpPar {
			buf.WriteByte('(')
			writeText(a, v.Child, buf)
			buf.WriteByte(')')
		} else {
			buf.WriteByte('-')
			writeText(a, v.Child, buf)
		}
	case *FunCall:
		buf.WriteString(v.Name)
		buf.WriteByte('(')
		for i, arg := range v.Args {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeText(a, arg, buf)
		}
		buf.WriteByte(')')
	case *Ternary:
		writeText(a, v.Cond, buf)
		buf.WriteString(" ? ")
		writeText(a, v.T, buf)
		buf.WriteString(" : ")
		writeText(a, v.F, buf)
	case *For:
		buf.WriteString("for(")
		buf.WriteString(v.Dim)
		buf.WriteString(")")
		writeText(a, v.Body, buf)
	case *Block:
		buf.WriteByte('{')
		for _, c := range v.Children {
			writeText(a, c, buf)
			buf.WriteByte(';')
		}
		buf.WriteByte('}')
	case *Root:
		for _, c := range v.Children {
			writeText(a, c, buf)
			buf.WriteByte(';')
		}
	case *FlatBlock:
		buf.WriteString(v.Text)
	}
}

// Equal reports whether the subtrees at x and y are structurally
// identical, as judged by their Text rendering.
func Equal(a *Arena, x, y NodeID) bool {
	return Text(a, x) == Text(a, y)
}
