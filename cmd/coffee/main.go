// This file contains the command line interface for the COFFEE kernel
// rewriter.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/rewrite"
	"github.com/willowfield/coffee/session"
)

var (
	levelFlag = flag.Int("O", 3,
		"optimization level: 0=none 1=licm 2=+expand/factor 3=+cse 4=+sharing-graph")

	kernelFlag = flag.String("kernel", "basic",
		"built-in demo kernel to rewrite: basic, expand, aggressive")

	listFlag = flag.Bool("l", false,
		"list the built-in demo kernels and exit")

	logFlag = flag.Bool("v", false,
		"print the diagnostic log even when no error occurred")
)

var kernels = map[string]func(*ast.Arena) (ast.NodeID, string){
	"basic":      buildBasicLICMKernel,
	"expand":     buildExpandKernel,
	"aggressive": buildAggressiveKernel,
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:
  %s [<flag> ...]

  The <flag> arguments are

`, os.Args[0], os.Args[0])
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	flag.Parse()

	if *listFlag {
		for name := range kernels {
			fmt.Println(name)
		}
		os.Exit(0)
	}

	build, ok := kernels[*kernelFlag]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown kernel %q\n", *kernelFlag)
		usage()
	}

	level := session.Level(*levelFlag)
	if level < session.LevelNone || level > session.LevelSharingGraph {
		fmt.Fprintf(os.Stderr, "level %d out of range [%d,%d]\n", *levelFlag, session.LevelNone, session.LevelSharingGraph)
		os.Exit(1)
	}

	arena := ast.NewArena()
	root, describe := build(arena)
	sess := session.New(arena)
	r := rewrite.New(sess)

	fmt.Println("before:")
	printKernel(arena, root)
	fmt.Println(describe)

	err := r.Apply(root, level, session.Mode{})

	fmt.Println("\nafter:")
	printKernel(arena, root)

	if *logFlag || sess.Log.ContainsErrors() {
		fmt.Println("\nlog:")
		fmt.Println(sess.Log)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printKernel(a *ast.Arena, root ast.NodeID) {
	for _, id := range collectTopLevel(a, root) {
		fmt.Println("  " + ast.Text(a, id))
	}
}

// collectTopLevel walks the Root/Block/For structure, printing every
// Writer and For line it finds in source order; good enough for the
// small built-in demo kernels, not a general pretty-printer.
func collectTopLevel(a *ast.Arena, id ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	var walk func(ast.NodeID)
	walk = func(id ast.NodeID) {
		if id == 0 {
			return
		}
		switch v := a.Get(id).(type) {
		case *ast.Root:
			for _, c := range v.Children {
				walk(c)
			}
		case *ast.Block:
			for _, c := range v.Children {
				walk(c)
			}
		case *ast.For:
			out = append(out, id)
			walk(v.Body)
		case *ast.Writer:
			out = append(out, id)
		}
	}
	walk(id)
	return out
}

// buildBasicLICMKernel mirrors spec.md's worked example 1: A[i][j] +=
// X[i] * Y[j] * C within loops i, j. After reassociation, licm('normal')
// hoists C * X[i] into a temporary t[i] computed in a copy of loop i
// placed above the nest, leaving A[i][j] += t[i] * Y[j].
func buildBasicLICMKernel(a *ast.Arena) (ast.NodeID, string) {
	xi := a.NewSymbol("X", "i")
	c := a.NewSymbol("C")
	yj := a.NewSymbol("Y", "j")
	prod := a.Prod(a.Prod(xi.ID(), yj.ID()).ID(), c.ID())
	acc := a.NewSymbol("A", "i", "j")
	w := a.NewWriter(ast.OpIncr, acc, prod.ID())
	inner := a.NewFor("j", 8, a.NewBlock(false, w.ID()).ID())
	outer := a.NewFor("i", 8, a.NewBlock(false, inner.ID()).ID())
	root := a.NewRoot(outer.ID())
	return root.ID(), "demo: A[i][j] += X[i]*Y[j]*C"
}

// buildExpandKernel mirrors worked example 2: A[i][j] += (X[i] + Y[i]) *
// Z[j]. expand('standard') distributes the sum over Z[j]; a subsequent
// factorize('standard') is expected to recover the original grouping.
func buildExpandKernel(a *ast.Arena) (ast.NodeID, string) {
	xi := a.NewSymbol("X", "i")
	yi := a.NewSymbol("Y", "i")
	sum := a.Sum(xi.ID(), yi.ID())
	zj := a.NewSymbol("Z", "j")
	prod := a.Prod(sum.ID(), zj.ID())
	acc := a.NewSymbol("A", "i", "j")
	w := a.NewWriter(ast.OpIncr, acc, prod.ID())
	inner := a.NewFor("j", 8, a.NewBlock(false, w.ID()).ID())
	outer := a.NewFor("i", 8, a.NewBlock(false, inner.ID()).ID())
	root := a.NewRoot(outer.ID())
	return root.ID(), "demo: A[i][j] += (X[i]+Y[i])*Z[j]"
}

// buildAggressiveKernel mirrors worked example 3's shape: A[i][j] +=
// K[i] * L[j] * G[i][j]: K[i] and L[j] each vary along one loop, while
// G[i][j] and every product that includes it vary along both.
func buildAggressiveKernel(a *ast.Arena) (ast.NodeID, string) {
	ki := a.NewSymbol("K", "i")
	lj := a.NewSymbol("L", "j")
	gij := a.NewSymbol("G", "i", "j")
	prod := a.Prod(a.Prod(ki.ID(), lj.ID()).ID(), gij.ID())
	acc := a.NewSymbol("A", "i", "j")
	w := a.NewWriter(ast.OpIncr, acc, prod.ID())
	inner := a.NewFor("j", 8, a.NewBlock(false, w.ID()).ID())
	outer := a.NewFor("i", 8, a.NewBlock(false, inner.ID()).ID())
	root := a.NewRoot(outer.ID())
	return root.ID(), "demo: A[i][j] += K[i]*L[j]*G[i][j]"
}
