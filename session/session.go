// Package session bundles the mutable state a single rewrite run shares
// across passes: the arena the kernel's AST lives in, its expression
// metadata table, the diagnostic log, and the monotonically increasing
// counters used to name synthesized temporaries. It plays the role the
// teacher's engine.Engine and refactoring.Config play for a refactoring
// run: one struct threaded through every pass instead of package-level
// globals, with an explicit Reset so a driver can run the optimizer
// repeatedly (e.g. once per kernel in a batch) without leaking state
// between runs.
package session

import (
	"fmt"

	"github.com/willowfield/coffee/ast"
	"github.com/willowfield/coffee/log"
)

// Level selects how aggressively the rewriter runs, mirroring the
// optimizer's 0..4 optimization levels: 0 leaves the kernel untouched, 1
// runs LICM only, 2 adds expansion and factorization, 3 adds CSE
// unpicking, 4 adds the sharing-graph rewrite.
type Level int

const (
	LevelNone Level = iota
	LevelLICM
	LevelExpandFactor
	LevelCSE
	LevelSharingGraph
)

// Mode configures a single pass's behavior. Passes interpret only the
// fields relevant to them; zero value means "default" for every pass.
type Mode struct {
	Iterative    bool // keep applying a pass until it reaches a fixed point
	MaxSharing   bool // drop hoist candidate groups better left to factorization
	GlobalCSE    bool // dedup hoisted subexpressions across the whole kernel
	NotAggregate bool // stop expansion folding products into hoisted temporaries
	LookAhead    bool // make LICM log its candidates without hoisting them
}

// Session is the mutable context threaded through every rewrite pass
// during one Apply of the facade in package rewrite.
type Session struct {
	Arena *ast.Arena
	Meta  *ast.MetaTable
	Log   *log.Log

	exprCounter   int
	tempCounter   int
	handlerCounter int
}

// New returns a fresh Session wrapping arena. arena may already contain
// nodes (e.g. a kernel built via the ast package's constructors); the
// session only owns the bookkeeping layered on top of it.
func New(arena *ast.Arena) *Session {
	return &Session{
		Arena: arena,
		Meta:  ast.NewMetaTable(),
		Log:   log.New(),
	}
}

// Reset clears every counter and the diagnostic log, and swaps in a fresh
// MetaTable, so the Session can be reused for a second kernel. The arena
// itself is left alone — callers wanting an independent AST pass a new
// *ast.Arena to New instead.
func (s *Session) Reset() {
	s.Meta = ast.NewMetaTable()
	s.Log = log.New()
	s.exprCounter = 0
	s.tempCounter = 0
	s.handlerCounter = 0
}

// NextExprName returns a fresh, session-unique name for a synthesized
// subexpression temporary, e.g. for the result of hoisting.
func (s *Session) NextExprName(prefix string) string {
	s.exprCounter++
	return fmt.Sprintf("%s%d", prefix, s.exprCounter)
}

// NextTempName returns a fresh, session-unique name for a synthesized
// scalar temporary, distinct from NextExprName's counter so that
// temporaries introduced by different passes never collide even if they
// share a prefix convention.
func (s *Session) NextTempName(prefix string) string {
	s.tempCounter++
	return fmt.Sprintf("%s%d", prefix, s.tempCounter)
}

// NextHandlerID returns a fresh, session-unique small integer.
func (s *Session) NextHandlerID() int {
	s.handlerCounter++
	return s.handlerCounter
}
