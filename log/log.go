// Package log provides the diagnostic sink shared by every rewrite pass.
//
// Every pass receives a *Log and appends entries to it rather than
// returning or panicking on non-fatal conditions; this mirrors the error
// taxonomy in the rewriting specification: a Warning marks a pass that
// degraded gracefully (e.g. an opaque subtree left untouched), an Error
// marks a non-fatal problem, and a FatalError marks a condition that
// aborted the rewrite session.
package log

import (
	"bytes"
	"fmt"
)

// Severity grades a single diagnostic entry.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	FatalError
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case FatalError:
		return "fatal error"
	default:
		return "unknown"
	}
}

// Entry is a single diagnostic produced during a rewrite session.
type Entry struct {
	Severity Severity
	Message  string
	// Pass names the rewrite pass that produced this entry (e.g. "licm",
	// "expand"). Empty if the entry was not attributed to a specific pass.
	Pass string
	// Node, if non-empty, textually identifies the offending AST node or
	// statement, for display alongside Message.
	Node string
}

func (e Entry) String() string {
	var buf bytes.Buffer
	if e.Severity != Info {
		fmt.Fprintf(&buf, "%s: ", e.Severity)
	}
	if e.Pass != "" {
		fmt.Fprintf(&buf, "[%s] ", e.Pass)
	}
	buf.WriteString(e.Message)
	if e.Node != "" {
		fmt.Fprintf(&buf, " (at %s)", e.Node)
	}
	return buf.String()
}

// Log accumulates diagnostics for a single rewrite session.
type Log struct {
	Entries []Entry
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

func (l *Log) append(sev Severity, pass, node, format string, args []interface{}) {
	l.Entries = append(l.Entries, Entry{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Pass:     pass,
		Node:     node,
	})
}

// Infof appends an Info entry attributed to pass.
func (l *Log) Infof(pass, format string, args ...interface{}) {
	l.append(Info, pass, "", format, args)
}

// Warningf appends a Warning entry attributed to pass, optionally naming
// the offending node.
func (l *Log) Warningf(pass, node, format string, args ...interface{}) {
	l.append(Warning, pass, node, format, args)
}

// Errorf appends a non-fatal Error entry.
func (l *Log) Errorf(pass, node, format string, args ...interface{}) {
	l.append(Error, pass, node, format, args)
}

// Fatalf appends a FatalError entry. Callers must stop the current pass
// and leave the AST at its last consistent snapshot after calling this.
func (l *Log) Fatalf(pass, node, format string, args ...interface{}) {
	l.append(FatalError, pass, node, format, args)
}

// ContainsErrors reports whether any Error or FatalError entry is present.
func (l *Log) ContainsErrors() bool {
	for _, e := range l.Entries {
		if e.Severity == Error || e.Severity == FatalError {
			return true
		}
	}
	return false
}

// ContainsFatalErrors reports whether any FatalError entry is present.
func (l *Log) ContainsFatalErrors() bool {
	for _, e := range l.Entries {
		if e.Severity == FatalError {
			return true
		}
	}
	return false
}

// String renders the log as one entry per line, in the order appended.
func (l *Log) String() string {
	var buf bytes.Buffer
	for i, e := range l.Entries {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(e.String())
	}
	return buf.String()
}
