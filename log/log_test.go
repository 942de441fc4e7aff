package log

import "testing"

func TestContainsErrors(t *testing.T) {
	l := New()
	if l.ContainsErrors() {
		t.Fatal("empty log should not contain errors")
	}
	l.Warningf("licm", "", "opaque subtree left alone")
	if l.ContainsErrors() {
		t.Fatal("a warning is not an error")
	}
	l.Errorf("extract", "t0", "cannot infer type")
	if !l.ContainsErrors() {
		t.Fatal("expected ContainsErrors to be true after Errorf")
	}
	if l.ContainsFatalErrors() {
		t.Fatal("non-fatal error should not count as fatal")
	}
}

func TestContainsFatalErrors(t *testing.T) {
	l := New()
	l.Fatalf("hoist", "A[i][j]", "writer without enclosing loop")
	if !l.ContainsFatalErrors() {
		t.Fatal("expected ContainsFatalErrors to be true after Fatalf")
	}
	if !l.ContainsErrors() {
		t.Fatal("a fatal error is also an error")
	}
}

func TestEntryString(t *testing.T) {
	e := Entry{Severity: Warning, Pass: "expand", Node: "Y[j]", Message: "cache invalidated"}
	got := e.String()
	want := "warning: [expand] cache invalidated (at Y[j])"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
