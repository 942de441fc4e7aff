package dimset

import "testing"

func TestAddAndContains(t *testing.T) {
	in := NewInterner()
	s := Of(in, "i", "j")
	if !s.Contains("i") || !s.Contains("j") {
		t.Fatal("expected i and j to be present")
	}
	if s.Contains("k") {
		t.Fatal("k was never added")
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}

func TestSubsetAndEqual(t *testing.T) {
	in := NewInterner()
	a := Of(in, "i")
	b := Of(in, "i", "j")
	if !a.Subset(b) {
		t.Fatal("{i} should be a subset of {i, j}")
	}
	if b.Subset(a) {
		t.Fatal("{i, j} should not be a subset of {i}")
	}
	c := Of(in, "i")
	if !a.Equal(c) {
		t.Fatal("two sets both containing only i should be equal")
	}
}

func TestDisjoint(t *testing.T) {
	in := NewInterner()
	a := Of(in, "i")
	b := Of(in, "j")
	if !a.Disjoint(b) {
		t.Fatal("{i} and {j} should be disjoint")
	}
	c := Of(in, "i", "k")
	if a.Disjoint(c) {
		t.Fatal("{i} and {i, k} share i, not disjoint")
	}
}

func TestUnionPreservesFirstSeenOrder(t *testing.T) {
	in := NewInterner()
	in.Intern("i")
	in.Intern("j")
	in.Intern("q")
	a := Of(in, "j")
	b := Of(in, "i", "q")
	u := a.Union(b)
	got := u.Dims()
	want := []string{"j", "i", "q"}
	if len(got) != len(want) {
		t.Fatalf("Dims() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Dims() = %v, want %v", got, want)
		}
	}
}

func TestSortByNest(t *testing.T) {
	in := NewInterner()
	s := Of(in, "j", "i", "q")
	nest := []string{"i", "j", "q"}
	got := s.SortByNest(nest)
	want := []string{"i", "j", "q"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByNest() = %v, want %v", got, want)
		}
	}
}

func TestEmpty(t *testing.T) {
	in := NewInterner()
	s := New(in)
	if !s.Empty() {
		t.Fatal("fresh set should be empty")
	}
	s.Add("i")
	if s.Empty() {
		t.Fatal("set with i should not be empty")
	}
}
