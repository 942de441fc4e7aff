package solver

import "testing"

func TestHeuristicPrefersHigherGain(t *testing.T) {
	h := Heuristic{}
	got := h.Solve([]Candidate{
		{Name: "a", Gain: 5, Conflicts: []string{"b"}},
		{Name: "b", Gain: 10, Conflicts: []string{"a"}},
	})
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("Solve() = %v, want [b]", got)
	}
}

func TestHeuristicPicksAllCompatible(t *testing.T) {
	h := Heuristic{}
	got := h.Solve([]Candidate{
		{Name: "a", Gain: 3},
		{Name: "b", Gain: 2},
		{Name: "c", Gain: 1},
	})
	if len(got) != 3 {
		t.Fatalf("Solve() = %v, want all 3 candidates selected", got)
	}
}
