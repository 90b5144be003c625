package fragment

import "testing"

// S5 — heuristic vs introspection matching over a union U = A|B.
func TestHeuristicVsIntrospectionScenarioS5(t *testing.T) {
	heuristic := NewHeuristic()
	if got := heuristic.Match("U", "A"); got != Heuristic {
		t.Fatalf("expected Heuristic verdict without possible-types, got %v", got)
	}

	introspective := NewWithPossibleTypes(PossibleTypes{"U": {"A", "B"}})
	if got := introspective.Match("U", "A"); got != Match {
		t.Fatalf("expected definitive Match with possible-types, got %v", got)
	}
	if got := introspective.Match("U", "C"); got != NoMatch {
		t.Fatalf("expected NoMatch for a typename outside the union, got %v", got)
	}
}

// Invariant 7 — fragment matcher monotonicity: anything the heuristic
// matcher accepts as Match (equal typenames) the introspection matcher also
// accepts.
func TestMonotonicityEqualTypenames(t *testing.T) {
	heuristic := NewHeuristic()
	introspective := NewWithPossibleTypes(PossibleTypes{"U": {"A", "B"}})

	if heuristic.Match("A", "A") != Match {
		t.Fatal("expected heuristic equal-typename match")
	}
	if introspective.Match("A", "A") != Match {
		t.Fatal("expected introspective matcher to also match equal typenames")
	}
}

func TestTransitiveSubtypeClosure(t *testing.T) {
	m := NewWithPossibleTypes(PossibleTypes{
		"Node":    {"Entity"},
		"Entity":  {"A", "B"},
	})
	if got := m.Match("Node", "A"); got != Match {
		t.Fatalf("expected transitive match through Entity, got %v", got)
	}
}

func TestEmptyTypeConditionAlwaysMatches(t *testing.T) {
	m := NewHeuristic()
	if got := m.Match("", "Anything"); got != Match {
		t.Fatalf("expected empty condition (root query) to always match, got %v", got)
	}
}
