package store

import (
	"testing"

	"github.com/kittclouds/cachecore/internal/keyset"
)

func rec(v float64) *Record {
	r := NewRecord("")
	r.Fields["v"] = Scalar{Raw: v}
	return r
}

func readV(s Store, key Key) float64 {
	r, ok := s.Get(key)
	if !ok {
		return -1
	}
	return r.Fields["v"].(Scalar).Raw.(float64)
}

// S3 — optimistic stack: addLayer(opt1, v=2), addLayer(opt2, v=3),
// removeLayer(opt1) leaves v=3 optimistic / v=1 real; removeLayer(opt2)
// restores v=1 on both views.
func TestOptimisticStackScenarioS3(t *testing.T) {
	ix := keyset.New()
	root := NewRoot(ix)
	root.Set("X", rec(1))
	stack := NewStack(root, ix)

	stack.AddLayer("opt1", func(w Store) { w.Set("X", rec(2)) })
	stack.AddLayer("opt2", func(w Store) { w.Set("X", rec(3)) })

	stack.RemoveLayer("opt1")
	if got := readV(stack.Top(), "X"); got != 3 {
		t.Fatalf("optimistic view after removing opt1: got %v, want 3", got)
	}
	if got := readV(root, "X"); got != 1 {
		t.Fatalf("real view after removing opt1: got %v, want 1", got)
	}

	stack.RemoveLayer("opt2")
	if got := readV(stack.Top(), "X"); got != 1 {
		t.Fatalf("optimistic view after removing opt2: got %v, want 1", got)
	}
	if stack.HasLayers() {
		t.Fatal("expected no layers remaining")
	}
}

// S6 — re-parenting on layer removal: addLayer("a", write X), addLayer("b",
// write Y), addLayer("a" again, write X=99); removeLayer("a") removes BOTH
// "a" layers and re-derives "b" on the new base.
func TestLayerReparentingScenarioS6(t *testing.T) {
	ix := keyset.New()
	root := NewRoot(ix)
	stack := NewStack(root, ix)

	stack.AddLayer("a", func(w Store) { w.Set("X", rec(1)) })
	stack.AddLayer("b", func(w Store) { w.Set("Y", rec(2)) })
	stack.AddLayer("a", func(w Store) { w.Set("X", rec(99)) })

	stack.RemoveLayer("a")

	if _, ok := stack.Top().Get("X"); ok {
		t.Fatal("both 'a' layers should be gone, X should not exist")
	}
	if got := readV(stack.Top(), "Y"); got != 2 {
		t.Fatalf("expected Y to survive re-parenting via replay, got %v", got)
	}
}

// Invariant 5 — optimistic commutativity under removal.
func TestOptimisticCommutativityUnderRemoval(t *testing.T) {
	ix := keyset.New()
	root := NewRoot(ix)
	root.Set("X", rec(1))
	stack := NewStack(root, ix)

	stack.AddLayer("a", func(w Store) { w.Set("X", rec(2)) })
	stack.AddLayer("b", func(w Store) { w.Set("X", rec(3)) })
	stack.RemoveLayer("a")
	stack.RemoveLayer("b")

	if stack.HasLayers() {
		t.Fatal("expected no layers after removing both")
	}
	if got := readV(stack.Top(), "X"); got != 1 {
		t.Fatalf("expected base value 1 after full commutative removal, got %v", got)
	}
}

// TestGenerationTagFiresOnTopologyChange covers the sentinel
// internal/memo.Disposable callers subscribe to via TouchGeneration: it must
// fire on AddLayer and on a RemoveLayer that actually changes the stack, and
// must not fire on a RemoveLayer of an id that isn't present.
func TestGenerationTagFiresOnTopologyChange(t *testing.T) {
	ix := keyset.New()
	root := NewRoot(ix)
	stack := NewStack(root, ix)

	gen := stack.Tracker().NewDisposable(stack.TouchGeneration)
	if gen.Dirty() {
		t.Fatal("disposable should start clean")
	}

	stack.RemoveLayer("absent")
	if gen.Dirty() {
		t.Fatal("removing an absent layer id must not bump the generation")
	}

	stack.AddLayer("a", func(w Store) { w.Set("X", rec(1)) })
	if !gen.Dirty() {
		t.Fatal("AddLayer must bump the generation")
	}
	gen.Reset(stack.TouchGeneration)

	stack.RemoveLayer("a")
	if !gen.Dirty() {
		t.Fatal("RemoveLayer of a present id must bump the generation")
	}
}

// Invariant 6 — layer idempotence: add then immediately remove restores
// the exact extracted state.
func TestLayerIdempotence(t *testing.T) {
	ix := keyset.New()
	root := NewRoot(ix)
	root.Set("X", rec(1))
	stack := NewStack(root, ix)

	before := ToJSON(root.ToObject())

	stack.AddLayer("tmp", func(w Store) { w.Set("X", rec(42)) })
	stack.RemoveLayer("tmp")

	after := ToJSON(stack.Top().ToObject())
	if len(before) != len(after) {
		t.Fatalf("expected same key count, got %d vs %d", len(before), len(after))
	}
	if got := readV(stack.Top(), "X"); got != 1 {
		t.Fatalf("expected X restored to 1, got %v", got)
	}
}
