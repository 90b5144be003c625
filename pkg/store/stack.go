package store

import (
	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/internal/memo"
)

// Stack is the optimistic layer stack sitting atop a Root. Top() is either
// the Root itself (no optimistic data in effect) or the most recently added
// Layer.
type Stack struct {
	root    *Root
	top     Store
	tracker *memo.Tracker
	keys    *keyset.Index
}

// NewStack creates a layer stack with no layers yet added.
func NewStack(root *Root, ix *keyset.Index) *Stack {
	return &Stack{root: root, top: root, tracker: memo.NewTracker(), keys: ix}
}

// Top returns the current top of the stack (Root, or the outermost Layer).
func (s *Stack) Top() Store { return s.top }

// Tracker returns the layer stack's shared dependency tracker.
func (s *Stack) Tracker() *memo.Tracker { return s.tracker }

// HasLayers reports whether any optimistic layer is currently in effect.
func (s *Stack) HasLayers() bool {
	_, ok := s.top.(*Layer)
	return ok
}

func (s *Stack) generationTag() memo.Tag {
	return s.keys.Lookup("stack-generation")
}

// TouchGeneration registers a dependency on the stack's topology (how many
// layers are applied and in what order) with the current memoization frame.
// A caller wraps this in a memo.Disposable to get a sentinel that fires on
// every AddLayer/RemoveLayer, independent of whether any individual record
// or field it read actually changed value — the cache's optimistic watches
// use this to force a recheck across a layer add/remove even when a custom
// redirect or other untracked read means ordinary dependency dirtying can't
// see the change.
func (s *Stack) TouchGeneration() {
	memo.Touch(s.generationTag())
}

// bumpGeneration dirties every subscriber of TouchGeneration. Called
// whenever the stack's topology changes.
func (s *Stack) bumpGeneration() {
	s.tracker.Dirty(s.generationTag())
}

// AddLayer constructs a new layer on top of the current stack and
// synchronously invokes replay(layer) — this is where the optimistic
// mutation writes into the new layer.
func (s *Stack) AddLayer(id string, replay func(Store)) {
	l := &Layer{
		id:      id,
		parent:  s.top,
		delta:   make(map[Key]*Record),
		tracker: s.tracker,
		keys:    s.keys,
		replay:  replay,
	}
	replay(l)
	s.top = l
	s.bumpGeneration()
}

// RemoveLayer removes every occurrence of id from the chain, per the
// algorithm in spec.md §4.4: recursively remove from the parent first; if
// this layer's own id matches, dirty its delta and splice it out; otherwise,
// if the parent changed underneath it, rebuild this layer on top of the new
// parent by re-running its replay (so mutations recorded by layers above a
// removed one are re-derived deterministically); if the parent did not
// change, this layer is returned untouched.
func (s *Stack) RemoveLayer(id string) {
	newTop, changed := removeLayer(s.top, id)
	s.top = newTop
	if changed {
		s.bumpGeneration()
	}
}

func removeLayer(st Store, id string) (Store, bool) {
	l, ok := st.(*Layer)
	if !ok {
		// Reached the root: nothing left to remove.
		return st, false
	}

	newParent, parentChanged := removeLayer(l.parent, id)

	if l.id == id {
		l.dirtyAllDelta()
		return newParent, true
	}

	if !parentChanged {
		return l, false
	}

	rebuilt := &Layer{
		id:      l.id,
		parent:  newParent,
		delta:   make(map[Key]*Record),
		tracker: l.tracker,
		keys:    l.keys,
		replay:  l.replay,
	}
	rebuilt.replay(rebuilt)
	return rebuilt, true
}
