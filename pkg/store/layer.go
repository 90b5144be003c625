package store

import (
	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/internal/memo"
)

// Layer is one optimistic overlay: an id, a parent (another Layer, or the
// Root), and a delta record map. All layers created from a given root share
// a single layer-level tracker, distinct from the root's own, so optimistic
// reads memoize independently of non-optimistic ones (spec.md §4.4).
type Layer struct {
	id      string
	parent  Store
	delta   map[Key]*Record
	tracker *memo.Tracker
	keys    *keyset.Index
	replay  func(Store)
}

// ID returns the layer's id. Ids are not unique: the same id may occur at
// multiple points in the chain (spec.md §3).
func (l *Layer) ID() string { return l.id }

// Get consults this layer's delta first, falling back to the parent.
func (l *Layer) Get(key Key) (*Record, bool) {
	memo.Touch(recordTag(l.keys, key))
	if rec, ok := l.delta[key]; ok {
		return rec, true
	}
	return l.parent.Get(key)
}

// Set writes into this layer's delta only; the parent is never mutated.
func (l *Layer) Set(key Key, rec *Record) {
	old, existed := l.delta[key]
	if existed && old == rec {
		return
	}
	l.delta[key] = rec
	dirtyRecord(l.tracker, l.keys, key, old, rec)
}

// Delete removes key from this layer's delta (it does not affect the
// parent, and a key absent from the delta but present in the parent is
// unaffected — deleting in a layer only ever un-shadows the parent's
// value, it never masks it as "deleted").
func (l *Layer) Delete(key Key) {
	old, existed := l.delta[key]
	if !existed {
		return
	}
	delete(l.delta, key)
	dirtyRecord(l.tracker, l.keys, key, old, nil)
}

// Clear empties this layer's delta only.
func (l *Layer) Clear() {
	for key := range l.delta {
		l.Delete(key)
	}
}

// Replace overwrites this layer's entire delta.
func (l *Layer) Replace(m map[Key]*Record) {
	for key := range l.delta {
		if _, ok := m[key]; !ok {
			l.Delete(key)
		}
	}
	for key, rec := range m {
		l.Set(key, rec)
	}
}

// ToObject merges the parent chain bottom-up with this layer's delta
// winning on key collision.
func (l *Layer) ToObject() map[Key]*Record {
	out := l.parent.ToObject()
	for k, v := range l.delta {
		out[k] = v
	}
	return out
}

// dirtyAllDelta marks every record this layer's delta shadows as dirty —
// used when the layer itself is removed from the chain (spec.md §4.4).
func (l *Layer) dirtyAllDelta() {
	for key := range l.delta {
		l.tracker.Dirty(recordTag(l.keys, key))
	}
}
