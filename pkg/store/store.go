package store

import (
	"reflect"

	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/internal/memo"
)

// Store is the capability every layer of the optimistic stack (and the root
// itself) implements. There is no inheritance chain (see DESIGN NOTES,
// "Upward-typed inheritance" in spec.md §9) — Root and Layer are two plain
// structs that both satisfy this interface.
type Store interface {
	Get(key Key) (*Record, bool)
	Set(key Key, rec *Record)
	Delete(key Key)
	Clear()
	Replace(m map[Key]*Record)
	ToObject() map[Key]*Record
}

// Root is the base layer: it owns the actual data and the tracker used by
// every read that does not go through an optimistic layer.
type Root struct {
	data    map[Key]*Record
	tracker *memo.Tracker
	keys    *keyset.Index
}

// NewRoot creates an empty root store sharing the given canonical key index
// (normally the one owned by the enclosing Cache).
func NewRoot(ix *keyset.Index) *Root {
	return &Root{
		data:    make(map[Key]*Record),
		tracker: memo.NewTracker(),
		keys:    ix,
	}
}

// Tracker returns the root's dependency tracker, for wiring into reader/
// writer memoization.
func (r *Root) Tracker() *memo.Tracker { return r.tracker }

func recordTag(ix *keyset.Index, key Key) memo.Tag {
	return ix.Lookup("record", string(key))
}

func fieldTag(ix *keyset.Index, key Key, field FieldKey) memo.Tag {
	return ix.Lookup("field", string(key), string(field))
}

// TouchField registers a dependency on one field of one record with the
// current memoization frame. Get already registers the coarser "record key
// exists with this identity/typename" dependency on every call; callers that
// go on to consult a specific field's value (the reader, resolving a
// selection) call TouchField too, so a write that only changes a sibling
// field doesn't spuriously dirty them — see dirtyRecord below and spec.md
// invariant 4.
func TouchField(ix *keyset.Index, key Key, field FieldKey) {
	memo.Touch(fieldTag(ix, key, field))
}

// Get returns the record for key, registering a dependency on it with the
// currently active memoization frame (if any).
func (r *Root) Get(key Key) (*Record, bool) {
	memo.Touch(recordTag(r.keys, key))
	rec, ok := r.data[key]
	return rec, ok
}

// Set stores rec under key. A no-op when rec is already the identical
// object stored there; otherwise only the tags the change invalidates are
// dirtied: each field whose value differs, and the record-level tag when the
// record's existence or typename changes (see dirtyRecord).
func (r *Root) Set(key Key, rec *Record) {
	old, existed := r.data[key]
	if existed && old == rec {
		return
	}
	r.data[key] = rec
	dirtyRecord(r.tracker, r.keys, key, old, rec)
}

// Delete removes key's mapping and dirties it.
func (r *Root) Delete(key Key) {
	old, existed := r.data[key]
	if !existed {
		return
	}
	delete(r.data, key)
	dirtyRecord(r.tracker, r.keys, key, old, nil)
}

// Clear empties the store, dirtying every key that was present.
func (r *Root) Clear() {
	for key := range r.data {
		r.Delete(key)
	}
}

// Replace performs the minimal sequence of deletes and sets needed to make
// the store equal to m.
func (r *Root) Replace(m map[Key]*Record) {
	for key := range r.data {
		if _, ok := m[key]; !ok {
			r.Delete(key)
		}
	}
	for key, rec := range m {
		r.Set(key, rec)
	}
}

// ToObject returns a shallow copy of the store's contents.
func (r *Root) ToObject() map[Key]*Record {
	out := make(map[Key]*Record, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// dirtyRecord dirties the narrowest tags a change from old to newRec actually
// invalidates: the record-level tag only when the record's existence or
// typename changed, and, per field, the field-level tag only when that
// field's value actually differs — so a write that only touches one field
// of a record never dirties a watch that only ever read a sibling field of
// the same record (spec.md invariant 4 / scenario S4).
func dirtyRecord(tracker *memo.Tracker, ix *keyset.Index, key Key, old, newRec *Record) {
	existed, exists := old != nil, newRec != nil
	var oldTypename, newTypename string
	if existed {
		oldTypename = old.Typename
	}
	if exists {
		newTypename = newRec.Typename
	}
	if existed != exists || oldTypename != newTypename {
		tracker.Dirty(recordTag(ix, key))
	}

	fields := make(map[FieldKey]struct{})
	if old != nil {
		for fk := range old.Fields {
			fields[fk] = struct{}{}
		}
	}
	if newRec != nil {
		for fk := range newRec.Fields {
			fields[fk] = struct{}{}
		}
	}
	for fk := range fields {
		var ov, nv Value
		if old != nil {
			ov = old.Fields[fk]
		}
		if newRec != nil {
			nv = newRec.Fields[fk]
		}
		if !reflect.DeepEqual(ov, nv) {
			tracker.Dirty(fieldTag(ix, key, fk))
		}
	}
}
