package memo

// entry is a single cached call result, plus the cell that tracks whether
// any of the dependency tags it touched while computing have since fired.
type entry[V any] struct {
	value V
	cell  *cell
	tags  []Tag
}

// Memoized wraps a pure function of K so that calls with an equal canonical
// key return the cached result unless a dependency they touched (or an
// explicit Dirty call) has invalidated the entry — see spec.md §4.2.
type Memoized[K any, V any] struct {
	fn      func(K) V
	keyFn   func(K) (Tag, bool)
	tracker *Tracker
	cache   map[Tag]*entry[V]
}

// New wraps fn with memoization keyed by keyFn. tracker is the shared
// dependency tracker (the root store's, or an optimistic layer stack's) that
// dirties entries when the tags they touched change.
func New[K any, V any](tracker *Tracker, fn func(K) V, keyFn func(K) (Tag, bool)) *Memoized[K, V] {
	return &Memoized[K, V]{
		fn:      fn,
		keyFn:   keyFn,
		tracker: tracker,
		cache:   make(map[Tag]*entry[V]),
	}
}

// Call invokes fn(arg), consulting (and populating) the cache.
//
// If keyFn(arg) reports no-key, the call bypasses caching entirely but still
// runs inside its own frame so that its dependency touches propagate to
// whatever memoized call enclosed this one.
func (m *Memoized[K, V]) Call(arg K) V {
	key, ok := m.keyFn(arg)
	if !ok {
		pushFrame()
		v := m.fn(arg)
		popFrame()
		return v
	}

	if e, found := m.cache[key]; found && !e.cell.dirty {
		// Clean hit: re-touch its dependencies against the enclosing frame
		// (if any) so a caller memoizing over this call still learns what
		// it transitively depends on, then return without invoking fn.
		for _, tag := range e.tags {
			Touch(tag)
		}
		return e.value
	}

	pushFrame()
	v := m.fn(arg)
	f := popFrame()

	c := m.tracker.newCell()
	tags := make([]Tag, 0, len(f.deps))
	for tag := range f.deps {
		m.tracker.subscribe(c, tag)
		Touch(tag)
		tags = append(tags, tag)
	}
	m.cache[key] = &entry[V]{value: v, cell: c, tags: tags}
	return v
}

// Dirty marks the entry for keyFn(arg) dirty, if one exists. A subsequent
// Call with an equal key recomputes fn; if that recomputation touches
// exactly the dependencies it touched before and none of them are
// independently dirty, the result is still cached as clean again (callers
// achieve that simply by calling Call, which always re-subscribes fresh).
func (m *Memoized[K, V]) Dirty(arg K) {
	key, ok := m.keyFn(arg)
	if !ok {
		return
	}
	if e, found := m.cache[key]; found {
		e.cell.dirty = true
	}
}

// Forget drops the cached entry for keyFn(arg) entirely, if any.
func (m *Memoized[K, V]) Forget(arg K) {
	key, ok := m.keyFn(arg)
	if !ok {
		return
	}
	delete(m.cache, key)
}
