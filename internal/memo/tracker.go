package memo

// Tracker is the shared dependency tracker consulted by Memoized entries.
// spec.md assigns one tracker to the root store and a second, distinct one
// to the optimistic layer stack, so that optimistic reads invalidate
// independently of root reads; both are plain *Tracker values.
type Tracker struct {
	subs map[Tag]map[*cell]struct{}
}

// cell is the bookkeeping a Tracker keeps per cached entry: whether any tag
// it was subscribed to (or an explicit .Dirty call) has fired since the
// entry was last computed. The tags themselves are held by the entry.
type cell struct {
	dirty bool
}

// NewTracker creates an empty dependency tracker.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[Tag]map[*cell]struct{})}
}

func (t *Tracker) newCell() *cell {
	return &cell{}
}

// subscribe records that c depends on tag; Dirty(tag) will mark c dirty.
func (t *Tracker) subscribe(c *cell, tag Tag) {
	m, ok := t.subs[tag]
	if !ok {
		m = make(map[*cell]struct{})
		t.subs[tag] = m
	}
	m[c] = struct{}{}
}

// Dirty marks every cell subscribed to tag dirty and drops the
// subscription list for tag (a dirtied cell re-subscribes the next time it
// recomputes and touches the tag again).
func (t *Tracker) Dirty(tag Tag) {
	subs, ok := t.subs[tag]
	if !ok {
		return
	}
	for c := range subs {
		c.dirty = true
	}
	delete(t.subs, tag)
}

// Disposable owns a dependency subscription without caching any result. It
// is used for sentinel "depend on id X" computations — e.g. a watch that
// must be force-recomputed the next time a given record changes, even
// though nothing about the watch's own cached diff changed in the
// meantime.
type Disposable struct {
	tracker *Tracker
	cell    *cell
}

// NewDisposable runs fn inside a fresh frame, subscribes to every tag fn
// touched, and returns a handle whose Dirty method reports whether any of
// those tags have fired since.
func (t *Tracker) NewDisposable(fn func()) *Disposable {
	c := t.newCell()
	pushFrame()
	fn()
	f := popFrame()
	for tag := range f.deps {
		t.subscribe(c, tag)
	}
	return &Disposable{tracker: t, cell: c}
}

// Dirty reports whether this disposable's dependencies have fired.
func (d *Disposable) Dirty() bool {
	return d.cell.dirty
}

// Reset clears the dirty flag and re-subscribes to the tags touched by
// running fn again, in preparation for the next dirty check.
func (d *Disposable) Reset(fn func()) {
	pushFrame()
	fn()
	f := popFrame()
	d.cell = d.tracker.newCell()
	for tag := range f.deps {
		d.tracker.subscribe(d.cell, tag)
	}
}
