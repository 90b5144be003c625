package cache

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/kittclouds/cachecore/internal/memo"
	"github.com/kittclouds/cachecore/pkg/reader"
	"github.com/kittclouds/cachecore/pkg/store"
)

// WatchOptions configures a single subscription, per spec.md §6's watch(...).
type WatchOptions struct {
	Document          *ast.QueryDocument
	OperationName     string
	Variables         map[string]any
	RootID            store.Key
	Optimistic        bool
	ReturnPartialData bool
	Callback          func(reader.Result, error)
}

// Watch is a live subscription. Its identity (the pointer itself) is the
// memoization key the broadcast engine tracks dependencies under — spec.md
// §4.8 describes keying broadcast memoization on (query, variables), but two
// distinct Watch registrations can share an identical query and variable set
// while still carrying independent callbacks, so cachecore keys on the
// registration instead (see SPEC_FULL.md's Open Questions decision 5).
type Watch struct {
	opts    WatchOptions
	last    reader.Result
	hasLast bool

	// gen is nil for non-optimistic watches. For optimistic ones it is a
	// sentinel (internal/memo.Disposable) subscribed to the stack's
	// generation tag, so broadcastNow can tell whether a layer was added or
	// removed since this watch's last check and force a recompute — spec.md
	// §4.8's forced re-check, independent of ordinary field-level dirtying.
	gen *memo.Disposable
}

func newWatchGeneration(c *Cache) *memo.Disposable {
	return c.stack.Tracker().NewDisposable(c.stack.TouchGeneration)
}

func (c *Cache) broadcastTableFor(optimistic bool) *memo.Memoized[*Watch, struct{}] {
	if optimistic {
		return c.optBroadcast
	}
	return c.rootBroadcast
}

func watchKeyFor(c *Cache) func(*Watch) (memo.Tag, bool) {
	return func(w *Watch) (memo.Tag, bool) {
		if c.cfg.DisableResultCaching {
			return nil, false
		}
		return c.keys.Lookup("watch", w), true
	}
}

// Watch registers a subscription and fires it once immediately with the
// current result. The returned func unregisters it.
func (c *Cache) Watch(opts WatchOptions) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &Watch{opts: opts}
	if opts.Optimistic {
		w.gen = newWatchGeneration(c)
	}
	c.watches[w] = struct{}{}
	c.broadcastTableFor(opts.Optimistic).Call(w)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watches, w)
		c.rootBroadcast.Forget(w)
		c.optBroadcast.Forget(w)
	}
}

// computeWatch is the function wrapped by both broadcast tables. It runs
// inside the Memoized frame Call pushes, so every record the diff touches is
// recorded as this watch's dependency automatically.
func (c *Cache) computeWatch(w *Watch) struct{} {
	c.prepareDocument(w.opts.Document)

	var previous map[string]any
	if w.hasLast {
		previous = w.last.Data
	}

	rootID := w.opts.RootID
	if rootID == "" {
		rootID = store.RootQuery
	}

	res, err := c.activeReader(w.opts.Optimistic).Diff(c.activeStore(w.opts.Optimistic), reader.Request{
		Document:       w.opts.Document,
		OperationName:  w.opts.OperationName,
		Variables:      w.opts.Variables,
		RootID:         rootID,
		PreviousResult: previous,
		ReturnPartial:  w.opts.ReturnPartialData,
		Matcher:        c.cfg.matcher(),
		Redirects:      c.cfg.Redirects,
		DisableCache:   c.cfg.DisableResultCaching,
	})
	if err != nil {
		w.opts.Callback(reader.Result{}, err)
		return struct{}{}
	}

	if w.hasLast && res.SameAs(w.last) {
		return struct{}{}
	}
	w.last = res
	w.hasLast = true
	w.opts.Callback(res, nil)
	return struct{}{}
}

// broadcast recomputes every watch whose dependencies the last mutation
// dirtied, per spec.md §5's ordering guarantee: the watch set is snapshotted
// before any callback runs, so a callback that registers or disposes a watch
// cannot affect this round. Suppressed entirely while inside a
// PerformTransaction body; the transaction commit triggers one broadcast
// covering everything dirtied during it.
func (c *Cache) broadcast() {
	if c.txDepth > 0 {
		c.txDirty = true
		return
	}
	c.broadcastNow()
}

func (c *Cache) broadcastNow() {
	snapshot := make([]*Watch, 0, len(c.watches))
	for w := range c.watches {
		snapshot = append(snapshot, w)
	}
	for _, w := range snapshot {
		if w.opts.Optimistic && w.gen != nil && w.gen.Dirty() {
			// A layer was added or removed since this watch's last check.
			// Force a recompute even if the diff's ordinary tracked
			// dependencies (fields, records) didn't themselves change —
			// spec.md §4.8's forced re-check.
			c.optBroadcast.Dirty(w)
			w.gen.Reset(c.stack.TouchGeneration)
		}
		c.broadcastTableFor(w.opts.Optimistic).Call(w)
	}
}
