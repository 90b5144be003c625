// Package cache is the top-level facade: it wires the normalized store, the
// optimistic layer stack, the writer, the reader, and the watch/broadcast
// engine together behind the public API of spec.md §6, under a single
// boundary lock (spec.md §5) in the style of the teacher's
// docstore.Store.
package cache

import (
	"fmt"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/internal/memo"
	"github.com/kittclouds/cachecore/pkg/reader"
	"github.com/kittclouds/cachecore/pkg/store"
	"github.com/kittclouds/cachecore/pkg/writer"
)

// Cache is the synchronous, single-owner normalized GraphQL cache. The
// exported methods take a RWMutex boundary lock; nothing below this layer
// (store, reader, writer, memo) does its own locking — spec.md §5 assumes
// cooperative single-owner use, and the lock here exists only to make
// concurrent *misuse* fail safely rather than corrupt state silently.
type Cache struct {
	mu  sync.RWMutex
	cfg Config

	keys  *keyset.Index
	root  *store.Root
	stack *store.Stack

	rootReader *reader.Reader
	optReader  *reader.Reader

	rootBroadcast *memo.Memoized[*Watch, struct{}]
	optBroadcast  *memo.Memoized[*Watch, struct{}]
	watches       map[*Watch]struct{}

	txDepth int
	txDirty bool
}

// New creates an empty cache.
func New(cfg Config) *Cache {
	ix := keyset.New()
	root := store.NewRoot(ix)
	stack := store.NewStack(root, ix)
	c := &Cache{
		cfg:        cfg,
		keys:       ix,
		root:       root,
		stack:      stack,
		rootReader: reader.New(root.Tracker(), ix),
		optReader:  reader.New(stack.Tracker(), ix),
		watches:    make(map[*Watch]struct{}),
	}
	c.rootBroadcast = memo.New(root.Tracker(), c.computeWatch, watchKeyFor(c))
	c.optBroadcast = memo.New(stack.Tracker(), c.computeWatch, watchKeyFor(c))
	return c
}

func (c *Cache) activeStore(optimistic bool) store.Store {
	if optimistic {
		return c.stack.Top()
	}
	return c.root
}

func (c *Cache) activeReader(optimistic bool) *reader.Reader {
	if optimistic {
		return c.optReader
	}
	return c.rootReader
}

func (c *Cache) prepareDocument(doc *ast.QueryDocument) {
	if c.cfg.AddTypename {
		injectTypename(doc)
	}
}

// ReadRequest mirrors spec.md §6's read(...) options.
type ReadRequest struct {
	Document       *ast.QueryDocument
	OperationName  string
	Variables      map[string]any
	RootID         store.Key
	Optimistic     bool
	PreviousResult map[string]any
}

// Read returns the result for a query, or (nil, nil) if RootID is absent
// from the store. Read requires the result to be fully complete; use Diff
// for partial reads.
func (c *Cache) Read(req ReadRequest) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rootID := req.RootID
	if rootID == "" {
		rootID = store.RootQuery
	}
	if _, ok := c.activeStore(req.Optimistic).Get(rootID); !ok {
		return nil, nil
	}

	c.prepareDocument(req.Document)
	res, err := c.activeReader(req.Optimistic).Diff(c.activeStore(req.Optimistic), reader.Request{
		Document:       req.Document,
		OperationName:  req.OperationName,
		Variables:      req.Variables,
		RootID:         rootID,
		PreviousResult: req.PreviousResult,
		ReturnPartial:  false,
		Matcher:        c.cfg.matcher(),
		Redirects:      c.cfg.Redirects,
		DisableCache:   c.cfg.DisableResultCaching,
	})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// DiffRequest mirrors spec.md §6's diff(...) options.
type DiffRequest struct {
	Document          *ast.QueryDocument
	OperationName     string
	Variables         map[string]any
	RootID            store.Key
	Optimistic        bool
	PreviousResult    map[string]any
	ReturnPartialData bool
}

// Diff returns a possibly-incomplete result plus a completeness flag.
func (c *Cache) Diff(req DiffRequest) (reader.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rootID := req.RootID
	if rootID == "" {
		rootID = store.RootQuery
	}
	c.prepareDocument(req.Document)
	return c.activeReader(req.Optimistic).Diff(c.activeStore(req.Optimistic), reader.Request{
		Document:       req.Document,
		OperationName:  req.OperationName,
		Variables:      req.Variables,
		RootID:         rootID,
		PreviousResult: req.PreviousResult,
		ReturnPartial:  req.ReturnPartialData,
		Matcher:        c.cfg.matcher(),
		Redirects:      c.cfg.Redirects,
		DisableCache:   c.cfg.DisableResultCaching,
	})
}

// WriteRequest mirrors spec.md §6's write(...) options.
type WriteRequest struct {
	Document      *ast.QueryDocument
	OperationName string
	Variables     map[string]any
	DataID        store.Key
	Result        map[string]any
}

// Write normalizes req.Result into the store and broadcasts to watches.
func (c *Cache) Write(req WriteRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeInto(c.root, req); err != nil {
		return err
	}
	c.broadcast()
	return nil
}

// writeInto is the unlocked write primitive shared by Write and the
// optimistic transaction proxy (which already holds c.mu and targets a
// layer instead of the root).
func (c *Cache) writeInto(target store.Store, req WriteRequest) error {
	dataID := req.DataID
	if dataID == "" {
		dataID = store.RootQuery
	}
	c.prepareDocument(req.Document)
	return writer.Write(target, writer.Request{
		Document:      req.Document,
		OperationName: req.OperationName,
		Variables:     req.Variables,
		RootID:        dataID,
		Result:        req.Result,
		IDOf:          c.cfg.idOf(),
		Matcher:       c.cfg.matcher(),
		Reporter:      c.cfg.reporter(),
	})
}

// Reset clears the root store (and every optimistic layer along with it,
// since they're built on top of it) and broadcasts, per spec.md §6/§5.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root.Clear()
	c.stack = store.NewStack(c.root, c.keys)
	c.optReader = reader.New(c.stack.Tracker(), c.keys)
	c.optBroadcast = memo.New(c.stack.Tracker(), c.computeWatch, watchKeyFor(c))
	for w := range c.watches {
		w.hasLast = false
		c.rootBroadcast.Forget(w)
		c.optBroadcast.Forget(w)
		if w.opts.Optimistic {
			w.gen = newWatchGeneration(c)
		}
	}
	c.broadcast()
}

// Extract snapshots the store (optimistic view if requested) into the
// persisted wire format described in spec.md §6.
func (c *Cache) Extract(optimistic bool) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return store.ToJSON(c.activeStore(optimistic).ToObject())
}

// Restore replaces the root store's contents from a snapshot produced by
// Extract. It does not affect any optimistic layer.
func (c *Cache) Restore(data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, err := store.FromJSON(data)
	if err != nil {
		return fmt.Errorf("cache: restore: %w", err)
	}
	c.root.Replace(recs)
	c.broadcast()
	return nil
}
