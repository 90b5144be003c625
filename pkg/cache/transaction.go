package cache

import (
	"fmt"

	"github.com/kittclouds/cachecore/pkg/store"
)

// PerformTransaction runs fn with broadcasting suppressed, then issues a
// single broadcast afterward covering everything fn dirtied — spec.md §5's
// transaction-coalescing guarantee. Calls nest: only the outermost call's
// commit actually broadcasts.
func (c *Cache) PerformTransaction(fn func(*Cache)) {
	c.mu.Lock()
	c.txDepth++
	c.mu.Unlock()

	fn(c)

	c.mu.Lock()
	c.txDepth--
	shouldBroadcast := c.txDirty && c.txDepth == 0
	if c.txDepth == 0 {
		c.txDirty = false
	}
	if shouldBroadcast {
		c.broadcastNow()
	}
	c.mu.Unlock()
}

// OptimisticWriter is the restricted handle a RecordOptimisticTransaction
// body writes through: every write it performs lands in the optimistic
// layer being constructed, never the root.
type OptimisticWriter struct {
	c      *Cache
	target store.Store
	err    error
}

// Write normalizes req.Result into this transaction's optimistic layer. The
// first error from any Write call in a transaction is what
// RecordOptimisticTransaction returns; the layer it produces still gets
// pushed onto the stack (partially populated) since Layer.replay has no way
// to abort once called — callers that need atomicity should validate inputs
// before calling RecordOptimisticTransaction.
func (w *OptimisticWriter) Write(req WriteRequest) error {
	err := w.c.writeInto(w.target, req)
	if err != nil && w.err == nil {
		w.err = err
	}
	return err
}

// RecordOptimisticTransaction pushes a new optimistic layer identified by id
// and runs fn against it, per spec.md §4.4/§6. The same id may be used for
// several layers at once: each new layer stacks on top of the earlier ones,
// and RemoveOptimistic(id) removes every layer carrying that id — see
// pkg/store/stack.go.
func (c *Cache) RecordOptimisticTransaction(fn func(*OptimisticWriter), id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		return fmt.Errorf("cache: optimistic transaction id must not be empty")
	}

	writer := &OptimisticWriter{c: c}
	c.stack.AddLayer(id, func(s store.Store) {
		writer.target = s
		fn(writer)
	})
	c.broadcastNow()
	return writer.err
}

// RemoveOptimistic splices the optimistic layer identified by id out of the
// stack, re-deriving every layer above it, and broadcasts.
func (c *Cache) RemoveOptimistic(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stack.RemoveLayer(id)
	c.broadcastNow()
}
