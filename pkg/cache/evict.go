package cache

import (
	"github.com/kittclouds/cachecore/pkg/cacheerr"
	"github.com/kittclouds/cachecore/pkg/store"
)

// Evict is not implemented: removing a single field or record without
// leaving every reference to it dangling (or cascading deletes through the
// whole graph) needs a garbage-collection pass this port doesn't build —
// see SPEC_FULL.md's Non-goals. Callers that need to drop state should use
// Reset or Restore with a pruned snapshot instead.
func (c *Cache) Evict(id store.Key, fields ...string) error {
	return cacheerr.ErrEvictionUnsupported
}
