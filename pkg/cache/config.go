package cache

import (
	"github.com/kittclouds/cachecore/pkg/cacheerr"
	"github.com/kittclouds/cachecore/pkg/fragment"
	"github.com/kittclouds/cachecore/pkg/reader"
	"github.com/kittclouds/cachecore/pkg/writer"
)

// IDFunc is writer.IDFunc re-exported so callers configuring a Cache never
// need to import pkg/writer directly.
type IDFunc = writer.IDFunc

// Config holds the cache's optional behavior knobs, per spec.md §6. The zero
// Config is a valid, fully-defaulted configuration: result caching defaults
// to enabled, so it is expressed here as DisableResultCaching (false by
// default) rather than a ResultCaching bool that would default to off.
type Config struct {
	// IDOf computes a stable id for a result object. Defaults to
	// writer.DefaultIDOf ("__typename:id" / "__typename:_id").
	IDOf IDFunc
	// AddTypename injects a "__typename" selection into every selection set
	// of every document processed by this cache before it is read or
	// written.
	AddTypename bool
	// Matcher decides fragment applicability. Defaults to a schema-less
	// heuristic matcher.
	Matcher *fragment.Matcher
	// Redirects supplies custom field resolvers consulted when the store has
	// no entry for a requested field.
	Redirects reader.CacheRedirects
	// DisableResultCaching turns off the reader's and watch engine's
	// dependency-tracked memoization, forcing every read to recompute.
	DisableResultCaching bool
	// Reporter receives non-fatal warnings. Defaults to a no-op.
	Reporter cacheerr.Reporter
}

func (c Config) idOf() IDFunc {
	if c.IDOf != nil {
		return c.IDOf
	}
	return writer.DefaultIDOf
}

func (c Config) matcher() *fragment.Matcher {
	if c.Matcher != nil {
		return c.Matcher
	}
	return fragment.NewHeuristic()
}

func (c Config) reporter() cacheerr.Reporter {
	if c.Reporter != nil {
		return c.Reporter
	}
	return cacheerr.NoopReporter{}
}
