package reader

import "github.com/kittclouds/cachecore/pkg/store"

// RedirectInfo is passed to a CacheRedirect function alongside the field's
// resolved arguments.
type RedirectInfo struct {
	RootID store.Key
}

// RedirectFunc computes a value for a field the store has no entry for yet —
// typically re-pointing a by-id lookup field at a record normalized under a
// different query, per spec.md §4.7's custom-resolver fallback.
type RedirectFunc func(args map[string]any, info RedirectInfo) (any, bool)

// CacheRedirects maps typename -> field name -> resolver.
type CacheRedirects map[string]map[string]RedirectFunc

func (c CacheRedirects) lookup(typename, field string) RedirectFunc {
	if c == nil {
		return nil
	}
	byField, ok := c[typename]
	if !ok {
		return nil
	}
	return byField[field]
}
