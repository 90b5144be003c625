// Package reader reconstructs GraphQL result trees from the normalized
// record store, computing a completeness verdict and preserving referential
// equality against a previous read, per spec.md §4.7.
package reader

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/internal/memo"
	"github.com/kittclouds/cachecore/pkg/cacheerr"
	"github.com/kittclouds/cachecore/pkg/fieldkey"
	"github.com/kittclouds/cachecore/pkg/fragment"
	"github.com/kittclouds/cachecore/pkg/store"
)

// Request bundles everything one Diff call needs.
type Request struct {
	Document       *ast.QueryDocument
	OperationName  string
	Variables      map[string]any
	RootID         store.Key
	PreviousResult map[string]any
	ReturnPartial  bool
	Matcher        *fragment.Matcher
	Redirects      CacheRedirects
	// DisableCache forces recomputation, bypassing the Memoized table
	// entirely, per spec.md §6's resultCaching config option.
	DisableCache bool
}

// Result is one diff's outcome.
type Result struct {
	Data     map[string]any
	Complete bool
}

// SameAs reports whether two results are indistinguishable to a caller: same
// completeness, and the same (by referential identity, not deep equality)
// data object. A watcher uses this to suppress a callback invocation when a
// dependency fired but the recomputed result came back unchanged.
func (res Result) SameAs(other Result) bool {
	return res.Complete == other.Complete && refEqual(res.Data, other.Data)
}

// Reader resolves selection sets against a Store, memoizing whole-query
// reads keyed on (selection set identity, matcher identity, variables JSON,
// root id, store identity) — spec.md §4.7. Construct one Reader per tracker
// (the root store's, or the optimistic stack's — spec.md §4.4 gives each its
// own tracker so the two memoize independently) and reuse it across Diff
// calls so the cache actually pays off.
//
// Per-selection-set sub-memoization (the finer grain spec.md §4.7 also
// describes) is folded into this same whole-query cache rather than kept as
// a second table: nested selection sets are resolved inline within one
// compute() call, which already runs inside the Memoized frame pushed for
// the outer call, so every record fetched anywhere in the tree is still
// correctly attributed as a dependency of the one cache entry that covers
// the whole read.
type Reader struct {
	keys  *keyset.Index
	cache *memo.Memoized[callKey, callResult]
}

// New creates a Reader backed by tracker, using keys to build memoization
// tags.
func New(tracker *memo.Tracker, keys *keyset.Index) *Reader {
	r := &Reader{keys: keys}
	r.cache = memo.New(tracker, r.compute, r.keyFor)
	return r
}

type callKey struct {
	doc       *ast.QueryDocument
	op        *ast.OperationDefinition
	sel       ast.SelectionSet
	rootKey   store.Key
	s         store.Store
	matcher   *fragment.Matcher
	redirects CacheRedirects
	vars      map[string]any
	varsJSON  string
	previous  map[string]any
	reporter  cacheerr.Reporter
	cacheable bool
}

type callResult struct {
	data     map[string]any
	missing  []string
	complete bool
}

func (r *Reader) keyFor(k callKey) (memo.Tag, bool) {
	if !k.cacheable {
		return nil, false
	}
	// k.op (a pointer into the parsed, reused AST) stands in for "selection
	// set identity" — ast.SelectionSet is itself a slice and so cannot be
	// used as a map key.
	return r.keys.Lookup("read", k.op, k.matcher, k.varsJSON, k.rootKey, k.s), true
}

func (r *Reader) compute(k callKey) callResult {
	rec, _ := k.s.Get(k.rootKey)
	typename := ""
	if rec != nil {
		typename = rec.Typename
	}
	data, missing, complete := r.resolveSelectionSet(k.sel, k.rootKey, rec, typename, k, nil, k.previous, false)
	return callResult{data: data, missing: missing, complete: complete}
}

// Diff is the public entry point, per spec.md §4.7.
func (r *Reader) Diff(s store.Store, req Request) (Result, error) {
	op := pickOperation(req.Document, req.OperationName)
	if op == nil {
		return Result{}, fmt.Errorf("reader: no operation named %q in document", req.OperationName)
	}

	matcher := req.Matcher
	if matcher == nil {
		matcher = fragment.NewHeuristic()
	}

	varsJSON, err := json.Marshal(req.Variables)
	if err != nil {
		return Result{}, fmt.Errorf("reader: encoding variables: %w", err)
	}

	k := callKey{
		doc:       req.Document,
		op:        op,
		sel:       op.SelectionSet,
		rootKey:   req.RootID,
		s:         s,
		matcher:   matcher,
		redirects: req.Redirects,
		vars:      req.Variables,
		varsJSON:  string(varsJSON),
		previous:  req.PreviousResult,
		reporter:  cacheerr.NoopReporter{},
		cacheable: req.PreviousResult == nil && !req.DisableCache,
	}

	cr := r.cache.Call(k)
	if !req.ReturnPartial && !cr.complete {
		return Result{}, &cacheerr.MissingFieldError{Path: cr.missing}
	}
	return Result{Data: cr.data, Complete: cr.complete}, nil
}

func pickOperation(doc *ast.QueryDocument, name string) *ast.OperationDefinition {
	if len(doc.Operations) == 0 {
		return nil
	}
	if name == "" {
		return doc.Operations[0]
	}
	for _, op := range doc.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// resolveSelectionSet resolves sel against rec (the record for key, possibly
// nil) and merges in any fragments. tolerable marks every field encountered
// here as non-fatal-if-missing, inherited from an enclosing Heuristic
// fragment match.
func (r *Reader) resolveSelectionSet(
	sel ast.SelectionSet,
	key store.Key,
	rec *store.Record,
	typename string,
	k callKey,
	path []string,
	previous map[string]any,
	tolerable bool,
) (map[string]any, []string, bool) {
	out := make(map[string]any)
	var missing []string
	complete := true

	for _, raw := range sel {
		switch s := raw.(type) {
		case *ast.Field:
			skip, err := fieldkey.ShouldSkip(s.Directives, k.vars)
			if err != nil {
				missing = append(missing, joinPath(append(path, fieldkey.ResultKey(s))))
				complete = false
				continue
			}
			if skip {
				continue
			}
			val, fMissing, fComplete := r.resolveField(s, key, rec, typename, k, path, previous, tolerable)
			out[fieldkey.ResultKey(s)] = val
			if !fComplete {
				complete = false
				missing = append(missing, fMissing...)
			}

		case *ast.FragmentSpread:
			skip, err := fieldkey.ShouldSkip(s.Directives, k.vars)
			if err != nil || skip {
				continue
			}
			def := k.doc.Fragments.ForName(s.Name)
			if def == nil {
				missing = append(missing, joinPath(append(path, "..."+s.Name)))
				complete = false
				continue
			}
			verdict := k.matcher.Match(def.TypeCondition, typename)
			if verdict == fragment.NoMatch {
				continue
			}
			subOut, subMissing, subComplete := r.resolveSelectionSet(
				def.SelectionSet, key, rec, typename, k, path, previous, tolerable || verdict == fragment.Heuristic,
			)
			mergeInto(out, subOut)
			if !subComplete {
				complete = false
				missing = append(missing, subMissing...)
			}

		case *ast.InlineFragment:
			skip, err := fieldkey.ShouldSkip(s.Directives, k.vars)
			if err != nil || skip {
				continue
			}
			verdict := k.matcher.Match(s.TypeCondition, typename)
			if verdict == fragment.NoMatch {
				continue
			}
			subOut, subMissing, subComplete := r.resolveSelectionSet(
				s.SelectionSet, key, rec, typename, k, path, previous, tolerable || verdict == fragment.Heuristic,
			)
			mergeInto(out, subOut)
			if !subComplete {
				complete = false
				missing = append(missing, subMissing...)
			}
		}
	}

	if sameShape(out, previous) {
		return previous, missing, complete
	}
	return out, missing, complete
}

func (r *Reader) resolveField(
	f *ast.Field,
	recordKey store.Key,
	rec *store.Record,
	typename string,
	k callKey,
	path []string,
	previous map[string]any,
	tolerable bool,
) (any, []string, bool) {
	resultKey := fieldkey.ResultKey(f)
	fieldPath := append(append([]string{}, path...), resultKey)

	if f.Name == "__typename" {
		return typename, nil, true
	}

	storeFieldKey, err := fieldkey.Make(f.Name, f.Arguments, f.Directives, k.vars)
	if err != nil {
		return nil, []string{joinPath(fieldPath)}, false
	}

	var (
		rawVal store.Value
		found  bool
	)
	if rec != nil {
		// The enclosing Get already registered a coarse "this record exists
		// with this identity" dependency; registering the field tag too means
		// a write to a sibling field of the same record won't dirty this
		// call (spec.md invariant 4).
		store.TouchField(r.keys, recordKey, storeFieldKey)
		rawVal, found = rec.Fields[storeFieldKey]
	}

	if !found {
		if redirect := k.redirects.lookup(typename, f.Name); redirect != nil {
			args, _ := argsToMap(f.Arguments, k.vars)
			if v, ok := redirect(args, RedirectInfo{RootID: recordKey}); ok {
				rawVal = toStoreValue(v)
				found = true
			}
		}
	}

	if !found {
		if tolerable {
			return nil, nil, true
		}
		return nil, []string{joinPath(fieldPath)}, false
	}

	return r.resolveValue(rawVal, f.SelectionSet, k, fieldPath, previousValueFor(previous, resultKey), tolerable)
}

func (r *Reader) resolveValue(
	v store.Value,
	subSel ast.SelectionSet,
	k callKey,
	path []string,
	previous any,
	tolerable bool,
) (any, []string, bool) {
	switch val := v.(type) {
	case nil:
		return nil, nil, true
	case store.Null:
		return nil, nil, true
	case store.Scalar:
		return val.Raw, nil, true
	case store.JSONBlob:
		return val.Raw, nil, true
	case store.List:
		prevList, _ := previous.([]any)
		list := make([]any, len(val))
		var missing []string
		complete := true
		for i, elem := range val {
			var prevElem any
			if i < len(prevList) {
				prevElem = prevList[i]
			}
			ev, eMissing, eComplete := r.resolveValue(elem, subSel, k, append(path, strconv.Itoa(i)), prevElem, tolerable)
			list[i] = ev
			if !eComplete {
				complete = false
				missing = append(missing, eMissing...)
			}
		}
		if prevList != nil && identicalLists(list, prevList) {
			return prevList, missing, complete
		}
		return list, missing, complete
	case store.Reference:
		childRec, _ := k.s.Get(val.ID)
		typename := val.Typename
		if childRec != nil && childRec.Typename != "" {
			typename = childRec.Typename
		}
		prevMap, _ := previous.(map[string]any)
		data, missing, complete := r.resolveSelectionSet(subSel, val.ID, childRec, typename, k, path, prevMap, tolerable)
		return data, missing, complete
	default:
		return nil, nil, true
	}
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func previousValueFor(previous map[string]any, key string) any {
	if previous == nil {
		return nil
	}
	return previous[key]
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func argsToMap(args ast.ArgumentList, vars map[string]any) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(args))
	for _, a := range args {
		v, err := a.Value.Value(vars)
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	return out, nil
}

// toStoreValue lets a CacheRedirect return either a raw JSON-ish value or an
// already-built store.Reference (e.g. via an injected getCacheKey-style
// helper the caller constructs itself).
func toStoreValue(v any) store.Value {
	switch t := v.(type) {
	case store.Value:
		return t
	case nil:
		return store.Null{}
	default:
		return store.Scalar{Raw: t}
	}
}
