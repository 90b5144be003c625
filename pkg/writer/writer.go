// Package writer normalizes a GraphQL result tree into the flat record store,
// per spec.md §4.6.
package writer

import (
	"bytes"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/kittclouds/cachecore/pkg/cacheerr"
	"github.com/kittclouds/cachecore/pkg/fieldkey"
	"github.com/kittclouds/cachecore/pkg/fragment"
	"github.com/kittclouds/cachecore/pkg/store"
)

// Request bundles everything a write needs, mirroring the Read-side Request
// in pkg/reader so Cache can build both from one set of call arguments.
type Request struct {
	Document      *ast.QueryDocument
	OperationName string
	Variables     map[string]any
	RootID        store.Key
	Result        map[string]any
	IDOf          IDFunc
	Matcher       *fragment.Matcher
	Reporter      cacheerr.Reporter
}

// Write normalizes req.Result against req.Document and applies the resulting
// record mutations to target.
func Write(target store.Store, req Request) error {
	op := pickOperation(req.Document, req.OperationName)
	if op == nil {
		return fmt.Errorf("writer: no operation named %q in document", req.OperationName)
	}

	idOf := req.IDOf
	if idOf == nil {
		idOf = DefaultIDOf
	}
	matcher := req.Matcher
	if matcher == nil {
		matcher = fragment.NewHeuristic()
	}
	reporter := req.Reporter
	if reporter == nil {
		reporter = cacheerr.NoopReporter{}
	}

	w := &writer{
		store:    target,
		doc:      req.Document,
		vars:     req.Variables,
		idOf:     idOf,
		matcher:  matcher,
		reporter: reporter,
		pending:  make(map[store.Key]*store.Record),
	}

	if err := w.writeSelectionSet(op.SelectionSet, req.Result, req.RootID, ""); err != nil {
		return cacheerr.NewWriteError(err, formatDocument(req.Document))
	}
	w.flush()
	return nil
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

func formatDocument(doc *ast.QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return buf.String()
}

type writer struct {
	store    store.Store
	doc      *ast.QueryDocument
	vars     map[string]any
	idOf     IDFunc
	matcher  *fragment.Matcher
	reporter cacheerr.Reporter
	pending  map[store.Key]*store.Record
}

func (w *writer) getOrCreatePending(id store.Key) *store.Record {
	rec, ok := w.pending[id]
	if !ok {
		rec = store.NewRecord("")
		w.pending[id] = rec
	}
	return rec
}

// writeSelectionSet walks sel against obj, accumulating field writes for
// recordID into w.pending. typename is the typename already known for obj
// (if any), used when obj itself carries no __typename selection.
func (w *writer) writeSelectionSet(sel ast.SelectionSet, obj map[string]any, recordID store.Key, typename string) error {
	pending := w.getOrCreatePending(recordID)
	if t, ok := obj["__typename"].(string); ok && t != "" {
		typename = t
		pending.Typename = t
	} else if typename != "" && pending.Typename == "" {
		pending.Typename = typename
	}

	for _, sel := range sel {
		switch s := sel.(type) {
		case *ast.Field:
			if err := w.writeField(s, obj, recordID, pending); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			skip, err := fieldkey.ShouldSkip(s.Directives, w.vars)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			def := w.doc.Fragments.ForName(s.Name)
			if def == nil {
				return fmt.Errorf("writer: unknown fragment %q", s.Name)
			}
			verdict := w.matcher.Match(def.TypeCondition, typename)
			if verdict == fragment.NoMatch {
				continue
			}
			if err := w.writeSelectionSet(def.SelectionSet, obj, recordID, typename); err != nil {
				return err
			}
		case *ast.InlineFragment:
			skip, err := fieldkey.ShouldSkip(s.Directives, w.vars)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			verdict := w.matcher.Match(s.TypeCondition, typename)
			if verdict == fragment.NoMatch {
				continue
			}
			if err := w.writeSelectionSet(s.SelectionSet, obj, recordID, typename); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *writer) writeField(f *ast.Field, obj map[string]any, recordID store.Key, pending *store.Record) error {
	skip, err := fieldkey.ShouldSkip(f.Directives, w.vars)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	if f.Name == "__typename" {
		return nil // already folded into pending.Typename above
	}

	resultKey := fieldkey.ResultKey(f)
	rv, present := obj[resultKey]
	if !present {
		w.reporter.Warn("writer: missing field in result", "field", resultKey, "record", string(recordID))
		return nil
	}

	storeFieldKey, err := fieldkey.Make(f.Name, f.Arguments, f.Directives, w.vars)
	if err != nil {
		return err
	}

	val, err := w.writeFieldValue(recordID, storeFieldKey, rv, f.SelectionSet)
	if err != nil {
		return err
	}
	pending.Fields[storeFieldKey] = val
	return nil
}

// writeFieldValue normalizes rv and detects id-downgrade/migration against
// whatever currently occupies (recordID, fieldKey) — in w.pending if this
// write already touched it, else in the underlying store.
func (w *writer) writeFieldValue(recordID store.Key, fieldKey store.FieldKey, rv any, subSel ast.SelectionSet) (store.Value, error) {
	prev := w.existingFieldValue(recordID, fieldKey)
	prevRef, prevWasRealRef := prev.(store.Reference)
	prevWasRealRef = prevWasRealRef && !prevRef.Generated

	newVal, err := w.normalizeValue(rv, subSel, recordID, string(fieldKey))
	if err != nil {
		return nil, err
	}

	newRef, newIsRef := newVal.(store.Reference)

	if prevWasRealRef && (!newIsRef || newRef.Generated) {
		return nil, fmt.Errorf("%w: %s.%s previously held id %q", cacheerr.ErrIdDowngrade, recordID, fieldKey, prevRef.ID)
	}

	if prevRefAny, ok := prev.(store.Reference); ok && prevRefAny.Generated && newIsRef && !newRef.Generated && prevRefAny.ID != newRef.ID {
		w.migrateRecord(prevRefAny.ID, newRef.ID)
	}

	return newVal, nil
}

func (w *writer) existingFieldValue(recordID store.Key, fieldKey store.FieldKey) store.Value {
	if rec, ok := w.pending[recordID]; ok {
		if v, ok := rec.Fields[fieldKey]; ok {
			return v
		}
	}
	if rec, ok := w.store.Get(recordID); ok {
		return rec.Fields[fieldKey]
	}
	return nil
}

// normalizeValue implements spec.md §4.6 point 2. genPath accumulates the
// field-path suffix ("field" or, inside a list, "field.3") used to synthesize a
// generated id when an embedded object carries no identifiable id.
func (w *writer) normalizeValue(v any, subSel ast.SelectionSet, parentKey store.Key, genPath string) (store.Value, error) {
	switch val := v.(type) {
	case nil:
		return store.Null{}, nil
	case []any:
		list := make(store.List, len(val))
		for i, e := range val {
			nv, err := w.normalizeValue(e, subSel, parentKey, fmt.Sprintf("%s.%d", genPath, i))
			if err != nil {
				return nil, err
			}
			list[i] = nv
		}
		return list, nil
	case map[string]any:
		if subSel == nil {
			return store.JSONBlob{Raw: val}, nil
		}
		typename, _ := val["__typename"].(string)

		var childKey store.Key
		generated := false
		if id, ok := w.idOf(val, typename); ok {
			childKey = store.Key(id)
		} else {
			childKey = store.Key(fmt.Sprintf("%s.%s", parentKey, genPath))
			generated = true
		}

		if err := w.writeSelectionSet(subSel, val, childKey, typename); err != nil {
			return nil, err
		}
		if generated {
			if rec := w.pending[childKey]; rec != nil && rec.Typename == "" {
				rec.Typename = typename
			}
		}
		return store.Reference{ID: childKey, Typename: typename, Generated: generated}, nil
	default:
		return store.Scalar{Raw: val}, nil
	}
}

// migrateRecord copies oldKey's fields into newKey's pending record wherever
// newKey doesn't already define them, per spec.md §4.6's "writing a concrete
// id on top of an existing generated id ... must preserve data" policy.
func (w *writer) migrateRecord(oldKey, newKey store.Key) {
	var old *store.Record
	if rec, ok := w.pending[oldKey]; ok {
		old = rec
	} else if rec, ok := w.store.Get(oldKey); ok {
		old = rec
	}
	if old == nil {
		return
	}
	dst := w.getOrCreatePending(newKey)
	for fk, v := range old.Fields {
		if _, exists := dst.Fields[fk]; !exists {
			dst.Fields[fk] = v
		}
	}
	if dst.Typename == "" {
		dst.Typename = old.Typename
	}
}

// flush merges every accumulated delta into the store it was read from.
func (w *writer) flush() {
	for id, delta := range w.pending {
		base, _ := w.store.Get(id)
		w.store.Set(id, mergeRecord(base, delta))
	}
}
