package writer

import (
	"testing"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/pkg/store"
)

func mustParse(t *testing.T, query string) *ast.QueryDocument {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	return doc
}

func newRootStore() *store.Root {
	return store.NewRoot(keyset.New())
}

// TestNormalizeAndDenormalize is scenario S1.
func TestNormalizeAndDenormalize(t *testing.T) {
	doc := mustParse(t, `{ author { id __typename name } }`)
	s := newRootStore()

	result := map[string]any{
		"author": map[string]any{
			"id":         "1",
			"__typename": "A",
			"name":       "X",
		},
	}

	if err := Write(s, Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	root, ok := s.Get(store.RootQuery)
	if !ok {
		t.Fatal("expected ROOT_QUERY record")
	}
	ref, ok := root.Fields["author"].(store.Reference)
	if !ok {
		t.Fatalf("expected author to be a Reference, got %#v", root.Fields["author"])
	}
	if ref.ID != "A:1" {
		t.Fatalf("expected id A:1, got %q", ref.ID)
	}

	rec, ok := s.Get(store.Key("A:1"))
	if !ok {
		t.Fatal("expected A:1 record")
	}
	if rec.Typename != "A" {
		t.Fatalf("expected typename A, got %q", rec.Typename)
	}
	if sc, ok := rec.Fields["name"].(store.Scalar); !ok || sc.Raw != "X" {
		t.Fatalf("expected name:X, got %#v", rec.Fields["name"])
	}
	if sc, ok := rec.Fields["id"].(store.Scalar); !ok || sc.Raw != "1" {
		t.Fatalf("expected id:1, got %#v", rec.Fields["id"])
	}
}

// TestAliasesWithArgs is scenario S2.
func TestAliasesWithArgs(t *testing.T) {
	doc := mustParse(t, `{ a: f(x: 1) b: f(x: 2) }`)
	s := newRootStore()

	result := map[string]any{"a": float64(10), "b": float64(20)}

	if err := Write(s, Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	root, ok := s.Get(store.RootQuery)
	if !ok {
		t.Fatal("expected ROOT_QUERY record")
	}

	va, ok := root.Fields[store.FieldKey(`f({"x":1})`)].(store.Scalar)
	if !ok || va.Raw != float64(10) {
		t.Fatalf("expected f({\"x\":1}):10, got fields=%#v", root.Fields)
	}
	vb, ok := root.Fields[store.FieldKey(`f({"x":2})`)].(store.Scalar)
	if !ok || vb.Raw != float64(20) {
		t.Fatalf("expected f({\"x\":2}):20, got fields=%#v", root.Fields)
	}
}

// TestWriteIsIdempotent covers invariant 2: writing the same result twice
// leaves the store in the same state as writing it once.
func TestWriteIsIdempotent(t *testing.T) {
	doc := mustParse(t, `{ author { id __typename name } }`)
	result := map[string]any{
		"author": map[string]any{"id": "1", "__typename": "A", "name": "X"},
	}

	s1 := newRootStore()
	if err := Write(s1, Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := Write(s1, Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	s2 := newRootStore()
	if err := Write(s2, Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("single write: %v", err)
	}

	rec1, _ := s1.Get(store.Key("A:1"))
	rec2, _ := s2.Get(store.Key("A:1"))
	if len(rec1.Fields) != len(rec2.Fields) {
		t.Fatalf("idempotence violated: %#v vs %#v", rec1.Fields, rec2.Fields)
	}
	for fk, v := range rec2.Fields {
		got, ok := rec1.Fields[fk]
		if !ok {
			t.Fatalf("missing field %s after repeated write", fk)
		}
		if gs, gok := got.(store.Scalar); gok {
			ws, _ := v.(store.Scalar)
			if gs.Raw != ws.Raw {
				t.Fatalf("field %s diverged: %#v vs %#v", fk, got, v)
			}
		}
	}
}

// TestEmbeddedObjectWithoutIDGetsGeneratedReference covers the
// no-identifiable-id branch of normalizeValue: the generated id is derived
// from the parent key and field ($PARENT.field).
func TestEmbeddedObjectWithoutIDGetsGeneratedReference(t *testing.T) {
	doc := mustParse(t, `{ viewer { name } }`)
	s := newRootStore()
	result := map[string]any{"viewer": map[string]any{"name": "anon"}}

	if err := Write(s, Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	root, _ := s.Get(store.RootQuery)
	ref, ok := root.Fields["viewer"].(store.Reference)
	if !ok || !ref.Generated {
		t.Fatalf("expected a generated reference for viewer, got %#v", root.Fields["viewer"])
	}
	if ref.ID != store.Key("ROOT_QUERY.viewer") {
		t.Fatalf("expected stable $PARENT.field id, got %q", ref.ID)
	}
}

// TestConcreteIDOverwritesGeneratedIDMigratesData exercises the "writing a
// concrete id on top of an existing generated id" migration policy.
func TestConcreteIDOverwritesGeneratedIDMigratesData(t *testing.T) {
	doc := mustParse(t, `{ viewer { name } }`)
	s := newRootStore()

	if err := Write(s, Request{Document: doc, RootID: store.RootQuery, Result: map[string]any{
		"viewer": map[string]any{"name": "anon"},
	}}); err != nil {
		t.Fatalf("first write: %v", err)
	}

	if err := Write(s, Request{Document: doc, RootID: store.RootQuery, Result: map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "7", "name": "anon"},
	}}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	root, _ := s.Get(store.RootQuery)
	ref, ok := root.Fields["viewer"].(store.Reference)
	if !ok || ref.Generated || ref.ID != "User:7" {
		t.Fatalf("expected concrete User:7 reference, got %#v", root.Fields["viewer"])
	}
	rec, ok := s.Get(store.Key("User:7"))
	if !ok {
		t.Fatal("expected User:7 record to exist")
	}
	if sc, ok := rec.Fields["name"].(store.Scalar); !ok || sc.Raw != "anon" {
		t.Fatalf("expected migrated name field, got %#v", rec.Fields)
	}
}

// TestRealIDDowngradeIsFatal covers the "writing a result with no id where a
// real id was previously stored" fatal edge case.
func TestRealIDDowngradeIsFatal(t *testing.T) {
	doc := mustParse(t, `{ viewer { id __typename name } }`)
	s := newRootStore()
	if err := Write(s, Request{Document: doc, RootID: store.RootQuery, Result: map[string]any{
		"viewer": map[string]any{"id": "7", "__typename": "User", "name": "anon"},
	}}); err != nil {
		t.Fatalf("first write: %v", err)
	}

	doc2 := mustParse(t, `{ viewer { name } }`)
	err := Write(s, Request{Document: doc2, RootID: store.RootQuery, Result: map[string]any{
		"viewer": map[string]any{"name": "anon2"},
	}})
	if err == nil {
		t.Fatal("expected an IdDowngrade error")
	}
}
