package reader

import (
	"testing"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/kittclouds/cachecore/internal/keyset"
	"github.com/kittclouds/cachecore/pkg/store"
	"github.com/kittclouds/cachecore/pkg/writer"
)

func mustParse(t *testing.T, query string) *ast.QueryDocument {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	return doc
}

func newRootAndReader() (*store.Root, *Reader) {
	ix := keyset.New()
	root := store.NewRoot(ix)
	return root, New(root.Tracker(), ix)
}

// TestNormalizeAndDenormalizeRoundTrip is scenario S1's read half: reading
// back what the writer normalized deep-equals the original result.
func TestNormalizeAndDenormalizeRoundTrip(t *testing.T) {
	doc := mustParse(t, `{ author { id __typename name } }`)
	root, r := newRootAndReader()

	result := map[string]any{
		"author": map[string]any{"id": "1", "__typename": "A", "name": "X"},
	}
	if err := writer.Write(root, writer.Request{Document: doc, RootID: store.RootQuery, Result: result}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	res, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !res.Complete {
		t.Fatal("expected a complete read")
	}
	author, ok := res.Data["author"].(map[string]any)
	if !ok {
		t.Fatalf("expected author object, got %#v", res.Data["author"])
	}
	if author["id"] != "1" || author["__typename"] != "A" || author["name"] != "X" {
		t.Fatalf("round trip mismatch: %#v", author)
	}
}

// TestAliasesWithArgsRoundTrip is scenario S2.
func TestAliasesWithArgsRoundTrip(t *testing.T) {
	doc := mustParse(t, `{ a: f(x: 1) b: f(x: 2) }`)
	root, r := newRootAndReader()

	if err := writer.Write(root, writer.Request{
		Document: doc, RootID: store.RootQuery,
		Result: map[string]any{"a": float64(10), "b": float64(20)},
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	res, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if res.Data["a"] != float64(10) || res.Data["b"] != float64(20) {
		t.Fatalf("expected {a:10,b:20}, got %#v", res.Data)
	}
}

// TestReferentialStabilityAcrossUnchangedReads covers invariant 3: reading
// twice with no intervening write, passing the first result back in as
// previousResult, returns the exact same nested author object.
func TestReferentialStabilityAcrossUnchangedReads(t *testing.T) {
	doc := mustParse(t, `{ author { id __typename name } }`)
	root, r := newRootAndReader()

	if err := writer.Write(root, writer.Request{Document: doc, RootID: store.RootQuery, Result: map[string]any{
		"author": map[string]any{"id": "1", "__typename": "A", "name": "X"},
	}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	first, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery})
	if err != nil {
		t.Fatalf("first Diff: %v", err)
	}

	second, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery, PreviousResult: first.Data})
	if err != nil {
		t.Fatalf("second Diff: %v", err)
	}

	firstAuthor := first.Data["author"].(map[string]any)
	secondAuthor := second.Data["author"].(map[string]any)
	if !refEqual(firstAuthor, secondAuthor) {
		t.Fatal("expected the unchanged nested author object to be referentially reused")
	}
}

// TestMissingFieldFailsWithoutPartial covers the MissingField fatal path.
func TestMissingFieldFailsWithoutPartial(t *testing.T) {
	doc := mustParse(t, `{ author { id name age } }`)
	root, r := newRootAndReader()

	if err := writer.Write(root, writer.Request{Document: doc, RootID: store.RootQuery, Result: map[string]any{
		"author": map[string]any{"id": "1", "name": "X"},
	}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery})
	if err == nil {
		t.Fatal("expected a MissingField error for the unwritten age field")
	}

	res, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery, ReturnPartial: true})
	if err != nil {
		t.Fatalf("partial Diff: %v", err)
	}
	if res.Complete {
		t.Fatal("expected an incomplete partial result")
	}
}

// TestHeuristicFragmentMakesMissingFieldTolerable exercises fragment
// tolerance per spec.md §4.5/§4.7.
func TestHeuristicFragmentMakesMissingFieldTolerable(t *testing.T) {
	doc := mustParse(t, `{ author { id ... on Profile { bio } } }`)
	root, r := newRootAndReader()

	if err := writer.Write(root, writer.Request{Document: doc, RootID: store.RootQuery, Result: map[string]any{
		"author": map[string]any{"id": "1", "__typename": "Author"},
	}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	res, err := r.Diff(root, Request{Document: doc, RootID: store.RootQuery})
	if err != nil {
		t.Fatalf("expected heuristic match to tolerate the missing bio field, got: %v", err)
	}
	if !res.Complete {
		t.Fatal("expected a complete result despite the missing bio field")
	}
}
