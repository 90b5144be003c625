package cache

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/kittclouds/cachecore/pkg/cacheerr"
	"github.com/kittclouds/cachecore/pkg/reader"
	"github.com/kittclouds/cachecore/pkg/store"
)

// FragmentRequest bundles the arguments common to ReadFragment and
// WriteFragment, per spec.md §6.
type FragmentRequest struct {
	// Document holds only FragmentDefinitions — no operation.
	Document     *ast.QueryDocument
	FragmentName string
	ID           store.Key
	Variables    map[string]any
	Optimistic   bool
}

// resolveFragment picks the fragment definition a request targets, applying
// spec.md §7's rule: if more than one fragment is defined and none is named
// explicitly, the call is an error.
func resolveFragment(doc *ast.QueryDocument, name string) (*ast.FragmentDefinition, error) {
	if name != "" {
		if def := doc.Fragments.ForName(name); def != nil {
			return def, nil
		}
		return nil, fmt.Errorf("cache: fragment %q not found in document", name)
	}
	if len(doc.Fragments) == 1 {
		return doc.Fragments[0], nil
	}
	return nil, fmt.Errorf("%w: document defines %d fragments", cacheerr.ErrNoFragmentName, len(doc.Fragments))
}

// wrapFragment builds a synthetic single-operation document selecting only
// "...FragmentName", so the fragment body can be driven through the normal
// reader/writer machinery unchanged.
func wrapFragment(doc *ast.QueryDocument, def *ast.FragmentDefinition) *ast.QueryDocument {
	op := &ast.OperationDefinition{
		Operation: ast.Query,
		SelectionSet: ast.SelectionSet{
			&ast.FragmentSpread{Name: def.Name},
		},
	}
	return &ast.QueryDocument{
		Operations: ast.OperationList{op},
		Fragments:  doc.Fragments,
	}
}

// ReadFragment reads the entity identified by req.ID as shaped by the named
// (or sole) fragment in req.Document.
func (c *Cache) ReadFragment(req FragmentRequest) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prepareDocument(req.Document)
	def, err := resolveFragment(req.Document, req.FragmentName)
	if err != nil {
		return nil, err
	}
	if _, ok := c.activeStore(req.Optimistic).Get(req.ID); !ok {
		return nil, nil
	}

	res, err := c.activeReader(req.Optimistic).Diff(c.activeStore(req.Optimistic), reader.Request{
		Document:      wrapFragment(req.Document, def),
		Variables:     req.Variables,
		RootID:        req.ID,
		ReturnPartial: false,
		Matcher:       c.cfg.matcher(),
		Redirects:     c.cfg.Redirects,
		DisableCache:  c.cfg.DisableResultCaching,
	})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// WriteFragment normalizes req's data (carried via an adjacent WriteRequest-
// shaped call) against the named (or sole) fragment in req.Document, writing
// at req.ID.
func (c *Cache) WriteFragment(req FragmentRequest, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, err := resolveFragment(req.Document, req.FragmentName)
	if err != nil {
		return err
	}

	if err := c.writeInto(c.root, WriteRequest{
		Document:  wrapFragment(req.Document, def),
		Variables: req.Variables,
		DataID:    req.ID,
		Result:    data,
	}); err != nil {
		return err
	}
	c.broadcast()
	return nil
}
