package cache

import "github.com/vektah/gqlparser/v2/ast"

// injectTypename walks every selection set in doc and adds a "__typename"
// field selection wherever one isn't already present, per spec.md §6's
// addTypename config option. Mutates doc in place; idempotent.
func injectTypename(doc *ast.QueryDocument) {
	for _, op := range doc.Operations {
		injectTypenameInto(&op.SelectionSet)
	}
	for _, frag := range doc.Fragments {
		injectTypenameInto(&frag.SelectionSet)
	}
}

func injectTypenameInto(sel *ast.SelectionSet) {
	if *sel == nil {
		return
	}
	has := false
	for _, s := range *sel {
		if f, ok := s.(*ast.Field); ok {
			if f.Name == "__typename" {
				has = true
			}
			if f.SelectionSet != nil {
				injectTypenameInto(&f.SelectionSet)
			}
		}
		if f, ok := s.(*ast.InlineFragment); ok {
			injectTypenameInto(&f.SelectionSet)
		}
	}
	if !has {
		*sel = append(*sel, &ast.Field{Name: "__typename"})
	}
}
