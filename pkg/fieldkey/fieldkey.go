// Package fieldkey computes store-field-keys and evaluates skip/include
// directives against a parsed GraphQL query document. It is shared by
// pkg/writer and pkg/reader so that pkg/store never needs to import
// github.com/vektah/gqlparser/v2/ast — pkg/store stays GraphQL-agnostic.
package fieldkey

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/kittclouds/cachecore/pkg/pool"
	"github.com/kittclouds/cachecore/pkg/store"
)

// ResultKey returns the key under which a field's value appears in a
// result object: its alias if it has one, otherwise its name.
func ResultKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Make computes the canonical StoreFieldKey for a field: its name plus a
// deterministic JSON serialization of its arguments (with variables
// substituted) and any directives other than @skip/@include. Two calls
// with equivalent arguments — regardless of the order they were written in
// the query — produce byte-identical keys, since encoding/json always
// serializes map[string]any keys in sorted order.
func Make(name string, args ast.ArgumentList, directives ast.DirectiveList, vars map[string]any) (store.FieldKey, error) {
	argObj, err := argsToMap(args, vars)
	if err != nil {
		return "", fmt.Errorf("fieldkey: %s: %w", name, err)
	}

	dirObj, err := directivesToMap(directives, vars)
	if err != nil {
		return "", fmt.Errorf("fieldkey: %s: %w", name, err)
	}

	if len(argObj) == 0 && len(dirObj) == 0 {
		return store.FieldKey(name), nil
	}

	// payload is purely transient — built, marshaled, and discarded within
	// this call — so it's a good fit for the pooled scratch map the teacher
	// built for the same "assemble then json.Marshal" shape.
	payload := pool.GetMap()
	defer pool.PutMap(payload)
	if len(argObj) > 0 {
		payload["args"] = argObj
	}
	if len(dirObj) > 0 {
		payload["dirs"] = dirObj
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fieldkey: %s: %w", name, err)
	}
	return store.FieldKey(fmt.Sprintf("%s(%s)", name, raw)), nil
}

func argsToMap(args ast.ArgumentList, vars map[string]any) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(args))
	for _, a := range args {
		v, err := a.Value.Value(vars)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", a.Name, err)
		}
		out[a.Name] = v
	}
	return out, nil
}

func directivesToMap(dirs ast.DirectiveList, vars map[string]any) (map[string]any, error) {
	var kept ast.DirectiveList
	for _, d := range dirs {
		if d.Name == "skip" || d.Name == "include" {
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		return nil, nil
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })

	out := make(map[string]any, len(kept))
	for _, d := range kept {
		argObj, err := argsToMap(d.Arguments, vars)
		if err != nil {
			return nil, fmt.Errorf("directive @%s: %w", d.Name, err)
		}
		out[d.Name] = argObj
	}
	return out, nil
}

// ShouldSkip evaluates @skip/@include against vars and reports whether the
// selection carrying these directives should be excluded.
func ShouldSkip(dirs ast.DirectiveList, vars map[string]any) (bool, error) {
	if d := dirs.ForName("skip"); d != nil {
		v, err := boolArg(d, vars)
		if err != nil {
			return false, fmt.Errorf("fieldkey: @skip: %w", err)
		}
		if v {
			return true, nil
		}
	}
	if d := dirs.ForName("include"); d != nil {
		v, err := boolArg(d, vars)
		if err != nil {
			return false, fmt.Errorf("fieldkey: @include: %w", err)
		}
		if !v {
			return true, nil
		}
	}
	return false, nil
}

func boolArg(d *ast.Directive, vars map[string]any) (bool, error) {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, fmt.Errorf("missing required argument \"if\"")
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument \"if\" is not a boolean")
	}
	return b, nil
}
