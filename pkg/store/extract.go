package store

import "fmt"

// TypenameField is the reserved field key under which a record's typename
// is additionally serialized in the wire format, independent of whatever
// the query itself selected it under (normally the same key, when
// Config.AddTypename is on).
const TypenameField FieldKey = "__typename"

// ToJSON renders a snapshot of store contents (as returned by ToObject) into
// the persisted wire format: a plain map id -> record, where record is a
// map from store-field-key to JSON-safe value and references serialize as
// {"type":"id","id":"<key>","generated":bool,"typename"?:string} — the
// variant spec.md §6 calls out as one of two that occur in the source;
// cachecore picks this one (see DESIGN.md).
func ToJSON(objs map[Key]*Record) map[string]any {
	out := make(map[string]any, len(objs))
	for key, rec := range objs {
		out[string(key)] = recordToJSON(rec)
	}
	return out
}

func recordToJSON(rec *Record) map[string]any {
	out := make(map[string]any, len(rec.Fields)+1)
	for fk, v := range rec.Fields {
		out[string(fk)] = valueToJSON(v)
	}
	if rec.Typename != "" {
		out[string(TypenameField)] = rec.Typename
	}
	return out
}

func valueToJSON(v Value) any {
	switch t := v.(type) {
	case Scalar:
		return t.Raw
	case Null:
		return nil
	case JSONBlob:
		return t.Raw
	case Reference:
		ref := map[string]any{
			"type":      "id",
			"id":        string(t.ID),
			"generated": t.Generated,
		}
		if t.Typename != "" {
			ref["typename"] = t.Typename
		}
		return ref
	case List:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = valueToJSON(e)
		}
		return out
	default:
		return nil
	}
}

// FromJSON is the inverse of ToJSON, restoring a snapshot produced by it (or
// handed to Cache.Restore) back into records.
func FromJSON(data map[string]any) (map[Key]*Record, error) {
	out := make(map[Key]*Record, len(data))
	for id, raw := range data {
		recRaw, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("store: record %q is not an object", id)
		}
		rec, err := recordFromJSON(recRaw)
		if err != nil {
			return nil, fmt.Errorf("store: record %q: %w", id, err)
		}
		out[Key(id)] = rec
	}
	return out, nil
}

func recordFromJSON(raw map[string]any) (*Record, error) {
	rec := NewRecord("")
	for fk, v := range raw {
		if FieldKey(fk) == TypenameField {
			if s, ok := v.(string); ok {
				rec.Typename = s
			}
			continue
		}
		val, err := valueFromJSON(v)
		if err != nil {
			return nil, err
		}
		rec.Fields[FieldKey(fk)] = val
	}
	return rec, nil
}

func valueFromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case map[string]any:
		if kind, ok := t["type"].(string); ok && kind == "id" {
			id, _ := t["id"].(string)
			generated, _ := t["generated"].(bool)
			typename, _ := t["typename"].(string)
			return Reference{ID: Key(id), Typename: typename, Generated: generated}, nil
		}
		return JSONBlob{Raw: t}, nil
	case []any:
		out := make(List, len(t))
		for i, e := range t {
			val, err := valueFromJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	default:
		return Scalar{Raw: t}, nil
	}
}
