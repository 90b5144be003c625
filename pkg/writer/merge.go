package writer

import "github.com/kittclouds/cachecore/pkg/store"

// mergeValue implements spec.md §4.6 point 3's deep merger at the level of a
// single field value: JSON blobs merge key-by-key (recursing on nested
// maps), everything else — including arrays and references — has the
// incoming value win outright.
func mergeValue(old, incoming store.Value) store.Value {
	oldBlob, oldIsBlob := old.(store.JSONBlob)
	newBlob, newIsBlob := incoming.(store.JSONBlob)
	if oldIsBlob && newIsBlob {
		if merged, ok := mergeJSON(oldBlob.Raw, newBlob.Raw); ok {
			return store.JSONBlob{Raw: merged}
		}
	}
	return incoming
}

func mergeJSON(old, incoming any) (any, bool) {
	oldMap, oldOK := old.(map[string]any)
	newMap, newOK := incoming.(map[string]any)
	if !oldOK || !newOK {
		return nil, false
	}
	merged := make(map[string]any, len(oldMap)+len(newMap))
	for k, v := range oldMap {
		merged[k] = v
	}
	for k, v := range newMap {
		if existing, ok := merged[k]; ok {
			if m, ok := mergeJSON(existing, v); ok {
				merged[k] = m
				continue
			}
		}
		merged[k] = v
	}
	return merged, true
}

// mergeRecord folds delta's fields into base (a clone of the record
// currently in the store, or a fresh empty record if there was none),
// recursing per field via mergeValue. delta's typename wins when non-empty.
func mergeRecord(base *store.Record, delta *store.Record) *store.Record {
	out := base.Clone()
	if out == nil {
		out = store.NewRecord("")
	}
	if delta.Typename != "" {
		out.Typename = delta.Typename
	}
	for fk, v := range delta.Fields {
		if existing, ok := out.Fields[fk]; ok {
			out.Fields[fk] = mergeValue(existing, v)
		} else {
			out.Fields[fk] = v
		}
	}
	return out
}
