package writer

import "strconv"

// IDFunc computes a stable store id for a result object, or reports false
// when the object should be written inline under a generated id.
type IDFunc func(obj map[string]any, typename string) (id string, ok bool)

// DefaultIDOf is the cache's default identifier policy: "__typename:id" or
// "__typename:_id", per spec.md §6.
func DefaultIDOf(obj map[string]any, typename string) (string, bool) {
	if typename == "" {
		return "", false
	}
	if s, ok := scalarID(obj["id"]); ok {
		return typename + ":" + s, true
	}
	if s, ok := scalarID(obj["_id"]); ok {
		return typename + ":" + s, true
	}
	return "", false
}

func scalarID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
