package reader

import "reflect"

// refEqual is "===": true for equal scalars/strings/bools/nils, and for
// maps/slices only when both operands are literally the same backing
// allocation (or both are empty). This underlies the reader's referential-equality preservation
// (spec.md §4.7) — reusing a previous subtree wholesale is only safe when
// every value inside it really is the same object a caller may already hold
// a reference to, not merely one that looks the same.
func refEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && sameBacking(av, bv)
	case []any:
		bv, ok := b.([]any)
		return ok && sameBacking(av, bv)
	default:
		bv := b
		defer func() { recover() }() // guard against comparing two uncomparable types we didn't anticipate
		return av == bv
	}
}

func sameBacking(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		return false
	}
	if va.Len() == 0 && vb.Len() == 0 {
		return true
	}
	return va.Pointer() == vb.Pointer()
}

// sameShape reports whether out and previous have the same key set and every
// value compares refEqual — the object-level half of spec.md §4.7's
// equality-preservation rule.
func sameShape(out, previous map[string]any) bool {
	if previous == nil || len(out) != len(previous) {
		return false
	}
	for k, v := range out {
		pv, ok := previous[k]
		if !ok || !refEqual(v, pv) {
			return false
		}
	}
	return true
}

// identicalLists is the array half: same length, each element either
// refEqual or (for nested arrays) recursively identicalLists.
func identicalLists(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if refEqual(a[i], b[i]) {
			continue
		}
		aList, aOK := a[i].([]any)
		bList, bOK := b[i].([]any)
		if aOK && bOK && identicalLists(aList, bList) {
			continue
		}
		return false
	}
	return true
}
