package memo

import "github.com/kittclouds/cachecore/internal/keyset"

// Tag identifies "field X of record Y" or just "record Y" for dependency
// tracking. Tags are interned *keyset.Entry values so that two lookups for
// the same logical dependency collapse onto one identity.
type Tag = *keyset.Entry

// frame accumulates the dependency tags touched by the memoized call
// currently executing. Frames nest: touching a tag inside a nested memoized
// call records it on the innermost frame, and that frame's whole tag set is
// unioned into its parent's on return, so a caller's cached entry also
// invalidates when anything a callee touched changes.
type frame struct {
	deps map[Tag]struct{}
}

// stack is a process-wide LIFO of active frames. The cache is synchronous
// and single-threaded (no goroutines interleave reads), so no locking is
// needed; re-entrancy via nested memoized calls is the only concurrency this
// stack needs to support, and push/pop already handles that.
var stack []*frame

// Touch registers tag against the innermost active frame, if any. Reads and
// writes outside of any memoized call (e.g. a bare Store.Get with no
// enclosing Memoized.Call) are no-ops.
func Touch(tag Tag) {
	if len(stack) == 0 {
		return
	}
	stack[len(stack)-1].deps[tag] = struct{}{}
}

// Active reports whether a memoization frame is currently on the stack.
func Active() bool {
	return len(stack) > 0
}

func pushFrame() *frame {
	f := &frame{deps: make(map[Tag]struct{})}
	stack = append(stack, f)
	return f
}

// popFrame pops the innermost frame, unions its dependency set into the new
// innermost frame (if any), and returns the popped frame so the caller can
// inspect exactly what it touched.
func popFrame() *frame {
	f := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	if len(stack) > 0 {
		parent := stack[len(stack)-1]
		for tag := range f.deps {
			parent.deps[tag] = struct{}{}
		}
	}
	return f
}
