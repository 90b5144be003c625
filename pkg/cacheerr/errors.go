// Package cacheerr defines the error kinds raised by the cache's writer,
// reader, and canonical-key builder, plus a pluggable warning Reporter.
package cacheerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds — test with errors.Is.
var (
	// ErrMissingField is returned by the reader when a required field is
	// absent from the store and partial data is not allowed.
	ErrMissingField = errors.New("cache: missing field")
	// ErrIdDowngrade is returned by the writer when a write would replace
	// a record that already has a real id with a generated one.
	ErrIdDowngrade = errors.New("cache: id downgrade")
	// ErrNoFragmentName is returned by ReadFragment/WriteFragment when a
	// fragment document defines more than one fragment and the caller did
	// not say which one to use.
	ErrNoFragmentName = errors.New("cache: no fragment name")
	// ErrCircularQueryKey names a cycle in a query AST seen by the
	// canonical key builder. It is declared as a reserved kind; nothing in
	// this module currently returns it, since parsed ASTs cannot be cyclic.
	ErrCircularQueryKey = errors.New("cache: circular query key")
	// ErrEvictionUnsupported is returned by Evict, which this cache does
	// not implement (spec.md Non-goals).
	ErrEvictionUnsupported = errors.New("cache: eviction unsupported")
)

// WriteError wraps a writer failure together with a stringified copy of the
// query document being written, per spec.md §7.
type WriteError struct {
	Err      error
	Document string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cache: write failed: %v\nquery: %s", e.Err, e.Document)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewWriteError wraps err with the document's textual form.
func NewWriteError(err error, document string) *WriteError {
	return &WriteError{Err: err, Document: document}
}

// MissingFieldError reports one or more fields the reader could not
// resolve with partial data disallowed.
type MissingFieldError struct {
	Path []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingField, joinPath(e.Path))
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// Reporter receives non-fatal warnings. The only warning currently emitted
// is the writer's report of a selected field missing from a result; the
// reader does not report tolerable missing fields, and no configuration key
// produces a warning. It must never be called from a
// concurrent goroutine the cache itself didn't spawn, and it must not
// panic — the default Reporter is a silent no-op.
type Reporter interface {
	Warn(msg string, fields ...any)
}

// NoopReporter discards every warning.
type NoopReporter struct{}

// Warn implements Reporter.
func (NoopReporter) Warn(string, ...any) {}
