// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. The windowing engine uses the kinds to decide whether a
// failure is recovered locally (count probes), scoped to one chunk (window loads) or
// reported at the point of use (configuration, query rewriting).
//
// The package supports wrapping underlying errors while maintaining error kind information,
// making it easier to handle different types of failures appropriately.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ProbeTimeout indicates the row-count probe exceeded its deadline.
	ProbeTimeout Kind = "probe_timeout"
	// ProbeFailure indicates the backend returned an error for the row-count probe.
	ProbeFailure Kind = "probe_failure"
	// WindowLoadFailure indicates a chunk fetch failed.
	WindowLoadFailure Kind = "window_load_failure"
	// EagerLoadFailure indicates the full-result load failed.
	EagerLoadFailure Kind = "eager_load_failure"
	// InvalidConfiguration indicates a non-positive size, threshold or timeout.
	InvalidConfiguration Kind = "invalid_configuration"
	// RewriteFailure indicates a base query that cannot be wrapped.
	RewriteFailure Kind = "rewrite_failure"
	// ConnectFailed indicates the database could not be opened or pinged.
	ConnectFailed Kind = "connect_failed"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "".
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
