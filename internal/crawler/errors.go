package crawler

import (
	"errors"
	"fmt"
)

// FetchErrorKind tags failures from the fetch pipeline so the worker loop
// can dispatch on them with a switch instead of error-type inspection.
type FetchErrorKind string

// Fetch failure classes.
const (
	// KindTransient marks failures the pipeline retries internally:
	// timeouts, connection errors, 5xx responses.
	KindTransient FetchErrorKind = "transient"
	// KindTerminal marks failures with retries exhausted; the URL gets a
	// failed page record and is marked visited.
	KindTerminal FetchErrorKind = "terminal"
	// KindRenderer marks the rendering backend becoming unusable; the
	// owning worker recycles its handle and the URL returns to the pool.
	KindRenderer FetchErrorKind = "renderer"
)

// FetchError is the tagged failure type returned by the fetch pipeline.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrorKind extracts the FetchErrorKind from an error chain, defaulting to
// terminal for untagged errors.
func ErrorKind(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTerminal
}

// ErrRendererUnavailable is the sentinel cause used when rendered
// acquisition is requested but no rendering backend can be built.
var ErrRendererUnavailable = errors.New("renderer unavailable")
