package source

import (
	"errors"
	"fmt"
)

// ErrUnroutableQuery is returned by the registry when no registered adapter
// claims the query locator.
var ErrUnroutableQuery = errors.New("no adapter claims the query")

// FetchKind classifies a fetch failure for the reliability wrapper.
type FetchKind string

const (
	// FetchTransient covers timeouts, 5xx and rate limiting. Worth retrying.
	FetchTransient FetchKind = "transient"
	// FetchAuth means the source rejected our credentials. Never retried.
	FetchAuth FetchKind = "auth"
	// FetchStructural means the source answered but not in the shape we
	// expect, usually a site layout or API change. Never retried.
	FetchStructural FetchKind = "structural"
)

// FetchError is the failure type for all adapter operations.
type FetchError struct {
	Source string
	Kind   FetchKind
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed (%s): %s: %v", e.Source, e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAuthFailure reports whether err is a credential rejection by a source.
func IsAuthFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchAuth
}

// IsStructural reports whether err signals a site layout or API change.
func IsStructural(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchStructural
}

// Retryable reports whether a source error is worth retrying. Auth and
// structural failures are final; everything else (network blips, 5xx, 429)
// is transient.
func Retryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == FetchTransient
	}
	return true
}
