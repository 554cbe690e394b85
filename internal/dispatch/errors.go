package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jask/taskcards/internal/store"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	// StoreUnavailable covers transport failures, timeouts and panics.
	StoreUnavailable ErrorKind = iota
	// InvalidSelection means the key produced a filter that does not compile.
	InvalidSelection
	// ResolutionFailure means a link target could not be resolved.
	ResolutionFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidSelection:
		return "invalid selection"
	case ResolutionFailure:
		return "resolution failure"
	default:
		return "store unavailable"
	}
}

// FetchError is the failure result of one fetch cycle.
type FetchError struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// compileOrRunError classifies failures outside link resolution.
func compileOrRunError(key string, err error) *FetchError {
	kind := StoreUnavailable
	if errors.Is(err, store.ErrInvalidQuery) {
		kind = InvalidSelection
	}
	return &FetchError{Kind: kind, Key: key, Err: err}
}

// resolveError classifies failures while resolving a link target.
func resolveError(key string, targetID int, err error) *FetchError {
	kind := ResolutionFailure
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = StoreUnavailable
	}
	return &FetchError{Kind: kind, Key: key, Err: fmt.Errorf("resolve work item %d: %w", targetID, err)}
}

// asFetchError wraps any error that escaped the executor untagged.
func asFetchError(key string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return compileOrRunError(key, err)
}
