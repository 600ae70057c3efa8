package belief

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound indicates no node matched a lookup. Lookups return it
	// locally; it never aborts an operation.
	ErrNotFound = errors.New("not found")

	// ErrSerialization indicates a malformed NodeKey, node body, Bid or Bref.
	ErrSerialization = errors.New("serialization error")

	// ErrUnbalanced is returned by IsBalanced while invariant violations are
	// logged; Errors lists them. Invariant drift is collected, never raised
	// during mutation.
	ErrUnbalanced = errors.New("belief base is not balanced")
)

// NotFoundf builds a lookup miss error wrapping ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Serializationf builds a decode/parse error wrapping ErrSerialization.
func Serializationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSerialization, fmt.Sprintf(format, args...))
}

// UnresolvedNetworkError is returned when parsing a NodeKey required a
// network lookup the parser could not perform. It carries enough information
// for the caller to resolve the network against a cache and retry.
type UnresolvedNetworkError struct {
	NetworkRef string
	KeyType    string
	Value      string
}

func (e *UnresolvedNetworkError) Error() string {
	return fmt.Sprintf("unresolved network %q for %s key %q", e.NetworkRef, e.KeyType, e.Value)
}
