package docstore

import "errors"

// Sentinel kinds for document store errors.
var (
	// ErrNotFound reports that no document exists for the given key.
	ErrNotFound = errors.New("document not found")

	// ErrConflict reports that a document already exists where a create
	// expected none.
	ErrConflict = errors.New("document already exists")

	// ErrUnavailable reports that the atomic update primitive itself failed
	// and the caller should retry or surface the failure.
	ErrUnavailable = errors.New("document store unavailable")
)
