package documents

import "errors"

var (
	// ErrNotFound is returned when no audit record exists for a document id.
	ErrNotFound = errors.New("documents: audit record not found")

	// ErrDuplicateRecord is returned when an audit record already exists for
	// a document id.
	ErrDuplicateRecord = errors.New("documents: audit record already exists")

	// ErrAlreadySigned is returned when a signed document is signed again.
	ErrAlreadySigned = errors.New("documents: document already signed")

	// ErrInvalidRequest wraps caller-side validation failures.
	ErrInvalidRequest = errors.New("documents: invalid request")
)
