// Package storage holds the blob store backends for document binaries.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrKeyNotFound is returned when no object exists under the requested key.
var ErrKeyNotFound = errors.New("storage: key not found")

// BlobStore abstracts the binary object store holding original and signed
// documents. Keys use forward slashes regardless of backend.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
