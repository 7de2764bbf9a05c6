package store

import (
	"context"
	"io"
)

// Backend is the storage substrate beneath the artifact store. A Backend
// knows nothing about fingerprints, file types, or aliasing — it is a flat
// key/value blob store.
type Backend interface {
	// Write stores the contents of r under key, overwriting any existing
	// object at that key.
	Write(ctx context.Context, key string, r io.Reader) error

	// Open returns a reader for the object at key. Callers must Close it.
	// Returns an error wrapping ErrNotFound if key does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}
