package session

import "context"

// Backend is a single session storage implementation.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns ErrNotFound for a missing key and for bytes that fail to decode.
	Get(ctx context.Context, key string) (Record, error)
	// GetAll returns ErrUnsupported when the backend cannot enumerate keys.
	GetAll(ctx context.Context) (map[string]Record, error)
	// Put returns nil, a Retryable error or a Fatal error.
	Put(ctx context.Context, key string, rec Record) error
	// Delete succeeds for keys that do not exist.
	Delete(ctx context.Context, key string) error
}
