// internal/storage/backend.go
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by backends that cannot serve requests at all.
var ErrUnavailable = errors.New("storage: backend unavailable")

// Backend is a key-value substrate holding serialized blobs.
type Backend interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Ping checks the backend can be used.
	Ping(ctx context.Context) error
	Close() error
}

// Watcher is implemented by backends that can report changes to a key made
// through other handles. A handle never observes its own writes.
type Watcher interface {
	// Watch calls onChange (from a background goroutine) every time another
	// handle changes key. stop ends the watch and is safe to call more than once.
	Watch(ctx context.Context, key string, onChange func()) (stop func(), err error)
}
