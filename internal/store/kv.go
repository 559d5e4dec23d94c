package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a project id is not in the store.
var ErrNotFound = errors.New("project not found")

// KV is the key-value medium the Store persists into.
// Get reports a missing key with found=false and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Publisher is implemented by media that can broadcast project events.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
