package repository

import "context"

// KeyValueStore is a private string store with atomic single-key reads and
// writes. ok is false when the key has never been written.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
}
