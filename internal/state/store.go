package state

import "context"

// Store is a small string key/value store. The exchange client keeps its
// last signed nonce here so restarts never reuse one.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
