package rankingports

import "context"

// Cache provides memoization for deterministic lookups keyed by string.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (value V, ok bool)
	Set(ctx context.Context, key string, value V, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
