package adjacency

import (
	"context"
	"strconv"
	"time"

	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
)

// Cached memoizes lookups of another Adjacency. Sessions sharing an anchor
// hit the backing store once per TTL.
type Cached struct {
	next  ports.Adjacency
	cache ports.Cache[ports.Suggestions]
	ttl   time.Duration
}

// NewCached wraps next with cache.
func NewCached(next ports.Adjacency, cache ports.Cache[ports.Suggestions], ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// Adjacent returns the cached suggestions or fetches and stores them.
func (c *Cached) Adjacent(ctx context.Context, anchor string, limit int) (ports.Suggestions, error) {
	key := strconv.Itoa(limit) + "\x00" + anchor
	if s, ok := c.cache.Get(ctx, key); ok {
		return s, nil
	}

	s, err := c.next.Adjacent(ctx, anchor, limit)
	if err != nil {
		return ports.Suggestions{}, err
	}
	if err := c.cache.Set(ctx, key, s, int(c.ttl.Seconds())); err != nil {
		return ports.Suggestions{}, err
	}
	return s, nil
}

var _ ports.Adjacency = (*Cached)(nil)
