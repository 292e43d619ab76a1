package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/mgathogo/lendhub/internal/observability"
	"github.com/redis/go-redis/v9"
)

// Catalog caches rendered book-listing responses. Invalidation is by
// version bump: every mutation to any book increments a namespace
// counter, so stale pages simply stop being addressable and expire on
// their own TTL. No per-key deletes needed.
type Catalog struct {
	rdb  *redis.Client
	ttl  time.Duration
	prom *observability.Prom
}

const versionKey = "catalog:version"

func NewCatalog(client *Client, ttl time.Duration, prom *observability.Prom) *Catalog {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Catalog{
		rdb:  client.Raw(),
		ttl:  ttl,
		prom: prom,
	}
}

func (c *Catalog) key(ctx context.Context, suffix string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey).Int64()

	if err != nil && err != redis.Nil {
		return "", err
	}

	return fmt.Sprintf("catalog:%d:%s", ver, suffix), nil
}

// Get returns the cached response bytes for a listing key, if present.
// Any redis failure is reported as a miss; the caller falls through to
// the database.
func (c *Catalog) Get(ctx context.Context, suffix string) ([]byte, bool) {
	key, err := c.key(ctx, suffix)

	if err != nil {
		return nil, false
	}

	val, err := c.rdb.Get(ctx, key).Bytes()

	if err != nil {
		if c.prom != nil {
			c.prom.CacheMisses.WithLabelValues("catalog").Inc()
		}
		return nil, false
	}

	if c.prom != nil {
		c.prom.CacheHits.WithLabelValues("catalog").Inc()
	}

	return val, true
}

func (c *Catalog) Set(ctx context.Context, suffix string, payload []byte) {
	key, err := c.key(ctx, suffix)

	if err != nil {
		return
	}

	// best effort; a failed set just means the next reader hits the DB
	_ = c.rdb.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate bumps the namespace version after any book mutation.
func (c *Catalog) Invalidate(ctx context.Context) {
	_ = c.rdb.Incr(ctx, versionKey).Err()
}
