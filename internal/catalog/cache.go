package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/winestore/internal/domain"
	"github.com/utafrali/winestore/pkg/slug"
)

const cachePrefix = "catalog:"

var cacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_catalog_cache_requests_total",
		Help: "Catalog cache lookups by operation and result (hit, miss, error)",
	},
	[]string{"op", "result"},
)

// CachedReader is a read-through Redis cache in front of a Reader.
// Concurrent misses on the same key share one upstream call.
type CachedReader struct {
	next   Reader
	rdb    redis.UniversalClient
	ttl    time.Duration
	sf     singleflight.Group
	logger *slog.Logger
}

// NewCachedReader wraps next. Entries live for ttl plus up to 10% jitter.
func NewCachedReader(next Reader, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedReader {
	return &CachedReader{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// List returns a cached page of products.
func (c *CachedReader) List(ctx context.Context, q ListQuery) ([]domain.Product, error) {
	key := fmt.Sprintf("%slist:%d:%d:%s:%s", cachePrefix, q.Page, q.PerPage, slug.Fold(q.Category), slug.Fold(q.Search))
	return readThrough(ctx, c, "list", key, func(ctx context.Context) ([]domain.Product, error) {
		return c.next.List(ctx, q)
	})
}

// Get returns a cached product.
func (c *CachedReader) Get(ctx context.Context, id int64) (*domain.Product, error) {
	key := cachePrefix + "product:" + strconv.FormatInt(id, 10)
	return readThrough(ctx, c, "get", key, func(ctx context.Context) (*domain.Product, error) {
		return c.next.Get(ctx, id)
	})
}

// Invalidate drops a cached product.
func (c *CachedReader) Invalidate(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, cachePrefix+"product:"+strconv.FormatInt(id, 10)).Err()
}

func (c *CachedReader) expiry() time.Duration {
	jitter := c.ttl / 10
	if jitter <= 0 {
		return c.ttl
	}
	return c.ttl + rand.N(jitter)
}

func readThrough[T any](ctx context.Context, c *CachedReader, op, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			cacheRequestsTotal.WithLabelValues(op, "hit").Inc()
			return v, nil
		}
		c.logger.WarnContext(ctx, "discarding unreadable catalog cache entry", slog.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		cacheRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logger.WarnContext(ctx, "catalog cache unavailable, reading through",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	cacheRequestsTotal.WithLabelValues(op, "miss").Inc()

	// The fetch is shared, so it must outlive whichever caller started it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := c.sf.Do(key, func() (any, error) {
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(v)
		if err != nil {
			return v, nil
		}
		if err := c.rdb.Set(fetchCtx, key, data, c.expiry()).Err(); err != nil {
			c.logger.WarnContext(fetchCtx, "failed to write catalog cache",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		c.logger.DebugContext(ctx, "shared catalog fetch", slog.String("key", key))
	}
	return v.(T), nil
}
