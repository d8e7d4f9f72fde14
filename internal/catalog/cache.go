package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/metrics"
	"github.com/angelmondragon/fastmart-backend/pkg/pagination"
	"github.com/angelmondragon/fastmart-backend/pkg/redis"
	"github.com/angelmondragon/fastmart-backend/pkg/tracing"
)

const listingCacheName = "products_list"

// ListingCache is a cache-aside helper for product listing pages. Cache errors
// are logged and counted; callers always fall through to the loader.
type ListingCache struct {
	store     redis.Cache
	ttl       time.Duration
	opTimeout time.Duration
	scanCount int64
	metrics   *metrics.CacheMetrics
	logg      *logger.Logger
	tracer    trace.Tracer
	group     singleflight.Group

	// generation advances on every Invalidate. A load started under an older
	// generation never writes its page back, and fetches after a write never
	// join a load started before it. writeMu orders that check against the bump.
	generation atomic.Uint64
	writeMu    sync.RWMutex
}

// ListingCacheOptions tunes the listing cache.
type ListingCacheOptions struct {
	TTL       time.Duration
	OpTimeout time.Duration
	ScanCount int64
	Metrics   *metrics.CacheMetrics
}

// NewListingCache wraps store. A nil store disables caching.
func NewListingCache(store redis.Cache, logg *logger.Logger, opts ListingCacheOptions) *ListingCache {
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 150 * time.Millisecond
	}
	return &ListingCache{
		store:     store,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		scanCount: opts.ScanCount,
		metrics:   opts.Metrics,
		logg:      logg,
		tracer:    tracing.Tracer("catalog"),
	}
}

// Key returns the cache key for a normalized page.
func (c *ListingCache) Key(p pagination.Params) string {
	return c.store.CacheKey("products", "list", p.Key())
}

func (c *ListingCache) pattern() string {
	return c.store.CacheKey("products", "list") + ":*"
}

// Fetch returns the cached page for p or calls load and stores its result.
// Concurrent misses for the same key share one load.
func (c *ListingCache) Fetch(ctx context.Context, p pagination.Params, load func(context.Context) ([]ProductDTO, error)) ([]ProductDTO, error) {
	if c == nil || c.store == nil {
		return load(ctx)
	}

	key := c.Key(p)
	gen := c.generation.Load()
	ctx, span := c.tracer.Start(ctx, "catalog.listing_cache.fetch", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if page, ok := c.get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return page, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, _ := c.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		page, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.setIfCurrent(ctx, key, gen, page)
		return page, nil
	})
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	return v.([]ProductDTO), nil
}

// Invalidate drops every cached listing page. Loads already in flight keep
// their result for their own callers but do not repopulate the cache.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}
	c.writeMu.Lock()
	c.generation.Add(1)
	c.writeMu.Unlock()

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
	defer cancel()

	pattern := c.pattern()
	removed, err := c.store.DeleteMatching(opCtx, pattern, c.scanCount)
	if err != nil {
		c.metrics.Error(listingCacheName)
		c.logg.WarnErr(c.fields(ctx, pattern, "invalidate"), "cache invalidation failed", err)
		return
	}
	c.metrics.Invalidated(listingCacheName, removed)
}

func (c *ListingCache) get(ctx context.Context, key string) ([]ProductDTO, bool) {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.store.Get(opCtx, key)
	if err != nil {
		if redis.IsNil(err) {
			c.metrics.Miss(listingCacheName)
			return nil, false
		}
		c.metrics.Error(listingCacheName)
		c.logg.WarnErr(c.fields(ctx, key, "get"), "cache read failed", err)
		return nil, false
	}

	var page []ProductDTO
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		c.metrics.Error(listingCacheName)
		c.logg.WarnErr(c.fields(ctx, key, "decode"), "cache entry unreadable", err)
		return nil, false
	}
	c.metrics.Hit(listingCacheName)
	return page, true
}

// setIfCurrent stores page unless an Invalidate happened since gen was read.
// A write that lands first is removed by the DeleteMatching that follows the bump.
func (c *ListingCache) setIfCurrent(ctx context.Context, key string, gen uint64, page []ProductDTO) {
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()
	if c.generation.Load() != gen {
		c.logg.Info(c.fields(ctx, key, "set"), "cache write skipped: listing invalidated during load")
		return
	}
	c.set(ctx, key, page)
}

func (c *ListingCache) set(ctx context.Context, key string, page []ProductDTO) {
	payload, err := json.Marshal(page)
	if err != nil {
		c.logg.WarnErr(c.fields(ctx, key, "encode"), "cache entry not encodable", err)
		return
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
	defer cancel()
	if err := c.store.Set(opCtx, key, string(payload), c.ttl); err != nil {
		c.metrics.Error(listingCacheName)
		c.logg.WarnErr(c.fields(ctx, key, "set"), "cache write failed", err)
	}
}

func (c *ListingCache) fields(ctx context.Context, key, op string) context.Context {
	return c.logg.WithFields(ctx, map[string]any{"cache_key": key, "op": op})
}
