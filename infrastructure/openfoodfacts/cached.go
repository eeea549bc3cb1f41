package openfoodfacts

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

// cacheKeyPrefix namespaces product records in the shared cache.
const cacheKeyPrefix = "off:product:"

// CachedLookup decorates a ProductLookup with a read-through cache. Cache
// failures degrade to direct lookups; they never fail the request.
type CachedLookup struct {
	inner ports.ProductLookup
	cache ports.CacheStore
	ttl   time.Duration
	log   *zap.Logger
}

var _ ports.ProductLookup = (*CachedLookup)(nil)

// NewCachedLookup wraps inner with a read-through cache. Records are cached
// for ttl; a zero ttl caches without expiration.
func NewCachedLookup(inner ports.ProductLookup, cache ports.CacheStore, ttl time.Duration, log *zap.Logger) *CachedLookup {
	return &CachedLookup{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.Named("product_cache"),
	}
}

// Lookup serves the record from cache when present, otherwise delegates to
// the inner lookup and caches the result. Not-found outcomes are not cached:
// products appear in the database over time.
func (c *CachedLookup) Lookup(ctx context.Context, barcode string) (*domain.BarcodeRecord, error) {
	key := cacheKeyPrefix + barcode

	if data, found, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("cache read failed", zap.String("barcode", barcode), zap.Error(err))
	} else if found {
		var record domain.BarcodeRecord
		if err := json.Unmarshal(data, &record); err == nil {
			return &record, nil
		}
		// Stale or corrupt entry; drop it and fall through to the source.
		if err := c.cache.Delete(ctx, key); err != nil {
			c.log.Warn("cache evict failed", zap.String("barcode", barcode), zap.Error(err))
		}
	}

	record, err := c.inner.Lookup(ctx, barcode)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(record); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.log.Warn("cache write failed", zap.String("barcode", barcode), zap.Error(err))
		}
	}

	return record, nil
}
