package cache

import (
	"context"
	"time"

	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/pkg/dealerapi"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/bestcars/dealer-review/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	catalogCacheName   = "car_catalog"
	carModelsKeyPrefix = "cars:"
	cacheCheckPeriod   = time.Minute
)

// CatalogCache keeps car catalogs in memory, one entry per collaborator base URL.
// Dealer lookups and review posts are never cached.
type CatalogCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewCatalogCache creates a catalog cache. A non-positive ttl disables caching.
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		cache: gocache.New(ttl, cacheCheckPeriod),
		ttl:   ttl,
	}
}

// Enabled reports whether entries are kept at all
func (cc *CatalogCache) Enabled() bool {
	return cc != nil && cc.ttl > 0
}

// Wrap returns api with GetCarModels served from the cache. baseURL scopes the
// entries so catalogs of different deployments never mix.
func (cc *CatalogCache) Wrap(api dealerapi.API, baseURL string) dealerapi.API {
	if !cc.Enabled() {
		return api
	}
	return &cachedAPI{API: api, cache: cc, key: carModelsKeyPrefix + baseURL}
}

// Invalidate drops every cached catalog
func (cc *CatalogCache) Invalidate() {
	cc.cache.Flush()
	metrics.CacheSize.WithLabelValues(catalogCacheName).Set(0)
	logger.Info("Car catalog cache flushed")
}

// Size returns the number of cached catalogs
func (cc *CatalogCache) Size() int {
	return cc.cache.ItemCount()
}

func (cc *CatalogCache) get(key string) (*dealerapi.Result[[]models.CarModel], bool) {
	data, found := cc.cache.Get(key)
	if !found {
		metrics.CacheMisses.WithLabelValues(catalogCacheName).Inc()
		return nil, false
	}

	result, ok := data.(*dealerapi.Result[[]models.CarModel])
	if !ok {
		logger.Error("Invalid car catalog cache data type", zap.String("key", key))
		cc.cache.Delete(key)
		metrics.CacheMisses.WithLabelValues(catalogCacheName).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(catalogCacheName).Inc()
	// Callers get their own slice
	clone := *result
	clone.Payload = append([]models.CarModel(nil), result.Payload...)
	return &clone, true
}

func (cc *CatalogCache) set(key string, result *dealerapi.Result[[]models.CarModel]) {
	stored := *result
	stored.Payload = append([]models.CarModel(nil), result.Payload...)
	cc.cache.Set(key, &stored, cc.ttl)
	metrics.CacheSize.WithLabelValues(catalogCacheName).Set(float64(cc.cache.ItemCount()))
	logger.Debug("Car catalog cached", zap.String("key", key), zap.Int("count", len(stored.Payload)))
}

type cachedAPI struct {
	dealerapi.API
	cache *CatalogCache
	key   string
}

func (c *cachedAPI) GetCarModels(ctx context.Context) (*dealerapi.Result[[]models.CarModel], error) {
	if result, ok := c.cache.get(c.key); ok {
		return result, nil
	}

	result, err := c.API.GetCarModels(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.set(c.key, result)
	return result, nil
}
