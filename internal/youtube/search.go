package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSearchLimit       = 10
	MaxSearchLimit           = 50
	DefaultSearchCacheTTL    = 30 * time.Minute
	DefaultMemoryCacheSize   = 1000
	DefaultSearchCallTimeout = 10 * time.Second

	karaokeSuffix = " karaoke"
)

type SearchBackend interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Cache stores encoded search results. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Searcher biases queries toward karaoke tracks and caches the results.
// Concurrent misses for the same key share one upstream call.
type Searcher struct {
	backend SearchBackend
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

func NewSearcher(backend SearchBackend, cache Cache, ttl time.Duration, logger *zap.Logger) *Searcher {
	if ttl <= 0 {
		ttl = DefaultSearchCacheTTL
	}
	return &Searcher{backend: backend, cache: cache, ttl: ttl, logger: logger}
}

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	q := query + karaokeSuffix
	key := fmt.Sprintf("%s:%d", strings.ToLower(q), limit)

	if cached, ok := s.lookup(ctx, key); ok {
		return cached, nil
	}

	// The flight is shared, so it must outlive whichever caller started it.
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultSearchCallTimeout)
		defer cancel()

		results, err := s.backend.Search(sctx, q, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search youtube: %w", err)
		}
		s.store(sctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]SearchResult), nil
}

func (s *Searcher) lookup(ctx context.Context, key string) ([]SearchResult, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return results, true
}

func (s *Searcher) store(ctx context.Context, key string, results []SearchResult) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// MemoryCache is a process-scoped Cache for hosts without Redis. It holds at
// most size entries and drops expired ones in the background.
type MemoryCache struct {
	items *ttlcache.Cache[string, []byte]
}

func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	items := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](DefaultSearchCacheTTL),
		ttlcache.WithCapacity[string, []byte](uint64(size)),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryCache{items: items}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.items.Set(key, value, ttl)
	return nil
}

// Len reports the number of entries currently held.
func (c *MemoryCache) Len() int {
	return c.items.Len()
}

// Close stops the expiry loop. It must be called at most once.
func (c *MemoryCache) Close() {
	c.items.Stop()
}
