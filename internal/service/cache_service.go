package service

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

// sharedLoadTimeout bounds a load that outlives the caller that started it.
const sharedLoadTimeout = 30 * time.Second

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a read-through cache for derived views. Backend errors are
// logged and degrade to a miss so reads never fail because of the cache.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	loads      singleflight.Group
	generation atomic.Uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get decodes a cached entry into dest and reports whether it was present.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key. A zero ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every entry matching the glob pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	s.generation.Add(1)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// Remember returns the cached value for key or computes it with load and
// stores the result. Concurrent misses on the same key share one load, which
// runs detached from any single caller's cancellation. A result computed
// across an Invalidate is returned but never stored. The bool result is true
// on a cache hit.
func Remember[T any](ctx context.Context, s *CacheService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	var cached T
	if s.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	if !s.Enabled() {
		v, err := load(ctx)
		return v, false, err
	}

	gen := s.generation.Load()
	flight := key + "#" + strconv.FormatUint(gen, 10)
	ch := s.loads.DoChan(flight, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		fresh, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.store(loadCtx, key, fresh, ttl, gen)
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

// store writes a loaded value unless an invalidation happened since gen was
// read. An invalidation racing the write removes the entry again.
func (s *CacheService) store(ctx context.Context, key string, value interface{}, ttl time.Duration, gen uint64) {
	if s.generation.Load() != gen {
		return
	}
	s.Set(ctx, key, value, ttl)
	if s.generation.Load() != gen {
		if err := s.repo.DeleteByPattern(ctx, key); err != nil {
			s.logger.Warn("cache evict failed", zap.String("key", key), zap.Error(err))
		}
	}
}
