package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

type jsonCache struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
}

func newJSONCache() *jsonCache {
	return &jsonCache{values: make(map[string][]byte)}
}

func (c *jsonCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *jsonCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.values[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *jsonCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	c.values = make(map[string][]byte)
	c.mu.Unlock()
	return nil
}

func TestRememberLoadsOnceAndThenHits(t *testing.T) {
	cache := NewCacheService(newJSONCache(), NewMetricsService(), time.Minute, zap.NewNop(), true)
	var loads int32
	load := func(ctx context.Context) (map[string]int, error) {
		atomic.AddInt32(&loads, 1)
		return map[string]int{"pending": 3}, nil
	}

	v, hit, err := Remember(context.Background(), cache, "analytics:all:6", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, v["pending"])

	v, hit, err = Remember(context.Background(), cache, "analytics:all:6", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, v["pending"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestRememberSharesConcurrentMisses(t *testing.T) {
	cache := NewCacheService(newJSONCache(), nil, time.Minute, zap.NewNop(), true)
	release := make(chan struct{})
	var loads int32
	load := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 7, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Remember(context.Background(), cache, "analytics:all:3", 0, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&loads), int32(callers))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&loads), int32(1))
}

func TestRememberDegradesOnBackendError(t *testing.T) {
	repo := newJSONCache()
	repo.getErr = errors.New("connection refused")
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	v, hit, err := Remember(context.Background(), cache, "k", 0, func(ctx context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v)
}

func TestRememberPropagatesLoadErrorAndSkipsDisabledCache(t *testing.T) {
	repo := newJSONCache()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	assert.False(t, cache.Enabled())

	_, _, err := Remember(context.Background(), cache, "k", 0, func(ctx context.Context) (int, error) { return 0, appErrors.ErrInternal })
	require.ErrorIs(t, err, appErrors.ErrInternal)

	v, _, err := Remember(context.Background(), cache, "k", 0, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Empty(t, repo.values)

	var nilCache *CacheService
	v, hit, err := Remember(context.Background(), nilCache, "k", 0, func(ctx context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, v)
}

func TestRememberDropsResultLoadedAcrossInvalidate(t *testing.T) {
	cache := NewCacheService(newJSONCache(), nil, time.Minute, zap.NewNop(), true)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan int)
	go func() {
		v, _, err := Remember(context.Background(), cache, "analytics:all:6", 0, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	require.NoError(t, cache.Invalidate(context.Background(), "analytics:*"))
	close(release)
	assert.Equal(t, 1, <-done)

	v, hit, err := Remember(context.Background(), cache, "analytics:all:6", 0, func(ctx context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, v)
}

func TestRememberSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	cache := NewCacheService(newJSONCache(), nil, time.Minute, zap.NewNop(), true)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	load := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return 5, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error)
	go func() {
		_, _, err := Remember(firstCtx, cache, "analytics:all:6", 0, load)
		firstErr <- err
	}()
	<-started

	second := make(chan int)
	go func() {
		v, _, err := Remember(context.Background(), cache, "analytics:all:6", 0, load)
		assert.NoError(t, err)
		second <- v
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	time.Sleep(10 * time.Millisecond)
	close(release)
	assert.Equal(t, 5, <-second)
}
