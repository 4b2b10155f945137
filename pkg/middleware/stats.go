package middleware

import (
	"context"
	"time"

	"github.com/meshcache/meshcache"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/stats"
)

// StatsCollectorMiddleware collects per-method call counts and durations. It
// can and should reuse the same stats collector as the coordinator.
type StatsCollectorMiddleware struct {
	next           meshcache.Service
	statsCollector stats.ICollector
}

// NewStatsCollectorMiddleware returns a new StatsCollectorMiddleware.
func NewStatsCollectorMiddleware(next meshcache.Service, statsCollector stats.ICollector) meshcache.Service {
	return &StatsCollectorMiddleware{next: next, statsCollector: statsCollector}
}

// Get collects stats for the Get method.
func (mw StatsCollectorMiddleware) Get(ctx context.Context, key string) (any, bool) {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_get_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_get_count", 1)
	}()

	return mw.next.Get(ctx, key)
}

// Set collects stats for the Set method.
func (mw StatsCollectorMiddleware) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_set_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_set_count", 1)
	}()

	return mw.next.Set(ctx, key, value, expiration)
}

// GetOrSet collects stats for the GetOrSet method.
func (mw StatsCollectorMiddleware) GetOrSet(ctx context.Context, key string, value any, expiration time.Duration) (any, error) {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_get_or_set_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_get_or_set_count", 1)
	}()

	return mw.next.GetOrSet(ctx, key, value, expiration)
}

// GetWithInfo collects stats for the GetWithInfo method.
func (mw StatsCollectorMiddleware) GetWithInfo(ctx context.Context, key string) (*cache.Item, bool) {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_get_with_info_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_get_with_info_count", 1)
	}()

	return mw.next.GetWithInfo(ctx, key)
}

// GetMultiple collects stats for the GetMultiple method.
func (mw StatsCollectorMiddleware) GetMultiple(ctx context.Context, keys ...string) (map[string]any, map[string]error) {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_get_multiple_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_get_multiple_count", 1)
	}()

	return mw.next.GetMultiple(ctx, keys...)
}

// List collects stats for the List method.
func (mw StatsCollectorMiddleware) List(ctx context.Context) ([]*cache.Item, error) {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_list_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_list_count", 1)
	}()

	return mw.next.List(ctx)
}

// Remove collects stats for the Remove method.
func (mw StatsCollectorMiddleware) Remove(ctx context.Context, keys ...string) error {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_remove_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_remove_count", 1)
	}()

	return mw.next.Remove(ctx, keys...)
}

// Clear collects stats for the Clear method.
func (mw StatsCollectorMiddleware) Clear(ctx context.Context) error {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_clear_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_clear_count", 1)
	}()

	return mw.next.Clear(ctx)
}

// Capacity returns the capacity of the cache.
func (mw StatsCollectorMiddleware) Capacity() int {
	return mw.next.Capacity()
}

// Count returns the count of the items in the cache.
func (mw StatsCollectorMiddleware) Count(ctx context.Context) int {
	return mw.next.Count(ctx)
}

// GetStats returns the stats of the cache.
func (mw StatsCollectorMiddleware) GetStats() stats.Stats {
	return mw.next.GetStats()
}

// Stop collects stats for the Stop method and stops the cache.
func (mw StatsCollectorMiddleware) Stop(ctx context.Context) error {
	start := time.Now()

	defer func() {
		mw.statsCollector.Timing("meshcache_stop_duration", time.Since(start).Nanoseconds())
		mw.statsCollector.Incr("meshcache_stop_count", 1)
	}()

	return mw.next.Stop(ctx)
}
