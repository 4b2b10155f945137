package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/stats"
	"github.com/meshcache/meshcache/pkg/store"
)

func newTestStore(t *testing.T, opts ...store.Option[store.InMemory]) store.IStore[store.InMemory] {
	t.Helper()

	s, err := store.NewInMemory(opts...)
	assert.Nil(t, err)

	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	return s
}

func TestInMemorySetGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Set(ctx, &cache.Item{Key: "k", Value: "v"})
	assert.Nil(t, err)

	item, ok := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", item.Value)
	assert.True(t, item.Size > 0)
	assert.Equal(t, 1, s.Count(ctx))
}

func TestInMemoryRejectsInvalidItems(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Set(ctx, &cache.Item{Key: "", Value: "v"})
	if !errors.Is(err, sentinel.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	err = s.Set(ctx, &cache.Item{Key: "k", Value: nil})
	if !errors.Is(err, sentinel.ErrNilValue) {
		t.Fatalf("expected ErrNilValue, got %v", err)
	}

	err = s.Set(ctx, &cache.Item{Key: "k", Value: "v", Expiration: -time.Second})
	if !errors.Is(err, sentinel.ErrInvalidExpiration) {
		t.Fatalf("expected ErrInvalidExpiration, got %v", err)
	}
}

func TestInMemoryCapacityBoundSingleVictim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithCapacity[store.InMemory](2), store.WithEvictionAlgorithm("lru"))

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "a", Value: 1}))
	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "b", Value: 2}))

	// Read "a" so "b" is the least recently used entry.
	_, ok := s.Get(ctx, "a")
	assert.True(t, ok)

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "c", Value: 3}))

	assert.Equal(t, 2, s.Count(ctx))

	_, ok = s.Get(ctx, "b")
	assert.False(t, ok)

	_, ok = s.Get(ctx, "a")
	assert.True(t, ok)

	_, ok = s.Get(ctx, "c")
	assert.True(t, ok)
}

func TestInMemoryOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithCapacity[store.InMemory](2))

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "a", Value: 1}))
	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "b", Value: 2}))
	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "a", Value: 10}))

	assert.Equal(t, 2, s.Count(ctx))

	item, ok := s.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 10, item.Value)
}

func TestInMemoryLazyExpiration(t *testing.T) {
	ctx := context.Background()
	// Sweep disabled: only access purges.
	s := newTestStore(t, store.WithSweepInterval(0))

	err := s.Set(ctx, &cache.Item{Key: "fleeting", Value: "v", Expiration: 10 * time.Millisecond})
	assert.Nil(t, err)

	time.Sleep(20 * time.Millisecond)

	_, ok := s.Get(ctx, "fleeting")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count(ctx))
}

func TestInMemorySweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithSweepInterval(10*time.Millisecond))

	err := s.Set(ctx, &cache.Item{Key: "fleeting", Value: "v", Expiration: 5 * time.Millisecond})
	assert.Nil(t, err)
	err = s.Set(ctx, &cache.Item{Key: "stable", Value: "v"})
	assert.Nil(t, err)

	deadline := time.Now().Add(time.Second)
	for s.Count(ctx) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The sweep removed the expired entry without any access.
	assert.Equal(t, 1, s.Count(ctx))
}

func TestInMemoryListSkipsExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.WithSweepInterval(0))

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "gone", Value: "v", Expiration: time.Millisecond}))
	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "kept", Value: "v"}))

	time.Sleep(5 * time.Millisecond)

	items, err := s.List(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "kept", items[0].Key)
}

func TestInMemoryClearAndRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := range 5 {
		assert.Nil(t, s.Set(ctx, &cache.Item{Key: fmt.Sprintf("k%d", i), Value: i}))
	}

	assert.Nil(t, s.Remove(ctx, "k0", "k1"))
	assert.Equal(t, 3, s.Count(ctx))

	assert.Nil(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Count(ctx))
}

func TestInMemoryRecordsEvictionAndExpirationStats(t *testing.T) {
	ctx := context.Background()
	collector := stats.NewHistogramCollector()

	s := newTestStore(t,
		store.WithCapacity[store.InMemory](1),
		store.WithStatsCollector(collector),
		store.WithSweepInterval(0),
	)

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "a", Value: 1}))
	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "b", Value: 2}))

	evictions := collector.GetStats()[string(stats.MetricEvictions)]
	assert.NotNil(t, evictions)
	assert.Equal(t, int64(1), evictions.Sum)

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "fleeting", Value: 3, Expiration: 5 * time.Millisecond}))
	time.Sleep(10 * time.Millisecond)

	_, ok := s.Get(ctx, "fleeting")
	assert.False(t, ok)

	expirations := collector.GetStats()[string(stats.MetricExpirations)]
	assert.NotNil(t, expirations)
	assert.Equal(t, int64(1), expirations.Sum)
}

func TestInMemorySweepRecordsExpirationStats(t *testing.T) {
	ctx := context.Background()
	collector := stats.NewHistogramCollector()

	s := newTestStore(t,
		store.WithStatsCollector(collector),
		store.WithSweepInterval(10*time.Millisecond),
	)

	assert.Nil(t, s.Set(ctx, &cache.Item{Key: "fleeting", Value: 1, Expiration: 5 * time.Millisecond}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if stat := collector.GetStats()[string(stats.MetricExpirations)]; stat != nil && stat.Sum >= 1 {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("sweep never recorded the expiration")
}

func TestInMemoryInvalidCapacity(t *testing.T) {
	_, err := store.NewInMemory(store.WithCapacity[store.InMemory](-1))
	if !errors.Is(err, sentinel.ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
}
