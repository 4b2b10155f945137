package store

import (
	"context"
	"sync"
	"time"

	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/eviction"
	"github.com/meshcache/meshcache/pkg/stats"
)

// InMemory stores entries in a sharded concurrent map. Capacity pressure is
// relieved through the configured eviction policy, one victim per insert, and
// expired entries are removed both lazily on access and by a background sweep.
type InMemory struct {
	items           cache.ConcurrentMap
	itemPoolManager *cache.ItemPoolManager
	policy          eviction.IAlgorithm
	policyName      string
	capacity        int
	sweepInterval   time.Duration
	statsCollector  stats.ICollector

	evictMu  sync.Mutex // serializes capacity checks so one insert claims one victim
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewInMemory creates a new in-memory shard store with the given options.
func NewInMemory(opts ...Option[InMemory]) (IStore[InMemory], error) {
	storeInstance := &InMemory{
		items:           cache.New(),
		itemPoolManager: cache.NewItemPoolManager(),
		policyName:      constants.DefaultEvictionAlgorithm,
		sweepInterval:   constants.DefaultSweepInterval,
		stopCh:          make(chan struct{}),
	}
	// Apply the store options
	ApplyOptions(storeInstance, opts...)

	if storeInstance.capacity < 0 {
		return nil, sentinel.ErrInvalidCapacity
	}

	policy, err := eviction.NewAlgorithmRegistry().New(storeInstance.policyName, storeInstance.capacity)
	if err != nil {
		return nil, err
	}

	storeInstance.policy = policy

	if storeInstance.sweepInterval > 0 {
		go storeInstance.sweepLoop()
	}

	return storeInstance, nil
}

// Capacity returns the maximum number of entries the store holds.
func (inm *InMemory) Capacity() int { return inm.capacity }

// SetCapacity sets the maximum number of entries the store holds.
func (inm *InMemory) SetCapacity(capacity int) {
	if capacity < 0 {
		return
	}

	inm.capacity = capacity
}

// Count returns the number of entries currently stored.
func (inm *InMemory) Count(_ context.Context) int { return inm.items.Count() }

// Get retrieves the entry with the given key. An expired entry is purged on
// access (lazy expiration) and reported as a miss.
func (inm *InMemory) Get(_ context.Context, key string) (*cache.Item, bool) {
	item, ok := inm.items.Get(key)
	if !ok {
		return nil, false
	}

	if item.Expired() {
		inm.items.Remove(key)
		inm.policy.Delete(key)
		inm.incrMetric(stats.MetricExpirations, 1)

		return nil, false
	}

	item.Touch()
	inm.policy.Touch(key)

	return item, true
}

// Set adds or overwrites an entry. When the store is at capacity and the key is
// new, the eviction policy chooses exactly one victim before the insert lands.
func (inm *InMemory) Set(_ context.Context, item *cache.Item) error {
	err := item.Valid()
	if err != nil {
		inm.itemPoolManager.Put(item)

		return err
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	item.LastAccess = time.Now()

	err = item.SetSize()
	if err != nil {
		return err
	}

	inm.evictMu.Lock()

	if inm.capacity > 0 && !inm.items.Has(item.Key) && inm.items.Count() >= inm.capacity {
		if victim, ok := inm.policy.EvictOne(); ok {
			inm.items.Remove(victim)
			inm.incrMetric(stats.MetricEvictions, 1)
		}
	}

	inm.items.Set(item.Key, item)
	inm.policy.Set(item.Key, item.ExpiresAt())
	inm.evictMu.Unlock()

	return nil
}

// Remove deletes the entries with the given keys.
func (inm *InMemory) Remove(_ context.Context, keys ...string) error {
	for _, key := range keys {
		inm.items.Remove(key)
		inm.policy.Delete(key)
	}

	return nil
}

// List returns a snapshot of all non-expired entries.
func (inm *InMemory) List(_ context.Context) ([]*cache.Item, error) {
	items := make([]*cache.Item, 0, inm.items.Count())

	for tuple := range inm.items.IterBuffered() {
		if tuple.Val.Expired() {
			continue
		}

		cloned := tuple.Val
		items = append(items, &cloned)
	}

	return items, nil
}

// Clear removes all entries.
func (inm *InMemory) Clear(_ context.Context) error {
	for _, key := range inm.items.Keys() {
		inm.policy.Delete(key)
	}

	inm.items.Clear()

	return nil
}

// EvictOne applies the eviction policy once, returning the victim key.
func (inm *InMemory) EvictOne(_ context.Context) (string, bool) {
	inm.evictMu.Lock()
	defer inm.evictMu.Unlock()

	victim, ok := inm.policy.EvictOne()
	if !ok {
		return "", false
	}

	inm.items.Remove(victim)
	inm.incrMetric(stats.MetricEvictions, 1)

	return victim, true
}

// Stop terminates the expiration sweep.
func (inm *InMemory) Stop(_ context.Context) error {
	inm.stopOnce.Do(func() { close(inm.stopCh) })

	return nil
}

// sweepLoop scans for entries past their absolute expiry at a fixed interval
// and removes them, independent of access.
func (inm *InMemory) sweepLoop() {
	ticker := time.NewTicker(inm.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			inm.sweep()
		case <-inm.stopCh:
			return
		}
	}
}

// sweep removes expired entries shard by shard, never holding more than one
// shard lock at a time so unrelated reads keep flowing.
func (inm *InMemory) sweep() {
	var swept int64

	for tuple := range inm.items.IterBuffered() {
		if !tuple.Val.Expired() {
			continue
		}

		inm.items.Remove(tuple.Key)
		inm.policy.Delete(tuple.Key)
		swept++
	}

	if swept > 0 {
		inm.incrMetric(stats.MetricExpirations, swept)
	}
}

func (inm *InMemory) incrMetric(metric stats.Metric, n int64) {
	if inm.statsCollector != nil {
		inm.statsCollector.Incr(metric, n)
	}
}
