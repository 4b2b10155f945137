package cache

import (
	"sync"
)

const (
	// ShardCount is the number of shards used by the map.
	ShardCount = 32
	// ShardCount32 is the number of shards used by the map pre-casted to uint32 to avoid performance issues.
	ShardCount32 uint32 = uint32(ShardCount)
)

// ConcurrentMap is a "thread" safe map of type string:*cache.Item.
// To avoid lock bottlenecks this map is divided into several (ShardCount) map
// shards, so eviction and expiry sweeps never block reads of unrelated keys.
type ConcurrentMap struct {
	shards []*ConcurrentMapShard
}

// ConcurrentMapShard is a "thread" safe string to `*cache.Item` map shard.
type ConcurrentMapShard struct {
	sync.RWMutex

	items map[string]*Item
}

// New creates a new concurrent map.
func New() ConcurrentMap {
	return ConcurrentMap{
		shards: create(),
	}
}

// create initializes and returns an array of ConcurrentMapShard pointers.
func create() []*ConcurrentMapShard {
	shards := make([]*ConcurrentMapShard, ShardCount)
	for i := range ShardCount {
		shards[i] = &ConcurrentMapShard{
			items: make(map[string]*Item),
		}
	}

	return shards
}

// GetShard returns shard under given key.
func (cm *ConcurrentMap) GetShard(key string) *ConcurrentMapShard {
	return cm.shards[getShardIndex(key)]
}

// getShardIndex calculates the shard index for the given key.
func getShardIndex(key string) uint32 {
	// Inline FNV-1a 32-bit hashing to avoid allocations.
	const (
		fnvOffset32 = 2166136261
		fnvPrime32  = 16777619
	)

	var sum uint32 = fnvOffset32
	for i := range key {
		sum ^= uint32(key[i])

		sum *= fnvPrime32
	}

	return sum & (ShardCount32 - 1)
}

// Set sets the given value under the specified key.
func (cm *ConcurrentMap) Set(key string, value *Item) {
	shard := cm.GetShard(key)
	shard.Lock()

	shard.items[key] = value
	shard.Unlock()
}

// Get retrieves an element from map under given key.
func (cm *ConcurrentMap) Get(key string) (*Item, bool) {
	shard := cm.GetShard(key)
	shard.RLock()

	item, ok := shard.items[key]
	shard.RUnlock()

	return item, ok
}

// Has checks if key is present in the map.
func (cm *ConcurrentMap) Has(key string) bool {
	shard := cm.GetShard(key)
	shard.RLock()

	_, ok := shard.items[key]
	shard.RUnlock()

	return ok
}

// Pop removes an element from the map and returns it.
func (cm *ConcurrentMap) Pop(key string) (*Item, bool) {
	shard := cm.GetShard(key)
	shard.Lock()

	item, ok := shard.items[key]
	if !ok {
		shard.Unlock()

		return nil, false
	}

	delete(shard.items, key)
	shard.Unlock()

	return item, ok
}

// Remove removes an element from the map.
func (cm *ConcurrentMap) Remove(key string) {
	shard := cm.GetShard(key)
	shard.Lock()

	delete(shard.items, key)
	shard.Unlock()
}

// Count returns the number of elements within the map.
func (cm *ConcurrentMap) Count() int {
	count := 0

	for _, shard := range cm.shards {
		shard.RLock()

		count += len(shard.items)
		shard.RUnlock()
	}

	return count
}

// Clear removes all items from the map.
func (cm *ConcurrentMap) Clear() {
	for _, shard := range cm.shards {
		shard.Lock()

		shard.items = make(map[string]*Item)
		shard.Unlock()
	}
}

// Tuple is used by the IterBuffered functions to wrap two variables together over a channel.
type Tuple struct {
	Key string
	Val Item
}

// IterBuffered returns a buffered iterator which could be used in a for range loop.
// Values are copies taken under the shard read lock, so the consumer never races
// with writers.
func (cm *ConcurrentMap) IterBuffered() <-chan Tuple {
	ch := make(chan Tuple, cm.Count())

	go func() {
		for _, shard := range cm.shards {
			shard.RLock()

			for key, val := range shard.items {
				ch <- Tuple{Key: key, Val: *val}
			}

			shard.RUnlock()
		}

		close(ch)
	}()

	return ch
}

// Keys returns a snapshot of all keys in the map.
func (cm *ConcurrentMap) Keys() []string {
	keys := make([]string, 0, cm.Count())

	for _, shard := range cm.shards {
		shard.RLock()

		for key := range shard.items {
			keys = append(keys, key)
		}

		shard.RUnlock()
	}

	return keys
}
