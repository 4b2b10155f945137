package store

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meshcache/meshcache/internal/libs/serializer"
	"github.com/meshcache/meshcache/pkg/stats"
)

// iConfigurableStore is an interface that defines the methods a store should
// implement to be configurable.
type iConfigurableStore interface {
	// setCapacity sets the capacity of the store.
	setCapacity(capacity int)
}

// setCapacity sets the `capacity` field of the `InMemory` store.
func (inm *InMemory) setCapacity(capacity int) {
	inm.capacity = capacity
}

// setCapacity sets the `capacity` field of the `Redis` store.
func (rb *Redis) setCapacity(capacity int) {
	rb.capacity = capacity
}

// Option is a function type that can be used to configure a shard store.
type Option[T IStoreConstrain] func(*T)

// ApplyOptions applies the given options to the given store.
func ApplyOptions[T IStoreConstrain](store *T, options ...Option[T]) {
	for _, option := range options {
		option(store)
	}
}

// WithCapacity is an option that sets the capacity of the store.
func WithCapacity[T IStoreConstrain](capacity int) Option[T] {
	return func(a *T) {
		if configurable, ok := any(a).(iConfigurableStore); ok {
			configurable.setCapacity(capacity)
		}
	}
}

// WithEvictionAlgorithm selects the eviction policy of the in-memory store.
// The name must be registered: `lru`, `lfu` or `ttl`.
func WithEvictionAlgorithm(name string) Option[InMemory] {
	return func(inm *InMemory) {
		if name != "" {
			inm.policyName = name
		}
	}
}

// WithSweepInterval sets the cadence of the background expiration sweep.
// A non-positive interval disables the sweep (lazy expiration still applies).
func WithSweepInterval(interval time.Duration) Option[InMemory] {
	return func(inm *InMemory) {
		inm.sweepInterval = interval
	}
}

// WithStatsCollector binds a collector to the in-memory store, so capacity
// evictions and expirations are counted where they happen.
func WithStatsCollector(collector stats.ICollector) Option[InMemory] {
	return func(inm *InMemory) {
		inm.statsCollector = collector
	}
}

// WithRedisClient is an option that sets the redis client to use.
func WithRedisClient(client *redis.Client) Option[Redis] {
	return func(rb *Redis) {
		rb.rdb = client
	}
}

// WithKeysSetName is an option that sets the name of the set that holds the
// keys of the entries in the redis store.
func WithKeysSetName(keysSetName string) Option[Redis] {
	return func(rb *Redis) {
		rb.keysSetName = keysSetName
	}
}

// WithSerializer is an option that sets the serializer used to encode entries
// in the redis store.
//   - The default serializer is `serializer.MsgpackSerializer`.
//   - The `serializer.DefaultJSONSerializer` encodes entries as JSON.
//   - The interface `serializer.ISerializer` can be implemented for a custom codec.
func WithSerializer(ser serializer.ISerializer) Option[Redis] {
	return func(rb *Redis) {
		rb.serializer = ser
	}
}
