// Package store provides the per-node shard store implementations.
// It defines the contract that every shard store must follow: storing,
// retrieving and removing entries under capacity pressure, with a pluggable
// eviction policy and both lazy and active expiration.
//
// Store implementations must satisfy the IStoreConstrain type constraint,
// which currently supports the InMemory and Redis stores.
package store

import (
	"context"

	"github.com/meshcache/meshcache/pkg/cache"
)

// IStoreConstrain defines the type constraint for shard store implementations.
type IStoreConstrain interface {
	InMemory | Redis
}

// IStore defines the contract that all shard stores must implement.
//
// All methods accept a context.Context parameter for cancellation and timeout
// control, enabling graceful handling of long-running operations.
type IStore[T IStoreConstrain] interface {
	// Get retrieves the entry with the given key. Expired entries are purged on
	// access and reported as a miss.
	Get(ctx context.Context, key string) (item *cache.Item, ok bool)
	// Set adds or overwrites an entry, evicting at most one victim when the
	// store is at capacity.
	Set(ctx context.Context, item *cache.Item) error
	// Capacity returns the maximum number of entries the store holds (0 = unlimited).
	Capacity() int
	// SetCapacity sets the maximum number of entries the store holds.
	SetCapacity(capacity int)
	// Count returns the number of entries currently stored.
	Count(ctx context.Context) int
	// Remove deletes the entries with the given keys. Absent keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	// List returns a snapshot of all entries.
	List(ctx context.Context) (items []*cache.Item, err error)
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// EvictOne applies the eviction policy once, returning the victim key.
	EvictOne(ctx context.Context) (key string, ok bool)
	// Stop terminates background work (expiration sweep).
	Stop(ctx context.Context) error
}
