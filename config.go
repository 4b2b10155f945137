package meshcache

import (
	"time"

	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/pkg/replication"
	"github.com/meshcache/meshcache/pkg/store"
	"github.com/meshcache/meshcache/pkg/transport"
)

// Config wraps all the configuration options to set up a `MeshCache` node and
// its shard store.
type Config[T store.IStoreConstrain] struct {
	// InMemoryOptions configures the `InMemory` shard store.
	InMemoryOptions []store.Option[store.InMemory]
	// RedisOptions configures the `Redis` shard store.
	RedisOptions []store.Option[store.Redis]
	// MeshCacheOptions configures the coordinator itself.
	MeshCacheOptions []Option[T]
	// StoreType selects the shard store constructor from the registry.
	StoreType string
}

// NewConfig returns a new `Config` with defaults:
//   - `WithReplicationFactor[T](3)`
//   - `WithWriteConsistency[T](replication.ConsistencyQuorum)`
//   - `WithHeartbeatInterval[T](1s)`
//
// Each default can be overridden by appending a different option.
func NewConfig[T store.IStoreConstrain](storeType string) *Config[T] {
	return &Config[T]{
		StoreType:       storeType,
		InMemoryOptions: []store.Option[store.InMemory]{},
		RedisOptions:    []store.Option[store.Redis]{},
		MeshCacheOptions: []Option[T]{
			WithReplicationFactor[T](constants.DefaultReplicationFactor),
			WithWriteConsistency[T](replication.ConsistencyQuorum),
			WithHeartbeatInterval[T](constants.DefaultHeartbeatInterval),
		},
	}
}

// Option is a function type used to configure the `MeshCache` coordinator.
type Option[T store.IStoreConstrain] func(*MeshCache[T])

// ApplyOptions applies the given options to the given coordinator.
func ApplyOptions[T store.IStoreConstrain](mc *MeshCache[T], options ...Option[T]) {
	for _, option := range options {
		option(mc)
	}
}

// WithNode sets the local node identity. An empty id is replaced with a fresh
// uuid; the address is what peers dial for the HTTP transport.
func WithNode[T store.IStoreConstrain](id, addr string) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.nodeID = id
		mc.nodeAddr = addr
	}
}

// WithReplicationFactor sets the number of distinct physical owners per key.
func WithReplicationFactor[T store.IStoreConstrain](factor int) Option[T] {
	return func(mc *MeshCache[T]) {
		if factor > 0 {
			mc.replicationFactor = factor
		}
	}
}

// WithWriteConsistency sets the write acknowledgment policy (default quorum).
func WithWriteConsistency[T store.IStoreConstrain](consistency replication.Consistency) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.writeConsistency = consistency
	}
}

// WithVirtualNodes sets the number of virtual nodes per physical node on the ring.
func WithVirtualNodes[T store.IStoreConstrain](n int) Option[T] {
	return func(mc *MeshCache[T]) {
		if n > 0 {
			mc.virtualNodes = n
		}
	}
}

// WithStatsCollector selects the stats collector from the registry by name.
func WithStatsCollector[T store.IStoreConstrain](name string) Option[T] {
	return func(mc *MeshCache[T]) {
		if name != "" {
			mc.statsCollectorName = name
		}
	}
}

// WithHeartbeatInterval sets the cadence of peer liveness probes. A
// non-positive interval disables the probe loop.
func WithHeartbeatInterval[T store.IStoreConstrain](interval time.Duration) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.heartbeatInterval = interval
	}
}

// WithFailureThresholds sets the consecutive missed-heartbeat counts that
// trigger the suspect and dead transitions.
func WithFailureThresholds[T store.IStoreConstrain](suspect, dead int) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.suspectThreshold = suspect
		mc.deadThreshold = dead
	}
}

// WithTransport sets the node-to-node transport client. Defaults to an
// in-process transport with only the local node registered.
func WithTransport[T store.IStoreConstrain](client transport.Client) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.transport = client
	}
}

// WithReplicationOptions forwards options to the replication manager.
func WithReplicationOptions[T store.IStoreConstrain](opts ...replication.Option) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.replOptions = append(mc.replOptions, opts...)
	}
}

// WithSeeds sets the addresses of peers contacted at startup. Seed node ids
// are derived deterministically from the address, so every member resolves the
// same identity for the same seed.
func WithSeeds[T store.IStoreConstrain](addrs ...string) Option[T] {
	return func(mc *MeshCache[T]) {
		mc.seeds = append(mc.seeds, addrs...)
	}
}
