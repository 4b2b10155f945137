// Package constants holds shared defaults for the meshcache configuration surface.
package constants

import "time"

const (
	// DefaultVirtualNodes is the number of virtual nodes per physical node on the ring.
	DefaultVirtualNodes = 150

	// DefaultReplicationFactor is the number of distinct physical owners per key.
	DefaultReplicationFactor = 3

	// DefaultCapacity is the per-shard-store item capacity (0 = unlimited).
	DefaultCapacity = 0

	// DefaultEvictionAlgorithm selects the eviction policy when none is configured.
	DefaultEvictionAlgorithm = "lru"

	// DefaultSweepInterval is the cadence of the background expiration sweep.
	DefaultSweepInterval = 500 * time.Millisecond

	// DefaultQuorumTimeout bounds how long a write waits for replica acknowledgments.
	DefaultQuorumTimeout = 50 * time.Millisecond

	// DefaultHeartbeatInterval is the cadence of peer liveness probes.
	DefaultHeartbeatInterval = time.Second

	// DefaultSuspectThreshold is the number of consecutive missed heartbeats
	// before a peer transitions from alive to suspect.
	DefaultSuspectThreshold = 3

	// DefaultDeadThreshold is the number of consecutive missed heartbeats before
	// a peer is declared dead and dropped from the ring.
	DefaultDeadThreshold = 8

	// DefaultReplicationRetries bounds per-replica propagation retries.
	DefaultReplicationRetries = 3

	// DefaultReplicationWorkers bounds the outbound replication fan-out pool.
	DefaultReplicationWorkers = 16

	// DefaultTransportTimeout bounds a single remote request.
	DefaultTransportTimeout = 2 * time.Second
)
