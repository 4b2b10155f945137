// Package sentinel provides standardized error definitions for the meshcache system.
// This package centralizes all error types used across the meshcache components,
// ensuring consistent error handling and messaging throughout the application.
//
// The errors defined here cover the full taxonomy of the distributed cache:
// - Normal misses (key not found) which are not operation failures
// - Ring resolution failures (insufficient nodes for the replication factor)
// - Routing races (stale primary) recovered locally by the coordinator
// - Quorum and deadline failures surfaced to callers
// - Invalid configuration parameters (keys, expiration, capacity)
//
// All errors are created using the ewrap package to provide enhanced error
// wrapping and context capabilities.
package sentinel

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrInvalidKey is returned when an invalid key is used to access an entry in the cache.
	// An invalid key is a key that is either empty or consists only of whitespace characters.
	ErrInvalidKey = ewrap.New("invalid key")

	// ErrKeyNotFound is returned when a key is not found in the cache. It marks a
	// normal miss, not an operation failure.
	ErrKeyNotFound = ewrap.New("key not found")

	// ErrNilValue is returned when a nil value is attempted to be set in the cache.
	ErrNilValue = ewrap.New("nil value")

	// ErrNilClient is returned when a nil client is passed to the cache.
	ErrNilClient = ewrap.New("nil client")

	// ErrKeyExpired is returned when a key is found in the cache but has expired.
	ErrKeyExpired = ewrap.New("key expired")

	// ErrInvalidExpiration is returned when an invalid expiration is passed to a cache entry.
	ErrInvalidExpiration = ewrap.New("expiration cannot be negative")

	// ErrInvalidCapacity is returned when an invalid capacity is passed to the cache.
	ErrInvalidCapacity = ewrap.New("capacity cannot be negative")

	// ErrAlgorithmNotFound is returned when an eviction algorithm is not found in the registry.
	ErrAlgorithmNotFound = ewrap.New("algorithm not found")

	// ErrParamCannotBeEmpty is returned when a parameter cannot be empty.
	ErrParamCannotBeEmpty = ewrap.New("param cannot be empty")

	// ErrSerializerNotFound is returned when a serializer is not found.
	ErrSerializerNotFound = ewrap.New("serializer not found")

	// ErrStatsCollectorNotFound is returned when a stats collector is not found.
	ErrStatsCollectorNotFound = ewrap.New("stats collector not found")

	// ErrInsufficientNodes is returned when the ring holds fewer distinct physical
	// nodes than the requested replica count. Fatal to the operation that needed them.
	ErrInsufficientNodes = ewrap.New("insufficient nodes in ring")

	// ErrStalePrimary is returned by a node that receives a primary-routed write for
	// a key it no longer owns. The coordinator re-resolves owners and retries once.
	ErrStalePrimary = ewrap.New("stale primary for key")

	// ErrUnavailable is returned when no reachable owner exists for a key.
	ErrUnavailable = ewrap.New("no reachable owner for key")

	// ErrQuorumFailed is returned when a write cannot gather the configured number
	// of replica acknowledgments before its deadline.
	ErrQuorumFailed = ewrap.New("write quorum not met")

	// ErrTimeoutOrCanceled is returned when a timeout or cancellation occurs.
	ErrTimeoutOrCanceled = ewrap.New("the operation timed out or was canceled")

	// ErrSequenceReplayed is returned by a replica that receives a propagated write
	// whose per-key sequence number was already applied. Retries are safe to discard.
	ErrSequenceReplayed = ewrap.New("sequence already applied")

	// ErrNodeNotFound is returned when a node is not known to the transport or membership.
	ErrNodeNotFound = ewrap.New("node not found")

	// ErrNodeNotAlive is returned when an operation targets a node that is suspect or dead.
	ErrNodeNotAlive = ewrap.New("node not alive")

	// ErrTransportClosed is returned when the transport has been shut down.
	ErrTransportClosed = ewrap.New("transport closed")
)
