// Package transport defines the request/response RPC abstraction between cache
// nodes, plus the two concrete implementations: an in-process transport for
// multi-node tests and an HTTP transport for real deployments. Wire framing is
// an implementation detail; both sides of the contract speak in cache entries.
package transport

import (
	"context"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/pkg/cache"
)

// Handler is the server side of the transport: the set of operations a node
// exposes to its peers. It is implemented by the cache coordinator.
type Handler interface {
	// HandleSet applies a client write routed to this node as primary.
	// Returns sentinel.ErrStalePrimary when this node no longer owns the key.
	HandleSet(ctx context.Context, item *cache.Item) error
	// HandleGet serves a read for a key this node owns (primary or replica).
	HandleGet(ctx context.Context, key string) (*cache.Item, bool, error)
	// HandleRemove applies a client delete routed to this node as primary.
	HandleRemove(ctx context.Context, key string) error
	// HandleReplicate applies a propagated write on a replica, enforcing
	// per-key sequence ordering.
	HandleReplicate(ctx context.Context, item *cache.Item) error
	// HandleReplicateRemove applies a propagated delete on a replica.
	HandleReplicateRemove(ctx context.Context, key string, seq uint64, origin string) error
	// HandleResync returns this node's full entry snapshot for a recovering replica.
	HandleResync(ctx context.Context) ([]*cache.Item, error)
	// HandleHeartbeat acknowledges a liveness probe. The prober sends its own
	// identity so the receiver can adopt peers it only knew by address.
	HandleHeartbeat(ctx context.Context, from cluster.Node) error
}

// Client is the caller side of the transport. Every call is synchronous and
// honors the context deadline.
type Client interface {
	// ForwardSet routes a client write to the key's primary.
	ForwardSet(ctx context.Context, node cluster.Node, item *cache.Item) error
	// ForwardGet reads a key from a remote owner.
	ForwardGet(ctx context.Context, node cluster.Node, key string) (*cache.Item, bool, error)
	// ForwardRemove routes a client delete to the key's primary.
	ForwardRemove(ctx context.Context, node cluster.Node, key string) error
	// Replicate pushes a sequenced write to a replica.
	Replicate(ctx context.Context, node cluster.Node, item *cache.Item) error
	// ReplicateRemove pushes a sequenced delete to a replica.
	ReplicateRemove(ctx context.Context, node cluster.Node, key string, seq uint64, origin string) error
	// Resync pulls the full entry snapshot from a peer.
	Resync(ctx context.Context, node cluster.Node) ([]*cache.Item, error)
	// Health probes a peer for liveness.
	Health(ctx context.Context, node cluster.Node) error
}

// OriginSetter is implemented by transports that stamp outgoing probes with
// the local node identity. The coordinator calls it once at startup.
type OriginSetter interface {
	SetOrigin(node cluster.Node)
}
