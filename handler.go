package meshcache

import (
	"context"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/pkg/cache"
)

// The coordinator is its own transport handler: peers reach the same routing
// and replication logic clients do, minus the forwarding hop.

// HandleSet applies a client write routed to this node as primary.
func (mc *MeshCache[T]) HandleSet(ctx context.Context, item *cache.Item) error {
	err := item.Valid()
	if err != nil {
		return err
	}

	return mc.primarySet(ctx, item)
}

// HandleGet serves a read from the local shard store.
func (mc *MeshCache[T]) HandleGet(ctx context.Context, key string) (*cache.Item, bool, error) {
	item, ok := mc.store.Get(ctx, key)

	return item, ok, nil
}

// HandleRemove applies a client delete routed to this node as primary.
func (mc *MeshCache[T]) HandleRemove(ctx context.Context, key string) error {
	return mc.primaryRemove(ctx, key)
}

// HandleReplicate applies a propagated write on this replica. Writes whose
// sequence does not advance the key's applied floor are rejected, so
// reordered or duplicated deliveries cannot roll an entry back.
func (mc *MeshCache[T]) HandleReplicate(ctx context.Context, item *cache.Item) error {
	err := item.Valid()
	if err != nil {
		return err
	}

	err = mc.repl.Admit(item.Key, item.Sequence)
	if err != nil {
		return err
	}

	// Raise the local issue floor too: if this node is later promoted to
	// primary it must never reissue an applied sequence.
	mc.repl.ObserveSequence(item.Key, item.Sequence)

	return mc.store.Set(ctx, item)
}

// HandleReplicateRemove applies a propagated delete on this replica under the
// same sequence ordering as replicated writes.
func (mc *MeshCache[T]) HandleReplicateRemove(ctx context.Context, key string, seq uint64, _ string) error {
	err := mc.repl.Admit(key, seq)
	if err != nil {
		return err
	}

	mc.repl.ObserveSequence(key, seq)

	return mc.store.Remove(ctx, key)
}

// HandleResync returns this node's full entry snapshot for a recovering peer.
func (mc *MeshCache[T]) HandleResync(ctx context.Context) ([]*cache.Item, error) {
	return mc.store.List(ctx)
}

// HandleHeartbeat acknowledges a liveness probe and counts it as proof of life
// for the prober. A prober this node never met joins the membership: seed
// entries are known only by their derived identity until the peer introduces
// itself here.
func (mc *MeshCache[T]) HandleHeartbeat(_ context.Context, from cluster.Node) error {
	if from.ID == "" {
		return nil
	}

	if mc.membership.Known(from.ID) {
		mc.membership.RecordHeartbeat(from.ID)

		return nil
	}

	if from.Address == "" {
		return nil
	}

	mc.membership.Upsert(cluster.NewNode(string(from.ID), from.Address))

	return nil
}
