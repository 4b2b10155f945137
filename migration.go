package meshcache

import (
	"context"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/pkg/stats"
)

// onRingChange reacts to a membership-driven ring rebuild. Migration diffs the
// retained previous view against the new one key by key, so only entries whose
// owner set actually changed move; with N nodes and K keys a single membership
// change touches roughly K/N of them.
func (mc *MeshCache[T]) onRingChange(view *cluster.View) {
	old := mc.lastView.Swap(view)
	if old == nil || old == view {
		return
	}

	select {
	case <-mc.stopCh:
		return
	default:
	}

	mc.wg.Add(1)

	go func() {
		defer mc.wg.Done()
		mc.migrate(old, view)
	}()
}

func (mc *MeshCache[T]) migrate(old, cur *cluster.View) {
	// Serialize migrations; overlapping rebuilds replay against the freshest view.
	mc.migrateMu.Lock()
	defer mc.migrateMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTransportTimeout)
	defer cancel()

	items, err := mc.store.List(ctx)
	if err != nil {
		return
	}

	var migrated int64

	for _, item := range items {
		oldOwners := mc.lookupOwners(old, item.Key)
		newOwners := mc.lookupOwners(cur, item.Key)

		if sameOwners(oldOwners, newOwners) {
			continue
		}

		migrated++

		// A replica promoted to primary must continue the key's sequence from
		// at least the last write it applied.
		if len(newOwners) > 0 && newOwners[0].ID == mc.localNode.ID {
			mc.repl.ObserveSequence(item.Key, item.Sequence)
		}

		for _, owner := range newOwners {
			if owner.ID == mc.localNode.ID || containsNode(oldOwners, owner.ID) {
				continue
			}

			_ = mc.transport.Replicate(ctx, owner, item) //nolint:errcheck // best-effort handoff
		}

		if !containsNode(newOwners, mc.localNode.ID) {
			_ = mc.store.Remove(ctx, item.Key) //nolint:errcheck // entry handed off above
			mc.repl.Forget(item.Key)
		}
	}

	if migrated > 0 {
		mc.statsCollector.Incr(stats.MetricMigratedKeys, migrated)
	}
}

func sameOwners(a, b []cluster.Node) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}

	return true
}

func containsNode(nodes []cluster.Node, id cluster.NodeID) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}

	return false
}
