// Package meshcache implements a replicated, consistently hashed key-value
// cache. Each node runs a coordinator that routes operations through the hash
// ring to the key's owners, replicates writes from the primary to its replica
// set under a quorum policy, and reacts to membership changes by migrating
// only the keys whose ownership moved.
package meshcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/replication"
	"github.com/meshcache/meshcache/pkg/stats"
	"github.com/meshcache/meshcache/pkg/store"
	"github.com/meshcache/meshcache/pkg/transport"
)

// MeshCache is the per-node cache coordinator. It implements Service for
// clients and transport.Handler for peers.
type MeshCache[T store.IStoreConstrain] struct {
	localNode  cluster.Node
	membership *cluster.Membership
	store      store.IStore[T]
	repl       *replication.Manager
	transport  transport.Client

	statsCollector     stats.ICollector
	statsCollectorName string

	nodeID            string
	nodeAddr          string
	seeds             []string
	replicationFactor int
	writeConsistency  replication.Consistency
	virtualNodes      int
	heartbeatInterval time.Duration
	suspectThreshold  int
	deadThreshold     int
	replOptions       []replication.Option

	lastView  atomic.Pointer[cluster.View]
	migrateMu sync.Mutex

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates and starts a coordinator from the given configuration.
func New[T store.IStoreConstrain](ctx context.Context, cfg *Config[T]) (*MeshCache[T], error) {
	mc := &MeshCache[T]{
		statsCollectorName: "default",
		replicationFactor:  constants.DefaultReplicationFactor,
		writeConsistency:   replication.ConsistencyQuorum,
		virtualNodes:       constants.DefaultVirtualNodes,
		heartbeatInterval:  constants.DefaultHeartbeatInterval,
		suspectThreshold:   constants.DefaultSuspectThreshold,
		deadThreshold:      constants.DefaultDeadThreshold,
		stopCh:             make(chan struct{}),
	}

	ApplyOptions(mc, cfg.MeshCacheOptions...)

	var err error

	mc.statsCollector, err = stats.NewCollector(mc.statsCollectorName)
	if err != nil {
		return nil, err
	}

	cfg.InMemoryOptions = append(cfg.InMemoryOptions, store.WithStatsCollector(mc.statsCollector))

	mc.store, err = NewStore(ctx, NewStoreManager(), cfg)
	if err != nil {
		return nil, err
	}

	addr := mc.nodeAddr
	if addr == "" {
		addr = "local"
	}

	// Without an explicit id the identity derives from the address, so peers
	// that seeded this node by address resolve the same id it runs under.
	if mc.nodeID == "" && mc.nodeAddr != "" {
		mc.nodeID = string(cluster.DeriveNodeID(mc.nodeAddr))
	}

	mc.localNode = *cluster.NewNode(mc.nodeID, addr)

	ring := cluster.NewRing(cluster.WithVirtualNodes(mc.virtualNodes))
	mc.membership = cluster.NewMembership(ring, cluster.WithFailureThresholds(mc.suspectThreshold, mc.deadThreshold))

	if mc.transport == nil {
		inproc := transport.NewInProcess()
		inproc.Register(mc.localNode.ID, mc)
		mc.transport = inproc
	}

	if origin, ok := mc.transport.(transport.OriginSetter); ok {
		origin.SetOrigin(mc.localNode)
	}

	replOpts := []replication.Option{
		replication.WithConsistency(mc.writeConsistency),
		replication.WithDeliveryFailureHandler(mc.membership.RecordMiss),
	}

	mc.repl = replication.NewManager(mc.transport, append(replOpts, mc.replOptions...)...)

	mc.lastView.Store(ring.View())
	mc.membership.OnChange(mc.onRingChange)

	local := mc.localNode
	mc.membership.Upsert(&local)

	seedNodes := make([]cluster.Node, 0, len(mc.seeds))

	for _, seedAddr := range mc.seeds {
		if seedAddr == mc.localNode.Address {
			continue
		}

		seed := cluster.NewNode(string(cluster.DeriveNodeID(seedAddr)), seedAddr)
		mc.membership.Upsert(seed)
		seedNodes = append(seedNodes, *seed)
	}

	if len(seedNodes) > 0 {
		mc.wg.Add(1)

		go mc.bootstrapResync(seedNodes)
	}

	if mc.heartbeatInterval > 0 {
		mc.wg.Add(1)

		go mc.heartbeatLoop()
	}

	return mc, nil
}

// bootstrapResync pulls the entry snapshot from each seed and installs the
// entries this node owns, so a joining or recovering node serves reads before
// the first replicated write reaches it.
func (mc *MeshCache[T]) bootstrapResync(seeds []cluster.Node) {
	defer mc.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTransportTimeout)
	defer cancel()

	for _, seed := range seeds {
		items, err := mc.repl.Resync(ctx, seed)
		if err != nil {
			continue
		}

		view := mc.membership.Ring().View()

		for _, item := range items {
			if !containsNode(mc.lookupOwners(view, item.Key), mc.localNode.ID) {
				continue
			}

			// Admitting raises the replica floor, so replicated deliveries of
			// writes older than the snapshot are dropped later.
			if mc.repl.Admit(item.Key, item.Sequence) != nil {
				continue
			}

			_ = mc.store.Set(ctx, item) //nolint:errcheck // best-effort backfill
		}
	}
}

// LocalNode returns the local node identity.
func (mc *MeshCache[T]) LocalNode() cluster.Node { return mc.localNode }

// Membership returns the membership table, for tests and management surfaces.
func (mc *MeshCache[T]) Membership() *cluster.Membership { return mc.membership }

// Get retrieves a value from the cache using the key.
func (mc *MeshCache[T]) Get(ctx context.Context, key string) (any, bool) {
	item, ok := mc.GetWithInfo(ctx, key)
	if !ok {
		return nil, false
	}

	return item.Value, true
}

// GetWithInfo fetches the full cache entry with its metadata. Owners are tried
// in preference order; when fewer than the replication factor are up, the read
// degrades to whichever owners remain.
func (mc *MeshCache[T]) GetWithInfo(ctx context.Context, key string) (*cache.Item, bool) {
	view := mc.membership.Ring().View()

	owners := mc.lookupOwners(view, key)
	if len(owners) == 0 {
		mc.statsCollector.Incr(stats.MetricMisses, 1)

		return nil, false
	}

	for i, owner := range owners {
		item, ok := mc.readFrom(ctx, owner, key)
		if !ok {
			continue
		}

		if i > 0 {
			mc.readRepair(item, owners[:i])
		}

		mc.statsCollector.Incr(stats.MetricHits, 1)

		return item, true
	}

	mc.statsCollector.Incr(stats.MetricMisses, 1)

	return nil, false
}

func (mc *MeshCache[T]) readFrom(ctx context.Context, owner cluster.Node, key string) (*cache.Item, bool) {
	if owner.ID == mc.localNode.ID {
		return mc.store.Get(ctx, key)
	}

	item, ok, err := mc.transport.ForwardGet(ctx, owner, key)
	if err != nil || !ok {
		return nil, false
	}

	return item, true
}

// readRepair pushes an entry back to owners that failed to serve it, so a
// degraded read heals the replica set it bypassed. Best effort.
func (mc *MeshCache[T]) readRepair(item *cache.Item, stale []cluster.Node) {
	mc.wg.Add(1)

	go func() {
		defer mc.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTransportTimeout)
		defer cancel()

		for _, owner := range stale {
			if owner.ID == mc.localNode.ID {
				_ = mc.store.Set(ctx, item) //nolint:errcheck // best-effort repair

				continue
			}

			_ = mc.transport.Replicate(ctx, owner, item) //nolint:errcheck // best-effort repair
		}
	}()
}

// GetMultiple retrieves a list of values from the cache using the keys.
func (mc *MeshCache[T]) GetMultiple(ctx context.Context, keys ...string) (map[string]any, map[string]error) {
	result := make(map[string]any, len(keys))
	failed := make(map[string]error)

	for _, key := range keys {
		value, ok := mc.Get(ctx, key)
		if !ok {
			failed[key] = sentinel.ErrKeyNotFound

			continue
		}

		result[key] = value
	}

	return result, failed
}

// Set stores a value in the cache using the key and expiration duration. The
// write is routed to the key's primary and acknowledged once the configured
// quorum of owners applied it.
func (mc *MeshCache[T]) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	item := &cache.Item{Key: key, Value: value, Expiration: expiration}

	err := item.Valid()
	if err != nil {
		return err
	}

	return mc.routeSet(ctx, item)
}

// routeSet forwards the write to the primary, retrying once against a fresh
// ring view when the addressed node reports it no longer owns the key.
func (mc *MeshCache[T]) routeSet(ctx context.Context, item *cache.Item) error {
	err := mc.dispatchSet(ctx, item)
	if !errors.Is(err, sentinel.ErrStalePrimary) {
		return err
	}

	mc.statsCollector.Incr(stats.MetricStaleForwards, 1)

	err = mc.dispatchSet(ctx, item)
	if errors.Is(err, sentinel.ErrStalePrimary) {
		return sentinel.ErrUnavailable
	}

	return err
}

func (mc *MeshCache[T]) dispatchSet(ctx context.Context, item *cache.Item) error {
	view := mc.membership.Ring().View()

	primary, ok := view.Primary(item.Key)
	if !ok {
		return sentinel.ErrUnavailable
	}

	if primary.ID == mc.localNode.ID {
		return mc.primarySet(ctx, item)
	}

	return mc.transport.ForwardSet(ctx, primary, item)
}

// primarySet applies a write on the primary path: allocate the sequence, store
// locally, fan out to replicas, and fail closed when the quorum is missed.
func (mc *MeshCache[T]) primarySet(ctx context.Context, item *cache.Item) error {
	view := mc.membership.Ring().View()

	owners := mc.lookupOwners(view, item.Key)
	if len(owners) == 0 || owners[0].ID != mc.localNode.ID {
		return sentinel.ErrStalePrimary
	}

	item.Sequence = mc.repl.NextSequence(item.Key)
	item.Origin = string(mc.localNode.ID)

	err := mc.store.Set(ctx, item)
	if err != nil {
		return err
	}

	if len(owners) == 1 {
		return nil
	}

	res := mc.repl.Propagate(ctx, item, owners[1:])
	mc.statsCollector.Incr(stats.MetricReplications, int64(res.Acks-1))

	if !res.Satisfied() {
		mc.statsCollector.Incr(stats.MetricQuorumFailures, 1)

		return sentinel.ErrQuorumFailed
	}

	return nil
}

// GetOrSet retrieves a value from the cache using the key, setting it when absent.
func (mc *MeshCache[T]) GetOrSet(ctx context.Context, key string, value any, expiration time.Duration) (any, error) {
	if existing, ok := mc.Get(ctx, key); ok {
		return existing, nil
	}

	err := mc.Set(ctx, key, value, expiration)
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Remove removes values from the cache using the keys. Each delete is routed
// to the key's primary and propagated to the replica set like a write.
func (mc *MeshCache[T]) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		err := mc.routeRemove(ctx, key)
		if err != nil {
			return err
		}
	}

	return nil
}

func (mc *MeshCache[T]) routeRemove(ctx context.Context, key string) error {
	err := mc.dispatchRemove(ctx, key)
	if !errors.Is(err, sentinel.ErrStalePrimary) {
		return err
	}

	mc.statsCollector.Incr(stats.MetricStaleForwards, 1)

	err = mc.dispatchRemove(ctx, key)
	if errors.Is(err, sentinel.ErrStalePrimary) {
		return sentinel.ErrUnavailable
	}

	return err
}

func (mc *MeshCache[T]) dispatchRemove(ctx context.Context, key string) error {
	view := mc.membership.Ring().View()

	primary, ok := view.Primary(key)
	if !ok {
		return sentinel.ErrUnavailable
	}

	if primary.ID == mc.localNode.ID {
		return mc.primaryRemove(ctx, key)
	}

	return mc.transport.ForwardRemove(ctx, primary, key)
}

func (mc *MeshCache[T]) primaryRemove(ctx context.Context, key string) error {
	view := mc.membership.Ring().View()

	owners := mc.lookupOwners(view, key)
	if len(owners) == 0 || owners[0].ID != mc.localNode.ID {
		return sentinel.ErrStalePrimary
	}

	seq := mc.repl.NextSequence(key)

	err := mc.store.Remove(ctx, key)
	if err != nil {
		return err
	}

	if len(owners) == 1 {
		return nil
	}

	res := mc.repl.PropagateRemove(ctx, key, seq, string(mc.localNode.ID), owners[1:])
	if !res.Satisfied() {
		mc.statsCollector.Incr(stats.MetricQuorumFailures, 1)

		return sentinel.ErrQuorumFailed
	}

	return nil
}

// List returns a snapshot of the locally held entries.
func (mc *MeshCache[T]) List(ctx context.Context) ([]*cache.Item, error) {
	return mc.store.List(ctx)
}

// Clear removes all locally held values.
func (mc *MeshCache[T]) Clear(ctx context.Context) error {
	return mc.store.Clear(ctx)
}

// Capacity returns the per-node capacity of the cache.
func (mc *MeshCache[T]) Capacity() int { return mc.store.Capacity() }

// Count returns the number of items held locally.
func (mc *MeshCache[T]) Count(ctx context.Context) int { return mc.store.Count(ctx) }

// GetStats returns the stats of the cache.
func (mc *MeshCache[T]) GetStats() stats.Stats { return mc.statsCollector.GetStats() }

// Stop stops the heartbeat loop, waits for in-flight background work and shuts
// the shard store down.
func (mc *MeshCache[T]) Stop(ctx context.Context) error {
	mc.stopOnce.Do(func() { close(mc.stopCh) })
	mc.wg.Wait()

	return mc.store.Stop(ctx)
}

// lookupOwners resolves the owner set for a key, degrading to however many
// distinct nodes the view holds when fewer than the replication factor remain.
func (mc *MeshCache[T]) lookupOwners(view *cluster.View, key string) []cluster.Node {
	n := mc.replicationFactor
	if view.Size() < n {
		n = view.Size()
	}

	if n == 0 {
		return nil
	}

	owners, err := view.Owners(key, n)
	if err != nil {
		return nil
	}

	return owners
}

// heartbeatLoop probes every known peer each interval and feeds the outcome
// into the membership failure detector.
func (mc *MeshCache[T]) heartbeatLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopCh:
			return
		case <-ticker.C:
			mc.probePeers()
		}
	}
}

func (mc *MeshCache[T]) probePeers() {
	for _, node := range mc.membership.List() {
		if node.ID == mc.localNode.ID || node.State == cluster.NodeDead {
			continue
		}

		peer := *node

		mc.wg.Add(1)

		go func() {
			defer mc.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), mc.heartbeatInterval)
			defer cancel()

			err := mc.transport.Health(ctx, peer)
			if err != nil {
				mc.membership.RecordMiss(peer.ID)

				return
			}

			mc.membership.RecordHeartbeat(peer.ID)
		}()
	}
}
