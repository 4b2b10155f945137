package replication_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/replication"
	"github.com/meshcache/meshcache/pkg/transport"
)

// replicaStub records replicated traffic for one node.
type replicaStub struct {
	mu      sync.Mutex
	applied []*cache.Item
	removed []string
	fail    bool
}

func (r *replicaStub) HandleSet(_ context.Context, _ *cache.Item) error { return nil }

func (r *replicaStub) HandleGet(_ context.Context, _ string) (*cache.Item, bool, error) {
	return nil, false, nil
}

func (r *replicaStub) HandleRemove(_ context.Context, _ string) error { return nil }

func (r *replicaStub) HandleReplicate(_ context.Context, item *cache.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail {
		return sentinel.ErrUnavailable
	}

	r.applied = append(r.applied, item)

	return nil
}

func (r *replicaStub) HandleReplicateRemove(_ context.Context, key string, _ uint64, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail {
		return sentinel.ErrUnavailable
	}

	r.removed = append(r.removed, key)

	return nil
}

func (r *replicaStub) HandleResync(_ context.Context) ([]*cache.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.applied, nil
}

func (r *replicaStub) HandleHeartbeat(_ context.Context, _ cluster.Node) error { return nil }

func (r *replicaStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.applied)
}

func newTestCluster(stubs map[cluster.NodeID]*replicaStub) (*transport.InProcess, []cluster.Node) {
	inproc := transport.NewInProcess()
	nodes := make([]cluster.Node, 0, len(stubs))

	for id, stub := range stubs {
		inproc.Register(id, stub)
		nodes = append(nodes, *cluster.NewNode(string(id), string(id)+":7946"))
	}

	return inproc, nodes
}

func TestConsistencyRequiredAcks(t *testing.T) {
	assert.Equal(t, 1, replication.ConsistencyOne.RequiredAcks(3))
	assert.Equal(t, 2, replication.ConsistencyQuorum.RequiredAcks(3))
	assert.Equal(t, 3, replication.ConsistencyQuorum.RequiredAcks(5))
	assert.Equal(t, 3, replication.ConsistencyAll.RequiredAcks(3))
	assert.Equal(t, 1, replication.ConsistencyQuorum.RequiredAcks(1))
}

func TestNextSequenceMonotonicPerKey(t *testing.T) {
	mgr := replication.NewManager(transport.NewInProcess())

	assert.Equal(t, uint64(1), mgr.NextSequence("a"))
	assert.Equal(t, uint64(2), mgr.NextSequence("a"))
	assert.Equal(t, uint64(1), mgr.NextSequence("b"))
}

func TestObserveSequenceRaisesFloor(t *testing.T) {
	mgr := replication.NewManager(transport.NewInProcess())

	mgr.ObserveSequence("k", 7)
	assert.Equal(t, uint64(8), mgr.NextSequence("k"))

	// A lower observation never rewinds the counter.
	mgr.ObserveSequence("k", 3)
	assert.Equal(t, uint64(9), mgr.NextSequence("k"))
}

func TestAdmitRejectsReplayedAndReordered(t *testing.T) {
	mgr := replication.NewManager(transport.NewInProcess())

	assert.Nil(t, mgr.Admit("k", 1))
	assert.Nil(t, mgr.Admit("k", 3)) // gaps are fine, order is what matters

	// Replay of an applied sequence.
	err := mgr.Admit("k", 3)
	if !errors.Is(err, sentinel.ErrSequenceReplayed) {
		t.Fatalf("expected ErrSequenceReplayed, got %v", err)
	}

	// Late delivery of an older write.
	err = mgr.Admit("k", 2)
	if !errors.Is(err, sentinel.ErrSequenceReplayed) {
		t.Fatalf("expected ErrSequenceReplayed, got %v", err)
	}

	// Other keys are unaffected.
	assert.Nil(t, mgr.Admit("other", 1))
}

func TestForgetResetsKeyState(t *testing.T) {
	mgr := replication.NewManager(transport.NewInProcess())

	assert.Equal(t, uint64(1), mgr.NextSequence("k"))
	assert.Nil(t, mgr.Admit("k", 5))

	mgr.Forget("k")

	assert.Equal(t, uint64(1), mgr.NextSequence("k"))
	assert.Nil(t, mgr.Admit("k", 1))
}

func TestPropagateReachesQuorum(t *testing.T) {
	stubs := map[cluster.NodeID]*replicaStub{"b": {}, "c": {}}
	inproc, replicas := newTestCluster(stubs)

	mgr := replication.NewManager(inproc, replication.WithConsistency(replication.ConsistencyQuorum))

	item := &cache.Item{Key: "k", Value: "v", Sequence: 1, Origin: "a"}
	res := mgr.Propagate(context.Background(), item, replicas)

	assert.True(t, res.Satisfied())
	assert.Equal(t, 3, res.Acks) // local + both replicas
	assert.Equal(t, 2, res.Needed)
	assert.Equal(t, 1, stubs["b"].count())
	assert.Equal(t, 1, stubs["c"].count())
}

func TestPropagateQuorumSurvivesOneFailure(t *testing.T) {
	stubs := map[cluster.NodeID]*replicaStub{"b": {}, "c": {fail: true}}
	inproc, replicas := newTestCluster(stubs)

	mgr := replication.NewManager(inproc,
		replication.WithConsistency(replication.ConsistencyQuorum),
		replication.WithAttempts(1),
	)

	item := &cache.Item{Key: "k", Value: "v", Sequence: 1, Origin: "a"}
	res := mgr.Propagate(context.Background(), item, replicas)

	assert.True(t, res.Satisfied())
	assert.Equal(t, 2, res.Acks)
}

func TestPropagateReportsFailedDeliveries(t *testing.T) {
	stubs := map[cluster.NodeID]*replicaStub{"b": {}, "c": {fail: true}}
	inproc, replicas := newTestCluster(stubs)

	var (
		mu     sync.Mutex
		failed []cluster.NodeID
	)

	mgr := replication.NewManager(inproc,
		replication.WithAttempts(1),
		replication.WithDeliveryFailureHandler(func(id cluster.NodeID) {
			mu.Lock()
			failed = append(failed, id)
			mu.Unlock()
		}),
	)

	item := &cache.Item{Key: "k", Value: "v", Sequence: 1, Origin: "a"}
	res := mgr.Propagate(context.Background(), item, replicas)

	assert.Equal(t, 2, res.Acks)

	// Only the replica whose retries exhausted is reported.
	assert.Equal(t, []cluster.NodeID{"c"}, failed)
}

func TestPropagateAllFailsClosed(t *testing.T) {
	stubs := map[cluster.NodeID]*replicaStub{"b": {}, "c": {fail: true}}
	inproc, replicas := newTestCluster(stubs)

	mgr := replication.NewManager(inproc,
		replication.WithConsistency(replication.ConsistencyAll),
		replication.WithAttempts(1),
	)

	item := &cache.Item{Key: "k", Value: "v", Sequence: 1, Origin: "a"}
	res := mgr.Propagate(context.Background(), item, replicas)

	assert.False(t, res.Satisfied())
	assert.Equal(t, 2, res.Acks)
	assert.Equal(t, 3, res.Needed)
}

func TestPropagateRemoveFansOut(t *testing.T) {
	stubs := map[cluster.NodeID]*replicaStub{"b": {}, "c": {}}
	inproc, replicas := newTestCluster(stubs)

	mgr := replication.NewManager(inproc)

	res := mgr.PropagateRemove(context.Background(), "k", 4, "a", replicas)
	assert.True(t, res.Satisfied())

	assert.Equal(t, []string{"k"}, stubs["b"].removed)
	assert.Equal(t, []string{"k"}, stubs["c"].removed)
}

func TestResyncObservesSequences(t *testing.T) {
	stub := &replicaStub{applied: []*cache.Item{
		{Key: "k1", Value: "v", Sequence: 9},
		{Key: "k2", Value: "v", Sequence: 2},
	}}
	inproc, nodes := newTestCluster(map[cluster.NodeID]*replicaStub{"b": stub})

	mgr := replication.NewManager(inproc)

	items, err := mgr.Resync(context.Background(), nodes[0])
	assert.Nil(t, err)
	assert.Equal(t, 2, len(items))

	// A promoted primary continues past the recovered sequences.
	assert.Equal(t, uint64(10), mgr.NextSequence("k1"))
	assert.Equal(t, uint64(3), mgr.NextSequence("k2"))
}
