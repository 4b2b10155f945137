// Package replication implements the write fan-out between a key's primary
// and its replicas: per-key sequence numbers, bounded concurrent propagation
// with retries, quorum accounting, and replica-side replay suppression.
package replication

import (
	"context"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/transport"
)

// Consistency is the write acknowledgment policy.
type Consistency int

const (
	// ConsistencyOne acknowledges after the primary write alone.
	ConsistencyOne Consistency = iota
	// ConsistencyQuorum waits for majority (floor(n/2)+1).
	ConsistencyQuorum
	// ConsistencyAll waits for every owner.
	ConsistencyAll
)

// String implements fmt.Stringer.
func (c Consistency) String() string {
	switch c {
	case ConsistencyOne:
		return "one"
	case ConsistencyQuorum:
		return "quorum"
	case ConsistencyAll:
		return "all"
	default:
		return "unknown"
	}
}

// RequiredAcks returns the ack count the policy demands for n owners.
func (c Consistency) RequiredAcks(n int) int {
	switch c {
	case ConsistencyOne:
		return 1
	case ConsistencyAll:
		return n
	case ConsistencyQuorum:
		fallthrough
	default:
		return n/2 + 1
	}
}

// AckResult reports the outcome of a propagation round.
type AckResult struct {
	Acks   int
	Needed int
}

// Satisfied reports whether the round met its quorum.
func (r AckResult) Satisfied() bool { return r.Acks >= r.Needed }

// Manager drives replication for one node. It allocates write sequence
// numbers on the primary path and suppresses replayed or reordered
// sequences on the replica path.
type Manager struct {
	transport   transport.Client
	consistency Consistency

	mu        sync.Mutex
	sequences map[string]uint64 // primary side: next sequence per key
	applied   map[string]uint64 // replica side: highest applied sequence per key

	sem           chan struct{}
	attempts      uint
	quorumTimeout time.Duration
	onFailure     func(cluster.NodeID)
}

// Option configures a Manager.
type Option func(*Manager)

// WithConsistency sets the write acknowledgment policy (default quorum).
func WithConsistency(c Consistency) Option {
	return func(m *Manager) { m.consistency = c }
}

// WithAttempts sets the per-replica delivery attempts.
func WithAttempts(attempts uint) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.attempts = attempts
		}
	}
}

// WithWorkers bounds the concurrent replica deliveries.
func WithWorkers(workers int) Option {
	return func(m *Manager) {
		if workers > 0 {
			m.sem = make(chan struct{}, workers)
		}
	}
}

// WithDeliveryFailureHandler registers a callback invoked with the replica's
// id when its delivery retries exhaust. Coordinators feed this into the
// membership failure detector so a node that stops applying writes leaves the
// preference list instead of serving staleness indefinitely.
func WithDeliveryFailureHandler(fn func(cluster.NodeID)) Option {
	return func(m *Manager) { m.onFailure = fn }
}

// WithQuorumTimeout caps how long a propagation round may wait for acks.
func WithQuorumTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.quorumTimeout = timeout
		}
	}
}

// NewManager creates a replication manager backed by the given transport.
func NewManager(client transport.Client, opts ...Option) *Manager {
	mgr := &Manager{
		transport:     client,
		consistency:   ConsistencyQuorum,
		sequences:     map[string]uint64{},
		applied:       map[string]uint64{},
		sem:           make(chan struct{}, constants.DefaultReplicationWorkers),
		attempts:      constants.DefaultReplicationRetries,
		quorumTimeout: constants.DefaultQuorumTimeout,
	}

	for _, opt := range opts {
		opt(mgr)
	}

	return mgr
}

// Consistency returns the configured write policy.
func (m *Manager) Consistency() Consistency { return m.consistency }

// NextSequence allocates the next monotonic sequence number for a key.
// Only the key's primary calls this.
func (m *Manager) NextSequence(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequences[key]++

	return m.sequences[key]
}

// ObserveSequence raises the local sequence floor for a key, so a node
// promoted to primary never reissues a sequence a replica already applied.
func (m *Manager) ObserveSequence(key string, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq > m.sequences[key] {
		m.sequences[key] = seq
	}
}

// Admit checks a replicated write against the highest applied sequence for
// its key. Stale or duplicate sequences return ErrSequenceReplayed; fresh
// ones advance the floor.
func (m *Manager) Admit(key string, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq <= m.applied[key] {
		return sentinel.ErrSequenceReplayed
	}

	m.applied[key] = seq

	return nil
}

// Forget drops the sequence bookkeeping for a key after a delete settles.
func (m *Manager) Forget(key string) {
	m.mu.Lock()
	delete(m.sequences, key)
	delete(m.applied, key)
	m.mu.Unlock()
}

// Propagate fans a sequenced write out to the replica set and counts acks.
// The local primary write counts as the first ack. The returned AckResult
// reports quorum status; callers decide whether a miss is fatal.
func (m *Manager) Propagate(ctx context.Context, item *cache.Item, replicas []cluster.Node) AckResult {
	needed := m.consistency.RequiredAcks(len(replicas) + 1)

	acks := m.fanOut(ctx, replicas, func(ctx context.Context, node cluster.Node) error {
		return m.transport.Replicate(ctx, node, item)
	})

	return AckResult{Acks: 1 + acks, Needed: needed}
}

// PropagateRemove fans a sequenced delete out to the replica set.
func (m *Manager) PropagateRemove(ctx context.Context, key string, seq uint64, origin string, replicas []cluster.Node) AckResult {
	needed := m.consistency.RequiredAcks(len(replicas) + 1)

	acks := m.fanOut(ctx, replicas, func(ctx context.Context, node cluster.Node) error {
		return m.transport.ReplicateRemove(ctx, node, key, seq, origin)
	})

	return AckResult{Acks: 1 + acks, Needed: needed}
}

// fanOut delivers to every replica concurrently, bounded by the worker
// semaphore, retrying transient failures, and returns the ack count.
func (m *Manager) fanOut(ctx context.Context, replicas []cluster.Node, send func(context.Context, cluster.Node) error) int {
	if len(replicas) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, m.quorumTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		acks int
	)

	for _, node := range replicas {
		wg.Add(1)

		go func(node cluster.Node) {
			defer wg.Done()

			select {
			case m.sem <- struct{}{}:
				defer func() { <-m.sem }()
			case <-ctx.Done():
				return
			}

			err := retry.Do(
				func() error { return send(ctx, node) },
				retry.Context(ctx),
				retry.Attempts(m.attempts),
				retry.Delay(time.Millisecond),
				retry.DelayType(retry.BackOffDelay),
				retry.LastErrorOnly(true),
			)
			if err != nil {
				if m.onFailure != nil {
					m.onFailure(node.ID)
				}

				return
			}

			mu.Lock()
			acks++
			mu.Unlock()
		}(node)
	}

	wg.Wait()

	return acks
}

// Resync pulls the full entry snapshot from a peer, for a replica catching
// up after recovery or a freshly promoted primary backfilling its set.
func (m *Manager) Resync(ctx context.Context, from cluster.Node) ([]*cache.Item, error) {
	items, err := m.transport.Resync(ctx, from)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		m.ObserveSequence(item.Key, item.Sequence)
	}

	return items, nil
}
