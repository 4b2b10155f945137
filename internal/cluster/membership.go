package cluster

import (
	"sync"
	"time"
)

// Membership tracks live and dead nodes. It consumes join/leave/heartbeat
// events from an external membership collaborator and owns the local failure
// state machine: alive -> suspect -> dead, forward only. A dead node cannot
// resume; it must rejoin through Upsert with a fresh incarnation.
//
// Every change that affects key ownership rebuilds the ring from the alive
// node set and notifies registered observers with the new ring view.
type Membership struct {
	mu     sync.Mutex
	nodes  map[NodeID]*Node
	misses map[NodeID]int
	ring   *Ring
	ver    MembershipVersion

	suspectThreshold int
	deadThreshold    int

	observers []func(*View)
}

// MembershipOption configures Membership.
type MembershipOption func(*Membership)

// WithFailureThresholds sets the consecutive-miss counts that trigger the
// suspect and dead transitions.
func WithFailureThresholds(suspect, dead int) MembershipOption {
	return func(m *Membership) {
		if suspect > 0 {
			m.suspectThreshold = suspect
		}

		if dead > suspect {
			m.deadThreshold = dead
		}
	}
}

const (
	defaultSuspectThreshold = 3
	defaultDeadThreshold    = 8
)

// NewMembership creates a membership container bound to a ring.
func NewMembership(ring *Ring, opts ...MembershipOption) *Membership {
	m := &Membership{
		nodes:            map[NodeID]*Node{},
		misses:           map[NodeID]int{},
		ring:             ring,
		suspectThreshold: defaultSuspectThreshold,
		deadThreshold:    defaultDeadThreshold,
	}
	for _, o := range opts {
		o(m)
	}

	return m
}

// Ring returns the underlying ring reference.
func (m *Membership) Ring() *Ring { return m.ring }

// Version returns the current membership epoch.
func (m *Membership) Version() uint64 { return m.ver.Get() }

// OnChange registers an observer invoked with the new ring view after every
// ownership-affecting change. Observers run outside the membership lock.
func (m *Membership) OnChange(fn func(*View)) {
	if fn == nil {
		return
	}

	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Upsert adds or refreshes a node (join event) and rebuilds the ring. A node
// previously declared dead re-enters with a bumped incarnation.
func (m *Membership) Upsert(n *Node) {
	m.mu.Lock()

	n.LastSeen = time.Now()

	if prev, ok := m.nodes[n.ID]; ok && prev.State == NodeDead {
		n.Incarnation = prev.Incarnation + 1
		n.State = NodeAlive
	}

	m.nodes[n.ID] = n
	delete(m.misses, n.ID)
	m.ver.Next()

	m.rebuildLocked()
	view := m.ring.View()
	obs := m.snapshotObserversLocked()
	m.mu.Unlock()

	notify(obs, view)
}

// Remove deletes a node from membership (leave event) and rebuilds the ring.
// Returns true if the node was present.
func (m *Membership) Remove(id NodeID) bool {
	m.mu.Lock()

	if _, ok := m.nodes[id]; !ok {
		m.mu.Unlock()

		return false
	}

	delete(m.nodes, id)
	delete(m.misses, id)
	m.ver.Next()

	m.rebuildLocked()
	view := m.ring.View()
	obs := m.snapshotObserversLocked()
	m.mu.Unlock()

	notify(obs, view)

	return true
}

// MarkAlive transitions a suspect node back to alive. Dead nodes stay dead.
func (m *Membership) MarkAlive(id NodeID) bool { return m.mark(id, NodeAlive) }

// MarkSuspect transitions an alive node to suspect, excluding it from ring
// ownership until it recovers or is declared dead.
func (m *Membership) MarkSuspect(id NodeID) bool { return m.mark(id, NodeSuspect) }

// MarkDead declares a node permanently departed. It is dropped from the ring;
// rejoining requires a fresh Upsert.
func (m *Membership) MarkDead(id NodeID) bool { return m.mark(id, NodeDead) }

// RecordHeartbeat resets the miss counter for a node and revives it from
// suspicion if the heartbeat resumed before the dead threshold.
func (m *Membership) RecordHeartbeat(id NodeID) {
	m.mu.Lock()

	node, ok := m.nodes[id]
	if !ok {
		m.mu.Unlock()

		return
	}

	m.misses[id] = 0
	node.LastSeen = time.Now()

	if node.State != NodeSuspect {
		m.mu.Unlock()

		return
	}

	node.State = NodeAlive
	node.Incarnation++
	m.ver.Next()

	m.rebuildLocked()
	view := m.ring.View()
	obs := m.snapshotObserversLocked()
	m.mu.Unlock()

	notify(obs, view)
}

// RecordMiss increments the consecutive-miss counter for a node, applying the
// suspect and dead transitions when the configured thresholds are crossed.
func (m *Membership) RecordMiss(id NodeID) {
	m.mu.Lock()

	node, ok := m.nodes[id]
	if !ok || node.State == NodeDead {
		m.mu.Unlock()

		return
	}

	m.misses[id]++
	missed := m.misses[id]

	var next NodeState

	switch {
	case missed >= m.deadThreshold:
		next = NodeDead
	case missed >= m.suspectThreshold && node.State == NodeAlive:
		next = NodeSuspect
	default:
		m.mu.Unlock()

		return
	}

	m.transitionLocked(node, next)
	view := m.ring.View()
	obs := m.snapshotObserversLocked()
	m.mu.Unlock()

	notify(obs, view)
}

// Known reports whether the node is tracked, in any state.
func (m *Membership) Known(id NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.nodes[id]

	return ok
}

// List returns current nodes snapshot.
func (m *Membership) List() []*Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Node, 0, len(m.nodes))

	for _, v := range m.nodes {
		cp := *v
		out = append(out, &cp)
	}

	return out
}

// Alive returns the alive node set.
func (m *Membership) Alive() []Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.aliveLocked()
}

func (m *Membership) mark(id NodeID, state NodeState) bool {
	m.mu.Lock()

	node, ok := m.nodes[id]
	if !ok || !validTransition(node.State, state) {
		m.mu.Unlock()

		return false
	}

	m.transitionLocked(node, state)
	view := m.ring.View()
	obs := m.snapshotObserversLocked()
	m.mu.Unlock()

	notify(obs, view)

	return true
}

// validTransition enforces the forward-only state machine. Suspect may recover
// to alive; dead is terminal.
func validTransition(from, to NodeState) bool {
	switch from {
	case NodeAlive:
		return to == NodeSuspect || to == NodeDead
	case NodeSuspect:
		return to == NodeAlive || to == NodeDead
	case NodeDead:
		return false
	}

	return false
}

func (m *Membership) transitionLocked(node *Node, state NodeState) {
	node.State = state
	node.Incarnation++
	node.LastSeen = time.Now()

	if state == NodeAlive {
		m.misses[node.ID] = 0
	}

	m.ver.Next()
	m.rebuildLocked()
}

// rebuildLocked rebuilds the ring from alive nodes only: suspect nodes are
// excluded from the preference list until they resynchronize.
func (m *Membership) rebuildLocked() {
	m.ring.SetNodes(m.aliveLocked())
}

func (m *Membership) aliveLocked() []Node {
	alive := make([]Node, 0, len(m.nodes))

	for _, n := range m.nodes {
		if n.State == NodeAlive {
			alive = append(alive, *n)
		}
	}

	return alive
}

func (m *Membership) snapshotObserversLocked() []func(*View) {
	out := make([]func(*View), len(m.observers))
	copy(out, m.observers)

	return out
}

func notify(observers []func(*View), view *View) {
	for _, fn := range observers {
		fn(view)
	}
}
