package cluster_test

import (
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/cluster"
)

func newMembership(t *testing.T, ids ...string) *cluster.Membership {
	t.Helper()

	m := cluster.NewMembership(cluster.NewRing())
	for _, id := range ids {
		m.Upsert(cluster.NewNode(id, id+":7946"))
	}

	return m
}

func TestMembershipForwardOnlyTransitions(t *testing.T) {
	m := newMembership(t, "a")

	assert.True(t, m.MarkSuspect("a"))
	assert.True(t, m.MarkAlive("a")) // suspect may recover
	assert.True(t, m.MarkSuspect("a"))
	assert.True(t, m.MarkDead("a"))

	// Dead is terminal.
	assert.False(t, m.MarkAlive("a"))
	assert.False(t, m.MarkSuspect("a"))
	assert.False(t, m.MarkDead("a"))
}

func TestMembershipSuspectExcludedFromRing(t *testing.T) {
	m := newMembership(t, "a", "b", "c")
	assert.Equal(t, 3, m.Ring().View().Size())

	m.MarkSuspect("b")
	assert.Equal(t, 2, m.Ring().View().Size())

	// Recovery puts the node back on the ring.
	m.MarkAlive("b")
	assert.Equal(t, 3, m.Ring().View().Size())
}

func TestMembershipMissThresholds(t *testing.T) {
	m := cluster.NewMembership(cluster.NewRing(), cluster.WithFailureThresholds(2, 4))
	m.Upsert(cluster.NewNode("a", "a:7946"))
	m.Upsert(cluster.NewNode("b", "b:7946"))

	m.RecordMiss("b")
	assert.Equal(t, 2, m.Ring().View().Size()) // below threshold, still alive

	m.RecordMiss("b")
	assert.Equal(t, 1, m.Ring().View().Size()) // suspect at 2 misses

	m.RecordMiss("b")
	m.RecordMiss("b") // dead at 4 misses

	for _, n := range m.List() {
		if n.ID == "b" {
			assert.Equal(t, cluster.NodeDead, n.State)
		}
	}
}

func TestMembershipHeartbeatRevivesSuspect(t *testing.T) {
	m := cluster.NewMembership(cluster.NewRing(), cluster.WithFailureThresholds(1, 5))
	m.Upsert(cluster.NewNode("a", "a:7946"))
	m.Upsert(cluster.NewNode("b", "b:7946"))

	m.RecordMiss("b")
	assert.Equal(t, 1, m.Ring().View().Size())

	m.RecordHeartbeat("b")
	assert.Equal(t, 2, m.Ring().View().Size())

	// The miss counter was reset: one more miss re-suspects, not kills.
	m.RecordMiss("b")

	for _, n := range m.List() {
		if n.ID == "b" {
			assert.Equal(t, cluster.NodeSuspect, n.State)
		}
	}
}

func TestMembershipDeadRejoinBumpsIncarnation(t *testing.T) {
	m := newMembership(t, "a")
	m.MarkDead("a")

	var deadIncarnation uint64

	for _, n := range m.List() {
		deadIncarnation = n.Incarnation
	}

	m.Upsert(cluster.NewNode("a", "a:7946"))

	for _, n := range m.List() {
		assert.Equal(t, cluster.NodeAlive, n.State)
		assert.True(t, n.Incarnation > deadIncarnation)
	}

	assert.Equal(t, 1, m.Ring().View().Size())
}

func TestMembershipObserverNotified(t *testing.T) {
	m := cluster.NewMembership(cluster.NewRing())

	var views []*cluster.View

	m.OnChange(func(v *cluster.View) { views = append(views, v) })

	m.Upsert(cluster.NewNode("a", "a:7946"))
	m.Upsert(cluster.NewNode("b", "b:7946"))
	m.MarkDead("b")

	assert.Equal(t, 3, len(views))
	assert.Equal(t, 1, views[len(views)-1].Size())
}

func TestMembershipVersionAdvances(t *testing.T) {
	m := newMembership(t, "a")
	v1 := m.Version()

	m.Upsert(cluster.NewNode("b", "b:7946"))
	assert.True(t, m.Version() > v1)
}
