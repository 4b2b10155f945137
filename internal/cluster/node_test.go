package cluster_test

import (
	"errors"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/cluster"
)

func TestNewNodeAssignsRandomIDWhenEmpty(t *testing.T) {
	a := cluster.NewNode("", "x:7946")
	b := cluster.NewNode("", "x:7946")

	assert.True(t, a.ID != "")
	assert.True(t, a.ID != b.ID)
	assert.Equal(t, cluster.NodeAlive, a.State)
	assert.Equal(t, uint64(1), a.Incarnation)
}

func TestDeriveNodeIDDeterministic(t *testing.T) {
	assert.Equal(t, cluster.DeriveNodeID("10.0.0.1:7946"), cluster.DeriveNodeID("10.0.0.1:7946"))
	assert.True(t, cluster.DeriveNodeID("10.0.0.1:7946") != cluster.DeriveNodeID("10.0.0.2:7946"))
}

func TestNodeValidate(t *testing.T) {
	assert.Nil(t, cluster.NewNode("a", "127.0.0.1:7946").Validate())

	err := cluster.NewNode("a", "").Validate()
	if !errors.Is(err, cluster.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}

	err = cluster.NewNode("a", "no-port").Validate()
	if !errors.Is(err, cluster.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestNodeStateString(t *testing.T) {
	assert.Equal(t, "alive", cluster.NodeAlive.String())
	assert.Equal(t, "suspect", cluster.NodeSuspect.String())
	assert.Equal(t, "dead", cluster.NodeDead.String())
}
