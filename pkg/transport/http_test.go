package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/transport"
)

func startHTTPNode(t *testing.T, handler transport.Handler) cluster.Node {
	t.Helper()

	server := transport.NewHTTPServer("127.0.0.1:0", handler)

	ctx, cancel := context.WithCancel(context.Background())

	err := server.Start(ctx)
	assert.Nil(t, err)

	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()

		_ = server.Stop(stopCtx)
		cancel()
	})

	return *cluster.NewNode("remote", server.Addr())
}

func TestHTTPTransportRoundTrip(t *testing.T) {
	ctx := context.Background()

	handler := newEchoHandler()
	node := startHTTPNode(t, handler)
	client := transport.NewHTTPClient(2 * time.Second)

	item := &cache.Item{Key: "k", Value: "v", Sequence: 3, Origin: "a"}
	assert.Nil(t, client.ForwardSet(ctx, node, item))

	got, ok, err := client.ForwardGet(ctx, node, "k")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got.Value)
	assert.Equal(t, uint64(3), got.Sequence)
	assert.Equal(t, "a", got.Origin)

	_, ok, err = client.ForwardGet(ctx, node, "absent")
	assert.Nil(t, err)
	assert.False(t, ok)

	// Replicated writes take the replica path, not the primary one.
	assert.Nil(t, client.Replicate(ctx, node, &cache.Item{Key: "r", Value: "v", Sequence: 1, Origin: "a"}))

	handler.mu.Lock()
	replicated := append([]string(nil), handler.replicated...)
	handler.mu.Unlock()
	assert.Equal(t, []string{"r"}, replicated)

	items, err := client.Resync(ctx, node)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(items))

	assert.Nil(t, client.ReplicateRemove(ctx, node, "r", 2, "a"))

	handler.mu.Lock()
	removedSeq := handler.removedSeq["r"]
	handler.mu.Unlock()
	assert.Equal(t, uint64(2), removedSeq)

	assert.Nil(t, client.ForwardRemove(ctx, node, "k"))

	_, ok, err = client.ForwardGet(ctx, node, "k")
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestHTTPTransportHealthCarriesOrigin(t *testing.T) {
	ctx := context.Background()

	handler := newEchoHandler()
	node := startHTTPNode(t, handler)

	client := transport.NewHTTPClient(2 * time.Second)
	client.SetOrigin(*cluster.NewNode("prober", "10.0.0.7:7946"))

	assert.Nil(t, client.Health(ctx, node))

	handler.mu.Lock()
	heartbeats := append([]cluster.Node(nil), handler.heartbeats...)
	handler.mu.Unlock()

	assert.Equal(t, 1, len(heartbeats))
	assert.Equal(t, cluster.NodeID("prober"), heartbeats[0].ID)
	assert.Equal(t, "10.0.0.7:7946", heartbeats[0].Address)
}

func TestHTTPTransportStatusMapping(t *testing.T) {
	ctx := context.Background()

	handler := newEchoHandler()
	handler.setErr = sentinel.ErrStalePrimary
	handler.replicateErr = sentinel.ErrSequenceReplayed
	handler.removeErr = sentinel.ErrKeyNotFound

	node := startHTTPNode(t, handler)
	client := transport.NewHTTPClient(2 * time.Second)

	err := client.ForwardSet(ctx, node, &cache.Item{Key: "k", Value: "v"})
	if !errors.Is(err, sentinel.ErrStalePrimary) {
		t.Fatalf("expected ErrStalePrimary, got %v", err)
	}

	err = client.Replicate(ctx, node, &cache.Item{Key: "k", Value: "v", Sequence: 1})
	if !errors.Is(err, sentinel.ErrSequenceReplayed) {
		t.Fatalf("expected ErrSequenceReplayed, got %v", err)
	}

	err = client.ForwardRemove(ctx, node, "k")
	if !errors.Is(err, sentinel.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	handler.mu.Lock()
	handler.setErr = sentinel.ErrUnavailable
	handler.mu.Unlock()

	err = client.ForwardSet(ctx, node, &cache.Item{Key: "k", Value: "v"})
	if !errors.Is(err, sentinel.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
