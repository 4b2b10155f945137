package transport

import (
	"context"
	"sync"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
)

// InProcess implements Client for multiple nodes living in the same process.
// Handlers register under their node ID; unregistering a node simulates a
// crash or partition in tests.
type InProcess struct {
	mu       sync.RWMutex
	handlers map[cluster.NodeID]Handler
}

// NewInProcess creates a new empty in-process transport.
func NewInProcess() *InProcess {
	return &InProcess{handlers: map[cluster.NodeID]Handler{}}
}

// Register adds a handler; safe to call multiple times.
func (t *InProcess) Register(id cluster.NodeID, h Handler) {
	if h == nil {
		return
	}

	t.mu.Lock()
	t.handlers[id] = h
	t.mu.Unlock()
}

// Unregister removes a handler (simulate failure in tests).
func (t *InProcess) Unregister(id cluster.NodeID) {
	t.mu.Lock()
	delete(t.handlers, id)
	t.mu.Unlock()
}

func (t *InProcess) handler(id cluster.NodeID) (Handler, error) {
	t.mu.RLock()
	h, ok := t.handlers[id]
	t.mu.RUnlock()

	if !ok {
		return nil, sentinel.ErrNodeNotFound
	}

	return h, nil
}

// ForwardSet routes a client write to the node's handler.
func (t *InProcess) ForwardSet(ctx context.Context, node cluster.Node, item *cache.Item) error {
	h, err := t.handler(node.ID)
	if err != nil {
		return err
	}

	return h.HandleSet(ctx, item)
}

// ForwardGet reads a key from the node's handler.
func (t *InProcess) ForwardGet(ctx context.Context, node cluster.Node, key string) (*cache.Item, bool, error) {
	h, err := t.handler(node.ID)
	if err != nil {
		return nil, false, err
	}

	return h.HandleGet(ctx, key)
}

// ForwardRemove routes a client delete to the node's handler.
func (t *InProcess) ForwardRemove(ctx context.Context, node cluster.Node, key string) error {
	h, err := t.handler(node.ID)
	if err != nil {
		return err
	}

	return h.HandleRemove(ctx, key)
}

// Replicate pushes a sequenced write to the node's handler.
func (t *InProcess) Replicate(ctx context.Context, node cluster.Node, item *cache.Item) error {
	h, err := t.handler(node.ID)
	if err != nil {
		return err
	}

	return h.HandleReplicate(ctx, item)
}

// ReplicateRemove pushes a sequenced delete to the node's handler.
func (t *InProcess) ReplicateRemove(ctx context.Context, node cluster.Node, key string, seq uint64, origin string) error {
	h, err := t.handler(node.ID)
	if err != nil {
		return err
	}

	return h.HandleReplicateRemove(ctx, key, seq, origin)
}

// Resync pulls the full entry snapshot from the node's handler.
func (t *InProcess) Resync(ctx context.Context, node cluster.Node) ([]*cache.Item, error) {
	h, err := t.handler(node.ID)
	if err != nil {
		return nil, err
	}

	return h.HandleResync(ctx)
}

// Health probes the node's handler (always healthy if registered). The
// transport is shared between the test nodes, so no prober identity is sent.
func (t *InProcess) Health(ctx context.Context, node cluster.Node) error {
	h, err := t.handler(node.ID)
	if err != nil {
		return err
	}

	return h.HandleHeartbeat(ctx, cluster.Node{})
}
