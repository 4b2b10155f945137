package eviction

import (
	"container/heap"
	"sync"
	"time"

	"github.com/meshcache/meshcache/internal/sentinel"
)

// TTLAlgorithm evicts the entry nearest to its absolute expiry first,
// regardless of access pattern. Entries without an expiry are kept in an LRU
// recency list and only considered once no expiring entries remain.
type TTLAlgorithm struct {
	expiring map[string]*ttlNode
	deadline *deadlineHeap
	fallback *LRUAlgorithm
	mutex    sync.Mutex
}

// ttlNode is a node in the deadline heap.
type ttlNode struct {
	key       string
	expiresAt time.Time
	index     int
}

// deadlineHeap is a min-heap ordered by absolute expiry.
type deadlineHeap []*ttlNode

func (dh deadlineHeap) Len() int { return len(dh) }

func (dh deadlineHeap) Less(i, j int) bool { return dh[i].expiresAt.Before(dh[j].expiresAt) }

func (dh deadlineHeap) Swap(i, j int) {
	dh[i], dh[j] = dh[j], dh[i]
	dh[i].index = i
	dh[j].index = j
}

func (dh *deadlineHeap) Push(x any) {
	n := len(*dh)

	node, ok := x.(*ttlNode)
	if ok {
		node.index = n
		*dh = append(*dh, node)
	}
}

func (dh *deadlineHeap) Pop() any {
	old := *dh
	n := len(old)
	node := old[n-1]

	node.index = -1
	*dh = old[0 : n-1]

	return node
}

// NewTTLAlgorithm creates a new TTL-aware policy with the given capacity.
func NewTTLAlgorithm(capacity int) (*TTLAlgorithm, error) {
	if capacity < 0 {
		return nil, sentinel.ErrInvalidCapacity
	}

	fallback, err := NewLRUAlgorithm(capacity)
	if err != nil {
		return nil, err
	}

	return &TTLAlgorithm{
		expiring: make(map[string]*ttlNode, capacity),
		deadline: &deadlineHeap{},
		fallback: fallback,
	}, nil
}

// EvictOne removes and returns the key nearest to expiry, falling back to the
// least recently used non-expiring key when nothing carries a deadline.
func (t *TTLAlgorithm) EvictOne() (string, bool) {
	t.mutex.Lock()

	if t.deadline.Len() > 0 {
		node, ok := heap.Pop(t.deadline).(*ttlNode)
		if ok {
			delete(t.expiring, node.key)
			t.mutex.Unlock()

			return node.key, true
		}
	}

	t.mutex.Unlock()

	return t.fallback.EvictOne()
}

// Set registers the entry under its expiry deadline, or with the LRU fallback
// when it never expires.
func (t *TTLAlgorithm) Set(key string, expiresAt time.Time) {
	if expiresAt.IsZero() {
		t.dropExpiring(key)
		t.fallback.Set(key, expiresAt)

		return
	}

	t.fallback.Delete(key)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if node, ok := t.expiring[key]; ok {
		node.expiresAt = expiresAt
		heap.Fix(t.deadline, node.index)

		return
	}

	node := &ttlNode{key: key, expiresAt: expiresAt}
	t.expiring[key] = node
	heap.Push(t.deadline, node)
}

// Touch updates recency for non-expiring entries. Deadline order is fixed by
// the expiry itself, so expiring entries ignore access.
func (t *TTLAlgorithm) Touch(key string) {
	t.mutex.Lock()
	_, expires := t.expiring[key]
	t.mutex.Unlock()

	if !expires {
		t.fallback.Touch(key)
	}
}

// Delete removes the key from the policy.
func (t *TTLAlgorithm) Delete(key string) {
	t.dropExpiring(key)
	t.fallback.Delete(key)
}

// Len returns the number of tracked keys.
func (t *TTLAlgorithm) Len() int {
	t.mutex.Lock()
	n := len(t.expiring)
	t.mutex.Unlock()

	return n + t.fallback.Len()
}

func (t *TTLAlgorithm) dropExpiring(key string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if node, ok := t.expiring[key]; ok {
		heap.Remove(t.deadline, node.index)
		delete(t.expiring, key)
	}
}
