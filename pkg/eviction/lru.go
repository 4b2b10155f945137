package eviction

import (
	"sync"
	"time"

	"github.com/meshcache/meshcache/internal/sentinel"
)

// lruNode is a node in the LRU recency list.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// lruNodePool recycles list nodes across evict/insert churn.
//
//nolint:gochecknoglobals
var lruNodePool = sync.Pool{
	New: func() any { return &lruNode{} },
}

// LRUAlgorithm evicts the least recently accessed key first. Recency is kept in
// a doubly-linked list: touched keys move to the head, the tail is the victim.
type LRUAlgorithm struct {
	capacity int
	items    map[string]*lruNode
	head     *lruNode
	tail     *lruNode
	mutex    sync.Mutex
}

// NewLRUAlgorithm creates a new LRU policy with the given capacity.
func NewLRUAlgorithm(capacity int) (*LRUAlgorithm, error) {
	if capacity < 0 {
		return nil, sentinel.ErrInvalidCapacity
	}

	return &LRUAlgorithm{
		capacity: capacity,
		items:    make(map[string]*lruNode, capacity),
	}, nil
}

// EvictOne removes and returns the least recently used key.
func (l *LRUAlgorithm) EvictOne() (string, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.tail == nil {
		return "", false
	}

	victim := l.tail
	l.unlink(victim)
	delete(l.items, victim.key)

	key := victim.key
	*victim = lruNode{}
	lruNodePool.Put(victim)

	return key, true
}

// Set registers the key as most recently used.
func (l *LRUAlgorithm) Set(key string, _ time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if node, ok := l.items[key]; ok {
		l.moveToFront(node)

		return
	}

	node, ok := lruNodePool.Get().(*lruNode)
	if !ok {
		node = &lruNode{}
	}

	node.key = key
	l.items[key] = node
	l.pushFront(node)
}

// Touch moves the key to the front of the recency list.
func (l *LRUAlgorithm) Touch(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if node, ok := l.items[key]; ok {
		l.moveToFront(node)
	}
}

// Delete removes the key from the policy.
func (l *LRUAlgorithm) Delete(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node, ok := l.items[key]
	if !ok {
		return
	}

	l.unlink(node)
	delete(l.items, key)

	*node = lruNode{}
	lruNodePool.Put(node)
}

// Len returns the number of tracked keys.
func (l *LRUAlgorithm) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return len(l.items)
}

func (l *LRUAlgorithm) pushFront(node *lruNode) {
	node.prev = nil
	node.next = l.head

	if l.head != nil {
		l.head.prev = node
	}

	l.head = node

	if l.tail == nil {
		l.tail = node
	}
}

func (l *LRUAlgorithm) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	node.prev = nil
	node.next = nil
}

func (l *LRUAlgorithm) moveToFront(node *lruNode) {
	if l.head == node {
		return
	}

	l.unlink(node)
	l.pushFront(node)
}
