package eviction

import (
	"container/heap"
	"sync"
	"time"

	"github.com/meshcache/meshcache/internal/sentinel"
)

// LFUAlgorithm evicts the least frequently accessed key first. Frequency ties
// are broken by oldest insertion.
type LFUAlgorithm struct {
	items map[string]*lfuNode
	freqs *frequencyHeap
	mutex sync.Mutex
	cap   int
	seq   uint64 // monotonic insertion sequence for tie-breaking
}

// lfuNode is a node in the LFU frequency heap.
type lfuNode struct {
	key      string
	count    int
	index    int
	inserted uint64 // insertion sequence (lower = older)
}

// frequencyHeap is a min-heap of nodes ordered by (count, inserted).
type frequencyHeap []*lfuNode

// Len returns the length of the heap.
func (fh frequencyHeap) Len() int { return len(fh) }

// Less orders by access count, breaking ties by oldest insertion.
func (fh frequencyHeap) Less(i, j int) bool {
	if fh[i].count == fh[j].count {
		return fh[i].inserted < fh[j].inserted
	}

	return fh[i].count < fh[j].count
}

// Swap swaps the nodes at index i and j.
func (fh frequencyHeap) Swap(i, j int) {
	fh[i], fh[j] = fh[j], fh[i]
	fh[i].index = i
	fh[j].index = j
}

// Push adds a node to the heap.
func (fh *frequencyHeap) Push(x any) {
	n := len(*fh)

	node, ok := x.(*lfuNode)
	if ok {
		node.index = n
		*fh = append(*fh, node)
	}
}

// Pop removes the last node from the heap.
func (fh *frequencyHeap) Pop() any {
	old := *fh
	n := len(old)
	node := old[n-1]

	node.index = -1
	*fh = old[0 : n-1]

	return node
}

// NewLFUAlgorithm creates a new LFU policy with the given capacity.
func NewLFUAlgorithm(capacity int) (*LFUAlgorithm, error) {
	if capacity < 0 {
		return nil, sentinel.ErrInvalidCapacity
	}

	return &LFUAlgorithm{
		items: make(map[string]*lfuNode, capacity),
		freqs: &frequencyHeap{},
		cap:   capacity,
	}, nil
}

// EvictOne removes and returns the least frequently used key.
func (l *LFUAlgorithm) EvictOne() (string, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.freqs.Len() == 0 {
		return "", false
	}

	node, ok := heap.Pop(l.freqs).(*lfuNode)
	if !ok {
		return "", false
	}

	delete(l.items, node.key)

	return node.key, true
}

// Set registers a new entry with an initial access count of one.
func (l *LFUAlgorithm) Set(key string, _ time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if node, ok := l.items[key]; ok {
		node.count++
		heap.Fix(l.freqs, node.index)

		return
	}

	l.seq++
	node := &lfuNode{key: key, count: 1, inserted: l.seq}
	l.items[key] = node
	heap.Push(l.freqs, node)
}

// Touch increments the access count for the key.
func (l *LFUAlgorithm) Touch(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node, ok := l.items[key]
	if !ok {
		return
	}

	node.count++
	heap.Fix(l.freqs, node.index)
}

// Delete removes the key from the policy.
func (l *LFUAlgorithm) Delete(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node, ok := l.items[key]
	if !ok {
		return
	}

	heap.Remove(l.freqs, node.index)
	delete(l.items, key)
}

// Len returns the number of tracked keys.
func (l *LFUAlgorithm) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return len(l.items)
}
