package cluster

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/meshcache/meshcache/internal/sentinel"
)

const defaultVirtualNodes = 150

// Ring implements a consistent hashing ring with virtual nodes. The ring state
// is an immutable View swapped atomically on mutation, so Owners lookups never
// contend with membership-driven rebuilds.
type Ring struct {
	mu        sync.Mutex // serializes mutations only
	vnPerNode int
	view      atomic.Pointer[View]
}

type vnode struct {
	hash uint64
	nid  NodeID
	idx  uint16
}

// View is an immutable snapshot of the ring. Coordinators retain the view they
// resolved against so that membership changes can be diffed key by key.
type View struct {
	vnodes []vnode
	nodes  map[NodeID]Node
}

// RingOption configures ring.
type RingOption func(*Ring)

// WithVirtualNodes sets the number of virtual nodes per physical node.
func WithVirtualNodes(n int) RingOption {
	return func(r *Ring) {
		if n > 0 {
			r.vnPerNode = n
		}
	}
}

// NewRing constructs a new Ring applying provided options.
func NewRing(opts ...RingOption) *Ring {
	r := &Ring{vnPerNode: defaultVirtualNodes}
	for _, o := range opts {
		o(r)
	}

	r.view.Store(&View{nodes: map[NodeID]Node{}})

	return r
}

// VirtualNodesPerNode returns configured virtual nodes per physical node.
func (r *Ring) VirtualNodesPerNode() int { return r.vnPerNode }

// View returns the current immutable ring view.
func (r *Ring) View() *View { return r.view.Load() }

// AddNode inserts the virtual nodes for `node` into the ring. Idempotent if the
// node is already present.
func (r *Ring) AddNode(node Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.view.Load()
	if _, ok := cur.nodes[node.ID]; ok {
		return
	}

	nodes := cloneNodes(cur.nodes)
	nodes[node.ID] = node
	r.view.Store(r.build(nodes))
}

// RemoveNode removes all virtual nodes owned by the node. No-op if absent.
func (r *Ring) RemoveNode(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.view.Load()
	if _, ok := cur.nodes[id]; !ok {
		return
	}

	nodes := cloneNodes(cur.nodes)
	delete(nodes, id)
	r.view.Store(r.build(nodes))
}

// SetNodes rebuilds the ring from the given node list. Deterministic: the same
// node set always produces the same ring regardless of insertion order.
func (r *Ring) SetNodes(nodes []Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := make(map[NodeID]Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}

	r.view.Store(r.build(m))
}

// Owners returns the first n distinct physical nodes encountered walking
// clockwise from hash(key). Fails with ErrInsufficientNodes when fewer than n
// distinct nodes populate the ring.
func (r *Ring) Owners(key string, n int) ([]Node, error) {
	return r.view.Load().Owners(key, n)
}

// Nodes returns all physical nodes currently on the ring.
func (r *Ring) Nodes() []Node { return r.view.Load().Nodes() }

// build assembles a sorted view for the node set.
func (r *Ring) build(nodes map[NodeID]Node) *View {
	vn := make([]vnode, 0, len(nodes)*r.vnPerNode)

	for id := range nodes {
		base := string(id)
		for i := range r.vnPerNode {
			// hash input combines node id and replica index
			buf := make([]byte, 0, len(base)+2)
			buf = append(buf, base...)
			buf = append(buf, byte(i>>8), byte(i)) //nolint:mnd // replica index, big-endian

			vn = append(vn, vnode{hash: xxhash.Sum64(buf), nid: id, idx: uint16(i)})
		}
	}

	// Strict total order: ties on hash broken by (node id, replica index) so the
	// ring stays deterministic even for colliding virtual positions.
	sort.Slice(vn, func(i, j int) bool {
		if vn[i].hash != vn[j].hash {
			return vn[i].hash < vn[j].hash
		}

		if vn[i].nid != vn[j].nid {
			return vn[i].nid < vn[j].nid
		}

		return vn[i].idx < vn[j].idx
	})

	return &View{vnodes: vn, nodes: nodes}
}

// Owners walks the view clockwise from hash(key) collecting n distinct physical
// nodes, wrapping at the smallest entry (ring closure).
func (v *View) Owners(key string, n int) ([]Node, error) {
	if n <= 0 {
		return nil, sentinel.ErrParamCannotBeEmpty
	}

	if len(v.nodes) < n {
		return nil, sentinel.ErrInsufficientNodes
	}

	target := xxhash.Sum64String(key)

	idx := sort.Search(len(v.vnodes), func(i int) bool { return v.vnodes[i].hash >= target })
	if idx == len(v.vnodes) {
		idx = 0
	}

	res := make([]Node, 0, n)
	seen := make(map[NodeID]struct{}, n)

	for i := 0; len(res) < n && i < len(v.vnodes); i++ {
		vn := v.vnodes[(idx+i)%len(v.vnodes)]
		if _, ok := seen[vn.nid]; ok {
			continue
		}

		seen[vn.nid] = struct{}{}
		res = append(res, v.nodes[vn.nid])
	}

	if len(res) < n {
		return nil, sentinel.ErrInsufficientNodes
	}

	return res, nil
}

// Primary returns the first owner for the key, if any.
func (v *View) Primary(key string) (Node, bool) {
	owners, err := v.Owners(key, 1)
	if err != nil {
		return Node{}, false
	}

	return owners[0], true
}

// Nodes returns a copy of the physical node set.
func (v *View) Nodes() []Node {
	out := make([]Node, 0, len(v.nodes))
	for _, n := range v.nodes {
		out = append(out, n)
	}

	return out
}

// Size returns the number of physical nodes in the view.
func (v *View) Size() int { return len(v.nodes) }

func cloneNodes(in map[NodeID]Node) map[NodeID]Node {
	out := make(map[NodeID]Node, len(in)+1)
	for k, v := range in {
		out[k] = v
	}

	return out
}
