// Package cluster contains primitives for node identity, membership tracking and
// consistent hashing used by the distributed cache.
package cluster

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// NodeState represents membership state of a node.
type NodeState int

// Node state enumeration. Transitions move forward only: a dead node cannot
// resume, it must rejoin with a fresh incarnation.
const (
	NodeAlive NodeState = iota
	NodeSuspect
	NodeDead
)

func (s NodeState) String() string {
	switch s {
	case NodeAlive:
		return "alive"
	case NodeSuspect:
		return "suspect"
	case NodeDead:
		return "dead"
	}

	return "unknown"
}

// NodeID is a stable identifier for a node.
type NodeID string

// Node holds identity & state.
type Node struct {
	ID          NodeID
	Address     string // host:port for intra-cluster RPC
	State       NodeState
	Incarnation uint64
	LastSeen    time.Time
}

// ErrInvalidAddress is returned when the node address is invalid.
var ErrInvalidAddress = errors.New("invalid node address")

// NewNode creates a node from address (host:port). If id is empty a random UUID
// is assigned so two nodes sharing an address in tests stay distinguishable.
func NewNode(id string, addr string) *Node {
	if id == "" {
		id = uuid.NewString()
	}

	return &Node{ID: NodeID(id), Address: addr, State: NodeAlive, Incarnation: 1, LastSeen: time.Now()}
}

// DeriveNodeID returns a deterministic id for an address, so every member
// resolves the same identity for the same seed peer.
func DeriveNodeID(addr string) NodeID {
	return NodeID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("meshcache://"+addr)).String())
}

// Validate basic fields.
func (n *Node) Validate() error {
	if n.Address == "" {
		return ErrInvalidAddress
	}

	_, _, err := net.SplitHostPort(n.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	return nil
}

// Alive reports whether the node is in the alive state.
func (n *Node) Alive() bool { return n.State == NodeAlive }
