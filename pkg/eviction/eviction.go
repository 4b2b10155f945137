// Package eviction implements the cache eviction policies.
//
// Policies track access metadata only; the shard store owns the values. Every
// policy answers a single question through EvictOne: which key goes next.
package eviction

import (
	"maps"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/meshcache/meshcache/internal/sentinel"
)

// IAlgorithm is the interface that must be implemented by eviction algorithms.
type IAlgorithm interface {
	// EvictOne returns the next key to be evicted from the cache.
	EvictOne() (string, bool)
	// Set registers a new entry with the policy. expiresAt is the zero time for
	// non-expiring entries.
	Set(key string, expiresAt time.Time)
	// Touch records an access to the entry.
	Touch(key string)
	// Delete removes the entry from the policy.
	Delete(key string)
	// Len returns the number of tracked entries.
	Len() int
}

// AlgorithmRegistry manages eviction algorithm constructors.
type AlgorithmRegistry struct {
	algorithms map[string]func(capacity int) (IAlgorithm, error)
}

// getDefaultAlgorithms returns the default set of eviction algorithms.
func getDefaultAlgorithms() map[string]func(capacity int) (IAlgorithm, error) {
	return map[string]func(capacity int) (IAlgorithm, error){
		"lru": func(capacity int) (IAlgorithm, error) {
			return NewLRUAlgorithm(capacity)
		},
		"lfu": func(capacity int) (IAlgorithm, error) {
			return NewLFUAlgorithm(capacity)
		},
		"ttl": func(capacity int) (IAlgorithm, error) {
			return NewTTLAlgorithm(capacity)
		},
	}
}

// NewAlgorithmRegistry creates a new algorithm registry with the defaults registered.
func NewAlgorithmRegistry() *AlgorithmRegistry {
	registry := &AlgorithmRegistry{
		algorithms: make(map[string]func(capacity int) (IAlgorithm, error)),
	}
	registry.RegisterMultiple(getDefaultAlgorithms())

	return registry
}

// Register adds a constructor under the given name.
func (r *AlgorithmRegistry) Register(name string, create func(capacity int) (IAlgorithm, error)) {
	r.algorithms[name] = create
}

// RegisterMultiple adds a set of constructors.
func (r *AlgorithmRegistry) RegisterMultiple(in map[string]func(capacity int) (IAlgorithm, error)) {
	maps.Copy(r.algorithms, in)
}

// New creates a new eviction algorithm with the given capacity.
// The algorithmName parameter selects the eviction algorithm from the registry.
func (r *AlgorithmRegistry) New(algorithmName string, capacity int) (IAlgorithm, error) {
	if algorithmName == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "algorithmName")
	}

	if capacity < 0 {
		return nil, ewrap.Wrap(sentinel.ErrInvalidCapacity, "capacity")
	}

	createFunc, ok := r.algorithms[algorithmName]
	if !ok {
		return nil, ewrap.Wrap(sentinel.ErrAlgorithmNotFound, algorithmName)
	}

	return createFunc(capacity)
}
