package meshcache

import (
	"context"
	"time"

	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/stats"
)

// Service is the service interface for the cache coordinator.
// It enables middleware to be added to the service.
type Service interface {
	crud
	// Capacity returns the per-node capacity of the cache
	Capacity() int
	// Count returns the number of items held locally
	Count(ctx context.Context) int
	// GetStats returns the stats of the cache
	GetStats() stats.Stats
	// Stop stops the cache and its background loops
	Stop(ctx context.Context) error
}

type crud interface {
	// Get retrieves a value from the cache using the key
	Get(ctx context.Context, key string) (value any, ok bool)
	// Set stores a value in the cache using the key and expiration duration
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// GetOrSet retrieves a value from the cache using the key, setting it when absent
	GetOrSet(ctx context.Context, key string, value any, expiration time.Duration) (any, error)
	// GetWithInfo fetches the full cache entry with its metadata
	GetWithInfo(ctx context.Context, key string) (*cache.Item, bool)
	// GetMultiple retrieves a list of values from the cache using the keys
	GetMultiple(ctx context.Context, keys ...string) (result map[string]any, failed map[string]error)
	// List returns a snapshot of the locally held entries
	List(ctx context.Context) ([]*cache.Item, error)
	// Remove removes values from the cache using the keys
	Remove(ctx context.Context, keys ...string) error
	// Clear removes all locally held values
	Clear(ctx context.Context) error
}

// Middleware describes a service middleware.
type Middleware func(Service) Service

// ApplyMiddleware applies middlewares to a service.
func ApplyMiddleware(svc Service, mw ...Middleware) Service {
	for _, m := range mw {
		svc = m(svc)
	}

	return svc
}
