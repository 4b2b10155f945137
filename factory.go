package meshcache

import (
	"context"

	"github.com/hyp3rd/ewrap"

	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/store"
)

// Store type names accepted by the store registry.
const (
	// InMemoryStore is the in-process sharded store.
	InMemoryStore = "in-memory"
	// RedisStore is the redis-backed store.
	RedisStore = "redis"
)

// IStoreConstructor is an interface for shard store constructors with type
// safety. It returns a typed store.IStore[T] instead of any.
type IStoreConstructor[T store.IStoreConstrain] interface {
	Create(ctx context.Context, cfg *Config[T]) (store.IStore[T], error)
}

// InMemoryStoreConstructor constructs InMemory shard stores.
type InMemoryStoreConstructor struct{}

// Create creates a new InMemory shard store.
func (InMemoryStoreConstructor) Create(_ context.Context, cfg *Config[store.InMemory]) (store.IStore[store.InMemory], error) {
	return store.NewInMemory(cfg.InMemoryOptions...)
}

// RedisStoreConstructor constructs Redis shard stores.
type RedisStoreConstructor struct{}

// Create creates a new Redis shard store.
func (RedisStoreConstructor) Create(_ context.Context, cfg *Config[store.Redis]) (store.IStore[store.Redis], error) {
	return store.NewRedis(cfg.RedisOptions...)
}

// StoreManager is a factory for shard store instances. It maintains a registry
// of store constructors, stored as any internally and cast to the typed
// constructor at use site based on T.
type StoreManager struct {
	storeRegistry map[string]any
}

// NewStoreManager creates a new StoreManager with default stores pre-registered.
func NewStoreManager() *StoreManager {
	manager := &StoreManager{storeRegistry: make(map[string]any)}

	manager.RegisterStore(InMemoryStore, InMemoryStoreConstructor{})
	manager.RegisterStore(RedisStore, RedisStoreConstructor{})

	return manager
}

// RegisterStore registers a store constructor. The constructor should be a
// value implementing IStoreConstructor[T] for some T.
func (sm *StoreManager) RegisterStore(name string, constructor any) {
	sm.storeRegistry[name] = constructor
}

// NewStore creates a shard store by name from the registry.
func NewStore[T store.IStoreConstrain](ctx context.Context, sm *StoreManager, cfg *Config[T]) (store.IStore[T], error) {
	raw, ok := sm.storeRegistry[cfg.StoreType]
	if !ok {
		return nil, ewrap.Wrapf(sentinel.ErrParamCannotBeEmpty, "unknown store type %q", cfg.StoreType)
	}

	constructor, ok := raw.(IStoreConstructor[T])
	if !ok {
		return nil, ewrap.Wrapf(sentinel.ErrParamCannotBeEmpty, "store type %q does not match configured store", cfg.StoreType)
	}

	return constructor.Create(ctx, cfg)
}
