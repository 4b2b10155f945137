package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/ewrap"

	"github.com/meshcache/meshcache/internal/libs/serializer"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
)

const defaultKeysSetName = "meshcache:keys"

// Redis is a shard store backed by a redis instance. Entries are serialized
// into a hash per key; redis TTLs carry the expiration, so there is no local
// sweep and the eviction policy is delegated to redis' own maxmemory handling.
type Redis struct {
	rdb         *redis.Client
	serializer  serializer.ISerializer
	keysSetName string
	capacity    int
}

// NewRedis creates a new redis-backed shard store with the given options.
func NewRedis(opts ...Option[Redis]) (IStore[Redis], error) {
	storeInstance := &Redis{
		keysSetName: defaultKeysSetName,
	}
	ApplyOptions(storeInstance, opts...)

	if storeInstance.rdb == nil {
		return nil, sentinel.ErrNilClient
	}

	if storeInstance.capacity < 0 {
		return nil, sentinel.ErrInvalidCapacity
	}

	if storeInstance.serializer == nil {
		ser, err := serializer.New("msgpack")
		if err != nil {
			return nil, err
		}

		storeInstance.serializer = ser
	}

	return storeInstance, nil
}

// Capacity returns the configured logical capacity.
func (rb *Redis) Capacity() int { return rb.capacity }

// SetCapacity sets the logical capacity.
func (rb *Redis) SetCapacity(capacity int) {
	if capacity < 0 {
		return
	}

	rb.capacity = capacity
}

// Count returns the number of tracked keys.
func (rb *Redis) Count(ctx context.Context) int {
	count, err := rb.rdb.SCard(ctx, rb.keysSetName).Result()
	if err != nil {
		return 0
	}

	return int(count)
}

// Get retrieves the entry with the given key.
func (rb *Redis) Get(ctx context.Context, key string) (*cache.Item, bool) {
	data, err := rb.rdb.HGet(ctx, key, "data").Bytes()
	if err != nil {
		return nil, false
	}

	item := &cache.Item{}

	err = rb.serializer.Unmarshal(data, item)
	if err != nil {
		return nil, false
	}

	if item.Expired() {
		_ = rb.Remove(ctx, key) //nolint:errcheck // lazy expiration is best-effort

		return nil, false
	}

	item.Touch()

	return item, true
}

// Set adds or overwrites an entry, letting redis expire it via TTL.
func (rb *Redis) Set(ctx context.Context, item *cache.Item) error {
	err := item.Valid()
	if err != nil {
		return err
	}

	data, err := rb.serializer.Marshal(item)
	if err != nil {
		return err
	}

	pipe := rb.rdb.TxPipeline()

	err = pipe.HSet(ctx, item.Key, map[string]any{"data": data}).Err()
	if err != nil {
		return ewrap.Wrap(err, "failed to set entry in redis")
	}

	pipe.SAdd(ctx, rb.keysSetName, item.Key)

	if item.Expiration > 0 {
		pipe.Expire(ctx, item.Key, item.Expiration)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return ewrap.Wrap(err, "failed to execute redis pipeline")
	}

	return nil
}

// Remove deletes the entries with the given keys.
func (rb *Redis) Remove(ctx context.Context, keys ...string) error {
	_, err := rb.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, rb.keysSetName, keys)

		return nil
	})
	if err != nil {
		return ewrap.Wrap(err, "failed to remove entries from redis")
	}

	return nil
}

// List returns a snapshot of all entries.
func (rb *Redis) List(ctx context.Context) ([]*cache.Item, error) {
	keys, err := rb.rdb.SMembers(ctx, rb.keysSetName).Result()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to list keys from redis")
	}

	items := make([]*cache.Item, 0, len(keys))

	for _, key := range keys {
		if item, ok := rb.Get(ctx, key); ok {
			items = append(items, item)
		}
	}

	return items, nil
}

// Clear removes all tracked entries.
func (rb *Redis) Clear(ctx context.Context) error {
	keys, err := rb.rdb.SMembers(ctx, rb.keysSetName).Result()
	if err != nil {
		return ewrap.Wrap(err, "failed to list keys from redis")
	}

	if len(keys) > 0 {
		err = rb.Remove(ctx, keys...)
		if err != nil {
			return err
		}
	}

	return rb.rdb.Del(ctx, rb.keysSetName).Err()
}

// EvictOne is delegated to redis' own eviction; it always reports no victim.
func (rb *Redis) EvictOne(_ context.Context) (string, bool) { return "", false }

// Stop is a no-op for the redis store.
func (rb *Redis) Stop(_ context.Context) error { return nil }
