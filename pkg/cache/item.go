// Package cache defines the cache entry type and the sharded concurrent map the
// shard store is built on.
package cache

import (
	"bytes"
	"encoding"
	"strings"
	"sync"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/hyp3rd/ewrap"

	"github.com/meshcache/meshcache/internal/sentinel"
)

const bytesPerKB = 1024

// Global pool and codec handle for zero-alloc SetSize.
// These are intentionally package-scoped to amortize allocations across calls.
//
//nolint:gochecknoglobals
var cborHandle = &codec.CborHandle{}

//nolint:gochecknoglobals
var bufPool = sync.Pool{ // *bytes.Buffer
	New: func() any { return new(bytes.Buffer) },
}

// ItemPoolManager manages Item object pools for memory efficiency.
type ItemPoolManager struct {
	pool sync.Pool
}

// NewItemPoolManager creates a new ItemPoolManager.
func NewItemPoolManager() *ItemPoolManager {
	return &ItemPoolManager{
		pool: sync.Pool{New: func() any { return &Item{} }},
	}
}

// Get retrieves an Item from the pool.
func (m *ItemPoolManager) Get() *Item {
	if v, ok := m.pool.Get().(*Item); ok {
		return v
	}

	return &Item{}
}

// Put returns an Item to the pool.
func (m *ItemPoolManager) Put(it *Item) {
	if it == nil {
		return
	}
	// Zero to avoid retaining references across pool reuses
	*it = Item{}
	m.pool.Put(it)
}

// Item is a single cache entry. The primary owner of a key holds the
// authoritative copy; replicas hold shadow copies overwritten on every
// replicated write, identified by Sequence and Origin.
type Item struct {
	Key         string        // key of the entry
	Value       any           // value of the entry
	CreatedAt   time.Time     // creation timestamp, basis for absolute expiry
	LastAccess  time.Time     // last access time (LRU metadata)
	Size        int64         // size in bytes
	Expiration  time.Duration // time-to-live relative to CreatedAt (0 = no expiry)
	AccessCount uint32        // number of times the entry has been accessed (LFU metadata)
	Sequence    uint64        // per-key write sequence assigned by the primary
	Origin      string        // node id of the primary that issued the write
}

// Touch updates last access time and increments access count.
func (it *Item) Touch() {
	it.LastAccess = time.Now()
	it.AccessCount++
}

// SizeMB returns the size of the Item in megabytes.
func (it *Item) SizeMB() float64 { return float64(it.Size) / (bytesPerKB * bytesPerKB) }

// SizeKB returns the size of the Item in kilobytes.
func (it *Item) SizeKB() float64 { return float64(it.Size) / bytesPerKB }

// Valid returns an error if the item is invalid, nil otherwise.
func (it *Item) Valid() error {
	if strings.TrimSpace(it.Key) == "" {
		return sentinel.ErrInvalidKey
	}

	if it.Value == nil {
		return sentinel.ErrNilValue
	}

	if it.Expiration < 0 {
		it.Expiration = 0

		return sentinel.ErrInvalidExpiration
	}

	return nil
}

// ExpiresAt returns the absolute expiry, or the zero time for non-expiring entries.
func (it *Item) ExpiresAt() time.Time {
	if it.Expiration <= 0 {
		return time.Time{}
	}

	return it.CreatedAt.Add(it.Expiration)
}

// Expired reports whether the entry has passed its absolute expiry.
func (it *Item) Expired() bool {
	return it.Expiration > 0 && time.Since(it.CreatedAt) > it.Expiration
}

// Sizer allows custom values to report their encoded size without serialization.
type Sizer interface{ SizeBytes() int }

// SetSize computes and sets Size using fast paths and a pooled CBOR encoder.
func (it *Item) SetSize() error {
	// Fast paths for common types
	switch val := it.Value.(type) {
	case []byte:
		it.Size = int64(len(val))

		return nil
	case string:
		it.Size = int64(len(val))

		return nil
	case Sizer:
		it.Size = int64(val.SizeBytes())

		return nil
	case encoding.BinaryMarshaler:
		data, err := val.MarshalBinary()
		if err != nil {
			return ewrap.Wrap(err, "marshal binary size")
		}

		it.Size = int64(len(data))

		return nil
	}

	buf, ok := bufPool.Get().(*bytes.Buffer)
	if !ok {
		buf = new(bytes.Buffer)
	}

	buf.Reset()
	defer bufPool.Put(buf)

	enc := codec.NewEncoder(buf, cborHandle)

	err := enc.Encode(it.Value)
	if err != nil {
		return ewrap.Wrap(err, "encode value size")
	}

	it.Size = int64(buf.Len())

	return nil
}
