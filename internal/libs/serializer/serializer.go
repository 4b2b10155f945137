// Package serializer provides serialization interfaces and implementations for
// converting Go values to and from byte slices. The distributed transport uses a
// serializer to encode replicated entries and resync payloads on the wire.
package serializer

import (
	"github.com/meshcache/meshcache/internal/sentinel"
)

// ISerializer is the interface implemented by wire codecs.
type ISerializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// New returns a serializer by name, defaulting to JSON.
func New(name string) (ISerializer, error) {
	switch name {
	case "json", "":
		return &DefaultJSONSerializer{}, nil
	case "msgpack":
		return &MsgpackSerializer{}, nil
	default:
		return nil, sentinel.ErrSerializerNotFound
	}
}
