package serializer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/libs/serializer"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
)

func TestNewDefaultsToJSON(t *testing.T) {
	s, err := serializer.New("")
	assert.Nil(t, err)
	assert.NotNil(t, s)
}

func TestNewUnknownSerializer(t *testing.T) {
	_, err := serializer.New("avro")
	if !errors.Is(err, sentinel.ErrSerializerNotFound) {
		t.Fatalf("expected ErrSerializerNotFound, got %v", err)
	}
}

func TestSerializersRoundTripItem(t *testing.T) {
	for _, name := range []string{"json", "msgpack"} {
		s, err := serializer.New(name)
		assert.Nil(t, err)

		in := cache.Item{
			Key:        "k",
			Value:      "payload",
			Expiration: time.Minute,
			Sequence:   42,
			Origin:     "node-a",
		}

		data, err := s.Marshal(&in)
		assert.Nil(t, err)
		assert.True(t, len(data) > 0)

		var out cache.Item

		assert.Nil(t, s.Unmarshal(data, &out))
		assert.Equal(t, in.Key, out.Key)
		assert.Equal(t, "payload", out.Value)
		assert.Equal(t, in.Sequence, out.Sequence)
		assert.Equal(t, in.Origin, out.Origin)
	}
}
