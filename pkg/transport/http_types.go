package transport

import (
	"github.com/meshcache/meshcache/pkg/cache"
)

// Shared HTTP request/response DTOs for the node-to-node transport.
type httpSetRequest struct {
	Item      *cache.Item `json:"item"`
	Replicate bool        `json:"replicate"`
}

type httpSetResponse struct {
	Error string `json:"error,omitempty"`
}

type httpGetResponse struct {
	Found bool        `json:"found"`
	Item  *cache.Item `json:"item,omitempty"`
	Error string      `json:"error,omitempty"`
}

type httpRemoveRequest struct {
	Key       string `json:"key"`
	Sequence  uint64 `json:"sequence"`
	Origin    string `json:"origin"`
	Replicate bool   `json:"replicate"`
}

type httpResyncResponse struct {
	Items []*cache.Item `json:"items"`
	Error string        `json:"error,omitempty"`
}
