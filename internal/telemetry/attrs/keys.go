// Package attrs provides reusable OpenTelemetry attribute key constants
// to avoid duplication across middlewares.
package attrs

const (
	// AttrKeyLength is the attribute key for the length of a cache key in bytes.
	AttrKeyLength = "key.len"
	// AttrKeysCount is the attribute key for the number of cache keys being processed.
	AttrKeysCount = "keys.count"
	// AttrResultCount is the attribute key for the number of results returned.
	AttrResultCount = "result.count"
	// AttrExpirationMS is the attribute key for entry expiration in milliseconds.
	AttrExpirationMS = "expiration.ms"
	// AttrNodeID is the attribute key identifying the local node.
	AttrNodeID = "node.id"
	// AttrOwnerCount is the attribute key for the number of resolved owners for a key.
	AttrOwnerCount = "owner.count"
)
