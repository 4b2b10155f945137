// Package middleware provides service middlewares for the meshcache
// coordinator: execution logging, stats collection and OpenTelemetry
// instrumentation. Middlewares wrap the meshcache.Service interface and
// compose through meshcache.ApplyMiddleware.
package middleware

import (
	"context"
	"time"

	"github.com/meshcache/meshcache"
	"github.com/meshcache/meshcache/pkg/cache"
	"github.com/meshcache/meshcache/pkg/stats"
)

// Logger describes a logging interface allowing to implement different external,
// or custom logger. Tested with logrus and Uber's Zap (via the Sugar adapter),
// but should work with any other logger that matches the interface.
type Logger interface {
	Printf(format string, v ...any)
}

// LoggingMiddleware logs every service call and the time it took to execute.
type LoggingMiddleware struct {
	next   meshcache.Service
	logger Logger
}

// NewLoggingMiddleware returns a new LoggingMiddleware.
func NewLoggingMiddleware(next meshcache.Service, logger Logger) meshcache.Service {
	return &LoggingMiddleware{next: next, logger: logger}
}

// Get logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Get(ctx context.Context, key string) (any, bool) {
	defer func(begin time.Time) {
		mw.logger.Printf("method Get took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Get method called with key: %s", key)

	return mw.next.Get(ctx, key)
}

// Set logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Set took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Set method called with key: %s expiration: %s", key, expiration)

	return mw.next.Set(ctx, key, value, expiration)
}

// GetOrSet logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) GetOrSet(ctx context.Context, key string, value any, expiration time.Duration) (any, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetOrSet took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetOrSet method invoked with key: %s", key)

	return mw.next.GetOrSet(ctx, key, value, expiration)
}

// GetWithInfo logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) GetWithInfo(ctx context.Context, key string) (*cache.Item, bool) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetWithInfo took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetWithInfo method invoked with key: %s", key)

	return mw.next.GetWithInfo(ctx, key)
}

// GetMultiple logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) GetMultiple(ctx context.Context, keys ...string) (map[string]any, map[string]error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetMultiple took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetMultiple method invoked with keys: %s", keys)

	return mw.next.GetMultiple(ctx, keys...)
}

// List logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) List(ctx context.Context) ([]*cache.Item, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method List took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("List method invoked")

	return mw.next.List(ctx)
}

// Remove logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Remove(ctx context.Context, keys ...string) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Remove took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Remove method invoked with keys: %s", keys)

	return mw.next.Remove(ctx, keys...)
}

// Clear logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Clear(ctx context.Context) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Clear took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Clear method invoked")

	return mw.next.Clear(ctx)
}

// Capacity returns the capacity of the cache.
func (mw LoggingMiddleware) Capacity() int {
	return mw.next.Capacity()
}

// Count returns the count of the items in the cache.
func (mw LoggingMiddleware) Count(ctx context.Context) int {
	return mw.next.Count(ctx)
}

// GetStats returns the stats of the cache.
func (mw LoggingMiddleware) GetStats() stats.Stats {
	return mw.next.GetStats()
}

// Stop logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Stop(ctx context.Context) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Stop took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Stop method invoked")

	return mw.next.Stop(ctx)
}
