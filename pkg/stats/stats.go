// Package stats collects cache and replication statistics.
package stats

import (
	"github.com/hyp3rd/ewrap"

	"github.com/meshcache/meshcache/internal/sentinel"
)

// Metric names the counters and timings the cache reports.
type Metric string

const (
	// MetricHits counts reads served from an owner.
	MetricHits Metric = "hits"
	// MetricMisses counts reads that found no entry.
	MetricMisses Metric = "misses"
	// MetricEvictions counts capacity evictions.
	MetricEvictions Metric = "evictions"
	// MetricExpirations counts lazy and swept expirations.
	MetricExpirations Metric = "expirations"
	// MetricReplications counts replica fan-out deliveries.
	MetricReplications Metric = "replications"
	// MetricQuorumFailures counts writes that missed their quorum.
	MetricQuorumFailures Metric = "quorum_failures"
	// MetricStaleForwards counts writes bounced off a stale primary.
	MetricStaleForwards Metric = "stale_forwards"
	// MetricMigratedKeys counts keys moved on membership changes.
	MetricMigratedKeys Metric = "migrated_keys"
	// MetricTiming records operation latencies in microseconds.
	MetricTiming Metric = "timing"
)

// String implements fmt.Stringer.
func (m Metric) String() string { return string(m) }

// Stat is the aggregate view of one metric's samples.
type Stat struct {
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Min      int64   `json:"min"`
	Max      int64   `json:"max"`
	Count    int     `json:"count"`
	Sum      int64   `json:"sum"`
	Variance float64 `json:"variance"`
	Values   []int64 `json:"values"`
}

// Stats maps metric names to their aggregates.
type Stats map[string]*Stat

// ICollector is the interface a stats collector implements.
type ICollector interface {
	// Incr increments the count of a metric by the given value.
	Incr(metric Metric, value int64)
	// Decr decrements the count of a metric by the given value.
	Decr(metric Metric, value int64)
	// Timing records the time it took for an event to occur.
	Timing(metric Metric, value int64)
	// Gauge records the current value of a metric.
	Gauge(metric Metric, value int64)
	// GetStats returns the collected statistics.
	GetStats() Stats
}

// CollectorRegistry manages stats collector constructors.
type CollectorRegistry struct {
	collectors map[string]func() (ICollector, error)
}

// NewCollectorRegistry creates a registry with the default collectors pre-registered.
func NewCollectorRegistry() *CollectorRegistry {
	registry := &CollectorRegistry{
		collectors: make(map[string]func() (ICollector, error)),
	}

	registry.Register("default", func() (ICollector, error) {
		return NewHistogramCollector(), nil
	})
	registry.Register("histogram", func() (ICollector, error) {
		return NewHistogramCollector(), nil
	})

	return registry
}

// Register registers a stats collector constructor under a name.
func (r *CollectorRegistry) Register(name string, createFunc func() (ICollector, error)) {
	r.collectors[name] = createFunc
}

// NewCollector creates a collector by name from the registry.
func (r *CollectorRegistry) NewCollector(name string) (ICollector, error) {
	if name == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "collector name")
	}

	createFunc, ok := r.collectors[name]
	if !ok {
		return nil, ewrap.Wrap(sentinel.ErrStatsCollectorNotFound, name)
	}

	return createFunc()
}

// NewCollector creates a collector by name using a registry with defaults.
func NewCollector(name string) (ICollector, error) {
	return NewCollectorRegistry().NewCollector(name)
}
