package stats

import (
	"math"
	"slices"
	"sync"
)

// HistogramCollector keeps the raw sample series per metric and derives the
// aggregates on read.
type HistogramCollector struct {
	mu      sync.RWMutex
	samples map[string][]int64
}

// NewHistogramCollector creates a new histogram stats collector.
func NewHistogramCollector() *HistogramCollector {
	return &HistogramCollector{
		samples: make(map[string][]int64),
	}
}

// Incr increments the count of a metric by the given value.
func (c *HistogramCollector) Incr(metric Metric, value int64) {
	c.record(metric, value)
}

// Decr decrements the count of a metric by the given value.
func (c *HistogramCollector) Decr(metric Metric, value int64) {
	c.record(metric, -value)
}

// Timing records the time it took for an event to occur.
func (c *HistogramCollector) Timing(metric Metric, value int64) {
	c.record(metric, value)
}

// Gauge records the current value of a metric.
func (c *HistogramCollector) Gauge(metric Metric, value int64) {
	c.record(metric, value)
}

func (c *HistogramCollector) record(metric Metric, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples[metric.String()] = append(c.samples[metric.String()], value)
}

// Mean returns the mean value of a metric's samples.
func (c *HistogramCollector) Mean(metric Metric) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return mean(c.samples[metric.String()])
}

// Percentile returns the pth percentile value of a metric's samples.
func (c *HistogramCollector) Percentile(metric Metric, percentile float64) float64 {
	c.mu.RLock()
	values := slices.Clone(c.samples[metric.String()])
	c.mu.RUnlock()

	if len(values) == 0 {
		return 0
	}

	slices.Sort(values)

	index := int(float64(len(values)) * percentile)
	if index >= len(values) {
		index = len(values) - 1
	}

	return float64(values[index])
}

// GetStats returns the aggregates for every metric with at least one sample.
func (c *HistogramCollector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Stats, len(c.samples))

	for name, series := range c.samples {
		if len(series) == 0 {
			continue
		}

		values := slices.Clone(series)
		slices.Sort(values)

		avg := mean(values)

		out[name] = &Stat{
			Mean:     avg,
			Median:   median(values),
			Min:      values[0],
			Max:      values[len(values)-1],
			Count:    len(values),
			Sum:      sum(values),
			Variance: variance(values, avg),
			Values:   values,
		}
	}

	return out
}

func sum(values []int64) int64 {
	var total int64
	for _, value := range values {
		total += value
	}

	return total
}

func mean(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}

	return float64(sum(values)) / float64(len(values))
}

// median expects values to be sorted.
func median(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}

	mid := len(values) / 2
	if len(values)%2 == 0 {
		return float64(values[mid-1]+values[mid]) / 2
	}

	return float64(values[mid])
}

func variance(values []int64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var acc float64
	for _, value := range values {
		acc += math.Pow(float64(value)-mean, 2)
	}

	return acc / float64(len(values))
}
