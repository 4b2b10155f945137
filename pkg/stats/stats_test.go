package stats_test

import (
	"errors"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/stats"
)

func TestNewCollectorValidation(t *testing.T) {
	_, err := stats.NewCollector("")
	if !errors.Is(err, sentinel.ErrParamCannotBeEmpty) {
		t.Fatalf("expected ErrParamCannotBeEmpty, got %v", err)
	}

	_, err = stats.NewCollector("no-such-collector")
	if !errors.Is(err, sentinel.ErrStatsCollectorNotFound) {
		t.Fatalf("expected ErrStatsCollectorNotFound, got %v", err)
	}
}

func TestHistogramCollectorAggregates(t *testing.T) {
	collector := stats.NewHistogramCollector()

	for _, v := range []int64{1, 2, 3, 4, 5} {
		collector.Incr(stats.MetricHits, v)
	}

	collected := collector.GetStats()
	stat := collected[string(stats.MetricHits)]
	assert.NotNil(t, stat)

	assert.Equal(t, 5, stat.Count)
	assert.Equal(t, int64(15), stat.Sum)
	assert.Equal(t, int64(1), stat.Min)
	assert.Equal(t, int64(5), stat.Max)
	assert.Equal(t, float64(3), stat.Mean)
	assert.Equal(t, float64(3), stat.Median)
	assert.Equal(t, float64(2), stat.Variance)
}

func TestHistogramCollectorMeanAndPercentile(t *testing.T) {
	collector := stats.NewHistogramCollector()

	collector.Timing(stats.MetricTiming, 10)
	collector.Timing(stats.MetricTiming, 20)
	collector.Timing(stats.MetricTiming, 30)
	collector.Timing(stats.MetricTiming, 40)

	assert.Equal(t, float64(25), collector.Mean(stats.MetricTiming))
	assert.Equal(t, float64(30), collector.Percentile(stats.MetricTiming, 0.5))
	assert.Equal(t, float64(10), collector.Percentile(stats.MetricTiming, 0))
	assert.Equal(t, float64(40), collector.Percentile(stats.MetricTiming, 1))
}

func TestHistogramCollectorDecrAndGauge(t *testing.T) {
	collector := stats.NewHistogramCollector()

	collector.Incr(stats.MetricEvictions, 3)
	collector.Decr(stats.MetricEvictions, 1)
	collector.Gauge(stats.MetricEvictions, 7)

	stat := collector.GetStats()[string(stats.MetricEvictions)]
	assert.NotNil(t, stat)
	assert.Equal(t, 3, stat.Count)
	assert.Equal(t, int64(-1), stat.Min)
	assert.Equal(t, int64(7), stat.Max)
}

func TestHistogramCollectorEmptyMetric(t *testing.T) {
	collector := stats.NewHistogramCollector()

	assert.Equal(t, float64(0), collector.Mean(stats.MetricMisses))
	assert.Equal(t, float64(0), collector.Percentile(stats.MetricMisses, 0.5))
	assert.Equal(t, 0, len(collector.GetStats()))
}
