package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
)

// MetricsCollector collects latency and error counts for one run.
type MetricsCollector struct {
	mu sync.Mutex

	buildLatency  []time.Duration
	lookupLatency []time.Duration

	buildErrors  int64
	lookupErrors int64
	lookupMisses int64 // lookups returning no successors
	byOutcome    map[string]int64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		buildLatency:  make([]time.Duration, 0, 1000),
		lookupLatency: make([]time.Duration, 0, 1000),
		byOutcome:     make(map[string]int64),
	}
}

// RecordBuild records one session build.
func (mc *MetricsCollector) RecordBuild(duration time.Duration, rejection dataset.Rejection, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.buildLatency = append(mc.buildLatency, duration)
	if err != nil {
		mc.buildErrors++
		return
	}
	mc.byOutcome[rejection.String()]++
}

// RecordLookup records one adjacency lookup.
func (mc *MetricsCollector) RecordLookup(duration time.Duration, found int, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.lookupLatency = append(mc.lookupLatency, duration)
	switch {
	case err != nil:
		mc.lookupErrors++
	case found == 0:
		mc.lookupMisses++
	}
}

// Summary returns a snapshot of the collected metrics.
func (mc *MetricsCollector) Summary() MetricsSummary {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	outcomes := make(map[string]int64, len(mc.byOutcome))
	for k, v := range mc.byOutcome {
		outcomes[k] = v
	}
	return MetricsSummary{
		Builds:        int64(len(mc.buildLatency)),
		BuildErrors:   mc.buildErrors,
		Outcomes:      outcomes,
		Lookups:       int64(len(mc.lookupLatency)),
		LookupErrors:  mc.lookupErrors,
		LookupMisses:  mc.lookupMisses,
		BuildLatency:  percentiles(mc.buildLatency),
		LookupLatency: percentiles(mc.lookupLatency),
	}
}

// MetricsSummary represents a summary of collected metrics
type MetricsSummary struct {
	Builds        int64              `json:"builds"`
	BuildErrors   int64              `json:"build_errors"`
	Outcomes      map[string]int64   `json:"outcomes"`
	Lookups       int64              `json:"lookups"`
	LookupErrors  int64              `json:"lookup_errors"`
	LookupMisses  int64              `json:"lookup_misses"`
	BuildLatency  LatencyPercentiles `json:"build_latency"`
	LookupLatency LatencyPercentiles `json:"lookup_latency"`
}

// LatencyPercentiles represents latency percentiles
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

func percentiles(latencies []time.Duration) LatencyPercentiles {
	if len(latencies) == 0 {
		return LatencyPercentiles{}
	}
	sorted := make([]float64, len(latencies))
	for i, d := range latencies {
		sorted[i] = float64(d)
	}
	sort.Float64s(sorted)

	q := func(p float64) time.Duration {
		return time.Duration(stat.Quantile(p, stat.Empirical, sorted, nil))
	}
	return LatencyPercentiles{P50: q(0.50), P95: q(0.95), P99: q(0.99)}
}

// measuredAdjacency records every lookup made through it.
type measuredAdjacency struct {
	next    ports.Adjacency
	metrics *MetricsCollector
}

func (m measuredAdjacency) Adjacent(ctx context.Context, anchor string, limit int) (ports.Suggestions, error) {
	start := time.Now()
	s, err := m.next.Adjacent(ctx, anchor, limit)
	m.metrics.RecordLookup(time.Since(start), s.Len(), err)
	return s, err
}
