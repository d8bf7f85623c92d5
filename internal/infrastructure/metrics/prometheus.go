// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tubeproxy"

var (
	// CacheOperationsTotal tracks cache operations.
	// Labels:
	//   - operation: get, set, cleanup
	//   - status: hit, miss, success, error
	//   - cache_type: memory, redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// CacheEvictionsTotal counts entries removed by stream cache cleanup.
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_cache_evictions_total",
			Help:      "Total number of entries removed from the stream cache",
		},
	)

	// ExtractorCallsTotal tracks calls to the external extractor.
	// Labels:
	//   - operation: info, search, trending, play, download, transcode
	//   - status: success, error
	ExtractorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_calls_total",
			Help:      "Total number of extractor invocations",
		},
		[]string{"operation", "status"},
	)

	// ExtractorDuration observes extractor latency in seconds.
	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extractor_duration_seconds",
			Help:      "Duration of extractor invocations",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet     = "get"
	CacheOpSet     = "set"
	CacheOpCleanup = "cleanup"
)

// Cache type constants.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Extractor operation constants.
const (
	ExtractorOpInfo      = "info"
	ExtractorOpSearch    = "search"
	ExtractorOpTrending  = "trending"
	ExtractorOpPlay      = "play"
	ExtractorOpDownload  = "download"
	ExtractorOpTranscode = "transcode"
)

// Extractor status constants.
const (
	ExtractorStatusSuccess = "success"
	ExtractorStatusError   = "error"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// RegisterStreamCacheSize exposes the current stream cache size as a gauge.
// size is called on every scrape.
func RegisterStreamCacheSize(reg prometheus.Registerer, size func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_cache_entries",
			Help:      "Number of entries held in the stream cache, stale ones included",
		},
		func() float64 { return float64(size()) },
	))
}
