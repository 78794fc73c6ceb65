// Package observability exposes the Prometheus metrics surface for the
// collector: HTTP, ingest, scoring, cache, and store operations.
package observability

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	xx "github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}
	initCollectors(r)
}

func Enabled() bool { return enabled.Load() }

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamLatencySeconds     *prometheus.HistogramVec

	ingestTotal              *prometheus.CounterVec
	ingestErrorsTotal        *prometheus.CounterVec
	ingestDurationSeconds    prometheus.Histogram
	scoringDurationSeconds   prometheus.Histogram
	scoringDegradedTotal     prometheus.Counter
	modelFailuresTotal       *prometheus.CounterVec
	scoreBandTotal           *prometheus.CounterVec
	scoreFloorAppliedTotal   prometheus.Counter

	cacheOpTotal                   *prometheus.CounterVec
	redisOperationDurationSeconds  *prometheus.HistogramVec
	cacheHitsTotal                 *prometheus.CounterVec
	cacheMissesTotal               *prometheus.CounterVec

	storeWriteDurationSeconds prometheus.Histogram
	storeWriteErrorsTotal     *prometheus.CounterVec
	backpressureQueueDepth    prometheus.Gauge
	backpressureRejectsTotal  prometheus.Counter

	sourceHotnessGauge *prometheus.GaugeVec
)

func initCollectors(r prometheus.Registerer) {
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests."},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Duration of HTTP requests in seconds.", Buckets: prometheus.ExponentialBuckets(0.005, 2, 12)},
		[]string{"method", "route", "status"},
	)
	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "upstream_latency_seconds", Help: "Latency of upstream calls in seconds.", Buckets: prometheus.ExponentialBuckets(0.005, 2, 12)},
		[]string{"upstream"},
	)

	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_events_total", Help: "Count of ingested events by outcome."},
		[]string{"outcome"}, // inserted|duplicate
	)
	ingestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_errors_total", Help: "Count of ingest errors by kind."},
		[]string{"kind"},
	)
	ingestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "ingest_duration_seconds", Help: "End-to-end ingest handler latency in seconds.", Buckets: prometheus.ExponentialBuckets(0.002, 2, 14)},
	)
	scoringDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "scoring_duration_seconds", Help: "Model ensemble scoring latency in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 14)},
	)
	scoringDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scoring_degraded_total", Help: "Count of events scored with one or more failed model components."},
	)
	modelFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "model_failures_total", Help: "Count of model inference failures by model."},
		[]string{"model"},
	)
	scoreBandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "score_band_total", Help: "Count of scored events by risk band."},
		[]string{"band"},
	)
	scoreFloorAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "score_floor_applied_total", Help: "Count of events where the indicator score floor raised the score."},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_op_total", Help: "Count of cache operations by op and outcome."},
		[]string{"op", "outcome"},
	)
	redisOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "redis_operation_duration_seconds", Help: "Latency of Redis operations in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 15)},
		[]string{"op"},
	)
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_hits_total", Help: "Count of cache hits by tier."},
		[]string{"tier"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_misses_total", Help: "Count of cache misses by tier."},
		[]string{"tier"},
	)

	storeWriteDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "store_write_duration_seconds", Help: "Latency of store writes in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 14)},
	)
	storeWriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_write_errors_total", Help: "Count of store write errors by kind."},
		[]string{"kind"},
	)
	backpressureQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "backpressure_queue_depth", Help: "Current number of in-flight store writes awaiting completion."},
	)
	backpressureRejectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backpressure_rejects_total", Help: "Count of ingest requests rejected with 503 due to backpressure."},
	)

	sourceHotnessGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "source_hotness", Help: "Sampled decayed hotness score per source address (hashed label to limit cardinality)."},
		[]string{"source_hash"},
	)

	r.MustRegister(
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		ingestTotal, ingestErrorsTotal, ingestDurationSeconds,
		scoringDurationSeconds, scoringDegradedTotal, modelFailuresTotal, scoreBandTotal, scoreFloorAppliedTotal,
		cacheOpTotal, redisOperationDurationSeconds, cacheHitsTotal, cacheMissesTotal,
		storeWriteDurationSeconds, storeWriteErrorsTotal, backpressureQueueDepth, backpressureRejectsTotal,
		sourceHotnessGauge,
	)
}

func ExposeBuildInfo(_ string) {}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() || httpRequestsTotal == nil {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	if !enabled.Load() || upstreamLatencySeconds == nil {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveIngest(outcome string, durationSeconds float64) {
	if !enabled.Load() || ingestTotal == nil {
		return
	}
	if outcome != "inserted" && outcome != "duplicate" {
		outcome = "inserted"
	}
	ingestTotal.WithLabelValues(outcome).Inc()
	ingestDurationSeconds.Observe(durationSeconds)
}

func IncIngestError(kind string) {
	if !enabled.Load() || ingestErrorsTotal == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	ingestErrorsTotal.WithLabelValues(kind).Inc()
}

func ObserveScoring(durationSeconds float64, degraded bool, band string) {
	if !enabled.Load() || scoringDurationSeconds == nil {
		return
	}
	scoringDurationSeconds.Observe(durationSeconds)
	if degraded {
		scoringDegradedTotal.Inc()
	}
	if band != "" {
		scoreBandTotal.WithLabelValues(band).Inc()
	}
}

func IncModelFailure(model string) {
	if !enabled.Load() || modelFailuresTotal == nil {
		return
	}
	modelFailuresTotal.WithLabelValues(model).Inc()
}

func IncScoreFloorApplied() {
	if !enabled.Load() || scoreFloorAppliedTotal == nil {
		return
	}
	scoreFloorAppliedTotal.Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "ok"
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		default:
			outcome = "error"
		}
	}
	if cacheOpTotal != nil {
		cacheOpTotal.WithLabelValues(op, outcome).Inc()
	}
	if redisOperationDurationSeconds != nil {
		redisOperationDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
	}
}

func AddCacheHits(tier string, n int) {
	if !enabled.Load() || cacheHitsTotal == nil || n <= 0 {
		return
	}
	cacheHitsTotal.WithLabelValues(tier).Add(float64(n))
}

func AddCacheMisses(tier string, n int) {
	if !enabled.Load() || cacheMissesTotal == nil || n <= 0 {
		return
	}
	cacheMissesTotal.WithLabelValues(tier).Add(float64(n))
}

func ObserveStoreWrite(durationSeconds float64, err error) {
	if !enabled.Load() || storeWriteDurationSeconds == nil {
		return
	}
	storeWriteDurationSeconds.Observe(durationSeconds)
	if err != nil {
		storeWriteErrorsTotal.WithLabelValues("write").Inc()
	}
}

func IncStoreError(kind string) {
	if !enabled.Load() || storeWriteErrorsTotal == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	storeWriteErrorsTotal.WithLabelValues(kind).Inc()
}

func SetBackpressureQueueDepth(n int) {
	if !enabled.Load() || backpressureQueueDepth == nil {
		return
	}
	backpressureQueueDepth.Set(float64(n))
}

func IncBackpressureReject() {
	if !enabled.Load() || backpressureRejectsTotal == nil {
		return
	}
	backpressureRejectsTotal.Inc()
}

// ObserveSourceHotnessSample records a 1-in-100 deterministic sample of a
// source address's hotness score, hashed to keep cardinality bounded.
func ObserveSourceHotnessSample(sourceAddress string, score float64) {
	if !enabled.Load() || sourceHotnessGauge == nil || sourceAddress == "" {
		return
	}
	const denom = uint64(100)
	h := xx.Sum64String(sourceAddress)
	if (h % denom) != 0 {
		return
	}
	sourceHotnessGauge.WithLabelValues(toShortHash(h)).Set(score)
}

func toShortHash(h uint64) string {
	const width = 8
	x := h >> 32
	s := strconv.FormatUint(x, 16)

	if len(s) >= width {
		return s[len(s)-width:]
	}

	var b [width]byte
	pad := width - len(s)

	for i := range pad {
		b[i] = '0'
	}
	copy(b[pad:], s)

	return string(b[:])
}
