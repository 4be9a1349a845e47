// Package metrics provides Prometheus metrics for the profmatch reconciler.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the reconciler.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Matching outcomes
	matchesTotal    *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	unmatched       *prometheus.GaugeVec
	runsTotal       prometheus.Counter
	phaseDuration   *prometheus.HistogramVec
	candidatesTotal prometheus.Counter

	// Fuzzy scoring
	scoringLatency    prometheus.Histogram
	scoringJobsTotal  prometheus.Counter
	workerCount       prometheus.Gauge
	queueSize         prometheus.Gauge
	queueEnqueueError prometheus.Counter

	// Snapshots and producers
	snapshotWrites  *prometheus.CounterVec
	snapshotRecords *prometheus.GaugeVec
	producerRecords *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var (
	globalManager  *Manager              //nolint:gochecknoglobals // singleton metrics manager
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry
	initOnce       sync.Once
)

func manager() *Manager {
	initOnce.Do(func() {
		globalManager = NewManager(WithPrometheusRegistry(customRegistry))
	})
	return globalManager
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "profmatch",
		subsystem:        "reconcile",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // metric declarations
	auto := promauto.With(m.registry)

	m.matchesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_total",
		Help:      "Merged instructor records by resolution tier",
	}, []string{"tier"})

	m.rejectionsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rejections_total",
		Help:      "Match attempts rejected, by reason",
	}, []string{"reason"})

	m.unmatched = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unmatched_records",
		Help:      "Records left unconsumed after the last run, by source",
	}, []string{"source"})

	m.runsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Completed pipeline runs",
	})

	m.phaseDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "phase_duration_milliseconds",
		Help:      "Duration of each pipeline phase in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"phase"})

	m.candidatesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "disambiguation_pairs_total",
		Help:      "Rating/review pairs evaluated by the disambiguation rule",
	})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_milliseconds",
		Help:      "Time to score one rating name against all remaining review names",
		Buckets:   m.histogramBuckets,
	})

	m.scoringJobsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_jobs_total",
		Help:      "Fuzzy scoring jobs completed by workers",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Workers in the fuzzy scoring pool",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Scoring jobs waiting in the queue",
	})

	m.queueEnqueueError = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Scoring jobs refused by the queue",
	})

	m.snapshotWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_writes_total",
		Help:      "Snapshots written, by kind and destination",
	}, []string{"kind", "destination"})

	m.snapshotRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_names",
		Help:      "Names held by the last loaded snapshot, by kind",
	}, []string{"kind"})

	m.producerRecords = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "producer_records_total",
		Help:      "Records produced by the grade aggregator and the review fetcher",
	}, []string{"producer"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})
}

// Matching metrics.

// RecordMatch increments the match counter for a tier (override, exact, fuzzy).
func RecordMatch(tier string) {
	manager().matchesTotal.WithLabelValues(tier).Inc()
}

// RecordRejection increments the rejection counter for a reason.
func RecordRejection(reason string) {
	manager().rejectionsTotal.WithLabelValues(reason).Inc()
}

// UpdateUnmatched sets the number of unconsumed records for a source.
func UpdateUnmatched(source string, count int) {
	manager().unmatched.WithLabelValues(source).Set(float64(count))
}

// RecordRun increments the completed run counter.
func RecordRun() {
	manager().runsTotal.Inc()
}

// RecordPhaseDuration observes the duration of a pipeline phase.
func RecordPhaseDuration(phase string, durationMs float64) {
	manager().phaseDuration.WithLabelValues(phase).Observe(durationMs)
}

// RecordDisambiguationPairs adds the number of pairs evaluated by one disambiguation.
func RecordDisambiguationPairs(n int) {
	manager().candidatesTotal.Add(float64(n))
}

// Scoring metrics.

// RecordScoringLatency records fuzzy scoring latency for one job.
func RecordScoringLatency(latencyMs float64) {
	m := manager()
	m.scoringLatency.Observe(latencyMs)
	m.scoringJobsTotal.Inc()
}

// UpdateWorkerCount sets the number of scoring workers.
func UpdateWorkerCount(count int) {
	manager().workerCount.Set(float64(count))
}

// UpdateQueueSize sets the current scoring queue length.
func UpdateQueueSize(size int) {
	manager().queueSize.Set(float64(size))
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	manager().queueEnqueueError.Inc()
}

// Snapshot metrics.

// RecordSnapshotWrite increments the snapshot write counter.
func RecordSnapshotWrite(kind, destination string) {
	manager().snapshotWrites.WithLabelValues(kind, destination).Inc()
}

// UpdateSnapshotNames sets the number of names in a loaded snapshot.
func UpdateSnapshotNames(kind string, count int) {
	manager().snapshotRecords.WithLabelValues(kind).Set(float64(count))
}

// RecordProducerRecords adds records emitted by a producer.
func RecordProducerRecords(producer string, count int) {
	manager().producerRecords.WithLabelValues(producer).Add(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	manager().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	manager().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	manager().errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	manager()
	return customRegistry
}
