// Package metrics provides Prometheus metrics for the hiscore profile service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the hiscore service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ledger Metrics - what the service is for
	profileReads   prometheus.Counter
	profileWrites  prometheus.Counter
	playsMerged    prometheus.Counter
	playsSkipped   *prometheus.CounterVec
	unknownTiers   prometheus.Counter
	duplicateWrite prometheus.Counter
	packLatency    *prometheus.HistogramVec
	ledgerCharts   prometheus.Histogram

	// Storage Metrics
	storeLatency  *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	storedPlayers prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hiscore",
		subsystem:        "profile",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.profileReads = auto.NewCounter(m.counterOpts("profile_reads_total",
		"Total number of profiles read and packed for a client"))
	m.profileWrites = auto.NewCounter(m.counterOpts("profile_writes_total",
		"Total number of play sessions written"))
	m.playsMerged = auto.NewCounter(m.counterOpts("plays_merged_total",
		"Total number of stages merged into a ledger"))
	m.playsSkipped = auto.NewCounterVec(m.counterOpts("plays_skipped_total",
		"Total number of stages skipped, by reason"), []string{"reason"})
	m.unknownTiers = auto.NewCounter(m.counterOpts("unknown_tiers_total",
		"Total number of stages reporting a medal nibble with no table entry (data quality)"))
	m.duplicateWrite = auto.NewCounter(m.counterOpts("duplicate_writes_total",
		"Total number of write sessions acknowledged as duplicates"))
	m.packLatency = auto.NewHistogramVec(m.histogramOpts("pack_latency_milliseconds",
		"Time spent building a packed array in milliseconds", m.histogramBuckets), []string{"array"})
	m.ledgerCharts = auto.NewHistogram(m.histogramOpts("ledger_charts",
		"Number of charts held by a ledger at read time",
		[]float64{0, 10, 50, 100, 250, 500, 1000, 2500, 5000}))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds",
		"Ledger storage latency in milliseconds", m.histogramBuckets), []string{"backend", "op"})
	m.storeErrors = auto.NewCounterVec(m.counterOpts("store_errors_total",
		"Total number of ledger storage failures"), []string{"op"})
	m.storedPlayers = auto.NewGauge(m.gaugeOpts("stored_players",
		"Number of players with a stored ledger"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Total number of errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of failed operations in milliseconds", m.histogramBuckets), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordProfileRead increments the profile reads counter.
func RecordProfileRead() {
	globalManager.profileReads.Inc()
}

// RecordProfileWrite increments the profile writes counter.
func RecordProfileWrite() {
	globalManager.profileWrites.Inc()
}

// RecordPlaysMerged adds n merged stages.
func RecordPlaysMerged(n int) {
	if n > 0 {
		globalManager.playsMerged.Add(float64(n))
	}
}

// RecordPlaysSkipped adds n skipped stages under reason.
func RecordPlaysSkipped(reason string, n int) {
	if n > 0 {
		globalManager.playsSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordUnknownTiers adds n stages with an unrecognised medal.
func RecordUnknownTiers(n int) {
	if n > 0 {
		globalManager.unknownTiers.Add(float64(n))
	}
}

// RecordDuplicateWrite increments the duplicate write counter.
func RecordDuplicateWrite() {
	globalManager.duplicateWrite.Inc()
}

// RecordPackLatency records how long packing one array took.
func RecordPackLatency(array string, latencyMs float64) {
	globalManager.packLatency.WithLabelValues(array).Observe(latencyMs)
}

// RecordLedgerCharts records the size of a ledger being packed.
func RecordLedgerCharts(n int) {
	globalManager.ledgerCharts.Observe(float64(n))
}

// RecordStoreLatency records a storage operation latency.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStoreError increments the storage failure counter for op.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateStoredPlayers sets the stored player count.
func UpdateStoredPlayers(count int) {
	globalManager.storedPlayers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the global manager publishes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
