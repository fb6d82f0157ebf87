package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the controller's instrumentation.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Device metrics
	ScansTotal     *prometheus.CounterVec
	ButtonsTotal   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge

	// Work instruction metrics
	PicksCompleted     *prometheus.CounterVec
	PicksShorted       *prometheus.CounterVec
	ShortAheadTotal    prometheus.Counter
	SubstitutionsTotal prometheus.Counter
	WorkRecomputes     *prometheus.CounterVec

	// Export metrics
	ExportsPublished *prometheus.CounterVec
	ExportDuration   *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance.
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "che_scans_total",
			Help:      "Total number of barcode scans processed",
		},
		[]string{"service", "kind"},
	)

	m.ButtonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "che_button_presses_total",
			Help:      "Total number of poscon button presses processed",
		},
		[]string{"service"},
	)

	m.ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "che_active_sessions",
			Help:        "Number of CHE devices with a live session",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.PicksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "picks_completed_total",
			Help:      "Total number of work instructions completed",
		},
		[]string{"service", "type"},
	)

	m.PicksShorted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "picks_shorted_total",
			Help:      "Total number of work instructions shorted",
		},
		[]string{"service", "type"},
	)

	m.ShortAheadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "short_ahead_total",
			Help:        "Total number of instructions shorted ahead by group propagation",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.SubstitutionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "substitutions_total",
			Help:        "Total number of substitute picks recorded",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.WorkRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "work_recomputes_total",
			Help:      "Total number of work computations",
		},
		[]string{"service", "status"},
	)

	m.ExportsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "exports_published_total",
			Help:      "Total number of work instruction export records published",
		},
		[]string{"service", "topic", "status"},
	)

	m.ExportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "export_publish_duration_seconds",
			Help:      "Export publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ScansTotal,
		m.ButtonsTotal,
		m.ActiveSessions,
		m.PicksCompleted,
		m.PicksShorted,
		m.ShortAheadTotal,
		m.SubstitutionsTotal,
		m.WorkRecomputes,
		m.ExportsPublished,
		m.ExportDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordScan records a processed barcode scan.
func (m *Metrics) RecordScan(kind string) {
	m.ScansTotal.WithLabelValues(m.serviceName, kind).Inc()
}

// RecordButton records a processed button press.
func (m *Metrics) RecordButton() {
	m.ButtonsTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordPickCompleted records a completed instruction.
func (m *Metrics) RecordPickCompleted(wiType string) {
	m.PicksCompleted.WithLabelValues(m.serviceName, wiType).Inc()
}

// RecordPickShorted records a shorted instruction.
func (m *Metrics) RecordPickShorted(wiType string) {
	m.PicksShorted.WithLabelValues(m.serviceName, wiType).Inc()
}

// RecordShortAhead counts instructions shorted by group propagation.
func (m *Metrics) RecordShortAhead(count int) {
	m.ShortAheadTotal.Add(float64(count))
}

// RecordSubstitution records a substitute pick.
func (m *Metrics) RecordSubstitution() {
	m.SubstitutionsTotal.Inc()
}

// RecordRecompute records a work computation outcome.
func (m *Metrics) RecordRecompute(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.WorkRecomputes.WithLabelValues(m.serviceName, status).Inc()
}

// RecordExport records an export publish.
func (m *Metrics) RecordExport(topic string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ExportsPublished.WithLabelValues(m.serviceName, topic, status).Inc()
	m.ExportDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation.
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip.
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}
