package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/redundancy"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Coder metrics
	codingOperationsTotal   *prometheus.CounterVec
	codingOperationDuration *prometheus.HistogramVec
	symbolsTotal            *prometheus.CounterVec
	bytesTotal              *prometheus.CounterVec
	eliminatedTotal         *prometheus.CounterVec
	rescalesTotal           prometheus.Counter
	decodeFailuresTotal     *prometheus.CounterVec

	// Stream store metrics
	streamsTotal     prometheus.Gauge
	streamUnitsTotal prometheus.Gauge
	streamBytesTotal prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "biocoder_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "biocoder_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		codingOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_coding_operations_total",
				Help: "Total number of encode and decode operations",
			},
			[]string{"direction", "status"},
		),

		codingOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "biocoder_coding_operation_duration_seconds",
				Help:    "Encode and decode duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),

		symbolsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_symbols_total",
				Help: "Symbols passed through the coder",
			},
			[]string{"direction"},
		),

		bytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_coded_bytes_total",
				Help: "Coded bytes produced or consumed",
			},
			[]string{"direction"},
		),

		eliminatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_symbols_eliminated_total",
				Help: "Symbols elided as redundant with the temporal memory, by redundancy pattern",
			},
			[]string{"pattern"},
		),

		rescalesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "biocoder_table_rescales_total",
				Help: "Frequency table rescales",
			},
		),

		decodeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_decode_failures_total",
				Help: "Failed decodes by error kind",
			},
			[]string{"kind"},
		),

		streamsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "biocoder_streams_total",
				Help: "Number of stored streams",
			},
		),

		streamUnitsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "biocoder_stream_units_total",
				Help: "Number of stored coded units",
			},
		),

		streamBytesTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "biocoder_stream_bytes_total",
				Help: "Total coded payload bytes in stored streams",
			},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biocoder_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCoding records one encode or decode call and the stats of every frame
// it coded
func (m *Metrics) RecordCoding(direction coder.Direction, stats []coder.Stats, err error, duration time.Duration) {
	dir := direction.String()
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	m.codingOperationsTotal.WithLabelValues(dir, status).Inc()
	m.codingOperationDuration.WithLabelValues(dir).Observe(duration.Seconds())

	for _, s := range stats {
		m.symbolsTotal.WithLabelValues(dir).Add(float64(s.Symbols))
		m.bytesTotal.WithLabelValues(dir).Add(float64(s.Bytes))
		for p, n := range s.Patterns {
			if n > 0 {
				m.eliminatedTotal.WithLabelValues(redundancy.Pattern(p).String()).Add(float64(n))
			}
		}
		m.rescalesTotal.Add(float64(s.Rescales))
	}

	if direction == coder.DirectionDecode && err != nil {
		m.decodeFailuresTotal.WithLabelValues(failureKind(err)).Inc()
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, coder.ErrTruncated):
		return "truncated"
	case errors.Is(err, coder.ErrMalformed):
		return "malformed"
	case errors.Is(err, coder.ErrConfig):
		return "config"
	default:
		return "other"
	}
}

// UpdateStreamStats updates stream store statistics
func (m *Metrics) UpdateStreamStats(streams int, units, bytes uint64) {
	m.streamsTotal.Set(float64(streams))
	m.streamUnitsTotal.Set(float64(units))
	m.streamBytesTotal.Set(float64(bytes))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
