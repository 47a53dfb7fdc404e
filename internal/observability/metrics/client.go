// Package metrics provides Prometheus collectors for the backend client and
// the sighting and prediction workflows.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values used when no HTTP status exists.
const (
	StatusNetworkError = "network_error"
)

// ClientMetrics tracks requests made to the REST backend.
type ClientMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// NewClientMetrics creates the collectors and registers them with registry.
func NewClientMetrics(registry prometheus.Registerer) (*ClientMetrics, error) {
	m := &ClientMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register client metrics: %w", err)
	}
	return m, nil
}

func (m *ClientMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdtarifa_api_requests_total",
			Help: "Total number of requests sent to the backend",
		},
		[]string{"method", "route", "status_code"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "birdtarifa_api_request_duration_seconds",
			Help:    "Time taken for backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdtarifa_api_request_errors_total",
			Help: "Backend requests that failed at the network level or with a non-2xx status",
		},
		[]string{"method", "route", "kind"},
	)

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdtarifa_api_requests_in_flight",
		Help: "Backend requests currently in flight",
	})
}

// RequestStarted marks a request as in flight.
func (m *ClientMetrics) RequestStarted() {
	m.inFlight.Inc()
}

// RequestFinished records the outcome of one request. status is 0 when
// no response was received.
func (m *ClientMetrics) RequestFinished(method, route string, status int, seconds float64) {
	m.inFlight.Dec()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)

	switch {
	case status == 0:
		m.requestsTotal.WithLabelValues(method, route, StatusNetworkError).Inc()
		m.requestErrors.WithLabelValues(method, route, "network").Inc()
	case status >= 400:
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.requestErrors.WithLabelValues(method, route, "http").Inc()
	default:
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ClientMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.requestErrors.Describe(ch)
	ch <- m.inFlight.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *ClientMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.requestErrors.Collect(ch)
	ch <- m.inFlight
}
