// Package observability provides metrics for the backend client and the
// workflows built on it.
package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/httpclient"
	"github.com/tphakala/birdtarifa/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Client   *metrics.ClientMetrics
	Workflow *metrics.WorkflowMetrics

	started sync.Map // *http.Request -> time.Time
}

// NewMetrics creates a registry with every collector registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	clientMetrics, err := metrics.NewClientMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create client metrics: %w", err)
	}

	workflowMetrics, err := metrics.NewWorkflowMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Client:   clientMetrics,
		Workflow: workflowMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Instrument installs request hooks on hc. Existing hooks are replaced.
func (m *Metrics) Instrument(hc *httpclient.Client) {
	hc.SetBeforeRequestHook(func(req *http.Request) {
		m.started.Store(req, time.Now())
		m.Client.RequestStarted()
	})
	hc.SetAfterResponseHook(func(req *http.Request, resp *http.Response, _ error) {
		var elapsed float64
		if v, ok := m.started.LoadAndDelete(req); ok {
			elapsed = time.Since(v.(time.Time)).Seconds()
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		m.Client.RequestFinished(req.Method, req.URL.Path, status, elapsed)
	})
}

// Track runs fn and records its outcome under operation.
func Track(r metrics.Recorder, operation string, fn func() error) error {
	if r == nil {
		r = metrics.NoOpRecorder{}
	}
	start := time.Now()
	err := fn()
	r.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		r.RecordOperation(operation, "error")
		r.RecordError(operation, string(categoryOf(err)))
		return err
	}
	r.RecordOperation(operation, "success")
	return nil
}

func categoryOf(err error) errors.ErrorCategory {
	for _, c := range []errors.ErrorCategory{
		errors.CategoryValidation,
		errors.CategoryNetwork,
		errors.CategoryNotFound,
		errors.CategoryHTTP,
		errors.CategoryUpload,
		errors.CategoryCancellation,
		errors.CategoryLimit,
		errors.CategoryConfiguration,
	} {
		if errors.IsCategory(err, c) {
			return c
		}
	}
	return errors.CategoryGeneric
}

// RouteSummary aggregates one method and route.
type RouteSummary struct {
	Method   string
	Route    string
	Requests int
	Errors   int
	// Statuses counts requests per status label.
	Statuses map[string]int
}

// Summary gathers the request counters into per-route totals, sorted by
// route then method.
func (m *Metrics) Summary() ([]RouteSummary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	byKey := make(map[string]*RouteSummary)
	entry := func(method, route string) *RouteSummary {
		key := method + " " + route
		s, ok := byKey[key]
		if !ok {
			s = &RouteSummary{Method: method, Route: route, Statuses: make(map[string]int)}
			byKey[key] = s
		}
		return s
	}

	for _, mf := range families {
		switch mf.GetName() {
		case "birdtarifa_api_requests_total":
			for _, metric := range mf.GetMetric() {
				labels := labelMap(metric)
				s := entry(labels["method"], labels["route"])
				n := int(metric.GetCounter().GetValue())
				s.Requests += n
				s.Statuses[labels["status_code"]] += n
			}
		case "birdtarifa_api_request_errors_total":
			for _, metric := range mf.GetMetric() {
				labels := labelMap(metric)
				entry(labels["method"], labels["route"]).Errors += int(metric.GetCounter().GetValue())
			}
		}
	}

	out := make([]RouteSummary, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Route != out[j].Route {
			return out[i].Route < out[j].Route
		}
		return out[i].Method < out[j].Method
	})
	return out, nil
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// StatusLabel formats a status code the way the request counter does.
func StatusLabel(status int) string {
	if status == 0 {
		return metrics.StatusNetworkError
	}
	return strconv.Itoa(status)
}
