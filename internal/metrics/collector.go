// Package metrics exports Prometheus counters for the HTTP API and the
// guards it runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/melroyanthony/llm-guardrails/internal/injection"
	"github.com/melroyanthony/llm-guardrails/internal/validate"
)

const namespace = "guardrails"

// Collector owns a private registry so that several collectors, as in
// tests, never clash on metric names.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	redactionsTotal      *prometheus.CounterVec
	injectionChecksTotal *prometheus.CounterVec
	validationsTotal     *prometheus.CounterVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with Go runtime and process metrics
// registered alongside the guardrails ones.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		redactionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redactions_total",
			Help:      "Values replaced by placeholders, by PII label",
		}, []string{"label"}),

		injectionChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injection_checks_total",
			Help:      "Injection screenings, by verdict",
		}, []string{"verdict"}),

		validationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Output validations, by result",
		}, []string{"result"}),

		llmRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model calls made between the guards",
		}, []string{"status"}),

		llmRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) RecordLLMRequest(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.llmRequestsTotal.WithLabelValues(status).Inc()
	c.llmRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRedaction counts placeholders per label.
func (c *Collector) ObserveRedaction(counts map[string]int) {
	for label, n := range counts {
		c.redactionsTotal.WithLabelValues(label).Add(float64(n))
	}
}

// ObserveInjection counts a screening as "blocked" or "allowed".
func (c *Collector) ObserveInjection(r injection.Result) {
	verdict := "allowed"
	if r.IsInjection {
		verdict = "blocked"
	}
	c.injectionChecksTotal.WithLabelValues(verdict).Inc()
}

// ObserveValidation counts a validation as "valid" or "invalid".
func (c *Collector) ObserveValidation(r validate.Result) {
	result := "valid"
	if !r.Valid {
		result = "invalid"
	}
	c.validationsTotal.WithLabelValues(result).Inc()
}
