package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the API and delivery flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	deliveriesTotal         *prometheus.CounterVec
	deliveriesFailedTotal   *prometheus.CounterVec
	providerSendDuration    *prometheus.HistogramVec
	providerFallbackTotal   *prometheus.CounterVec
	providerAttemptsTotal   *prometheus.CounterVec
	dispatchInflight        *prometheus.GaugeVec
	trackerStatusFetchTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "deliveries_total",
				Help:      "Total number of notifications delivered successfully by channel and winning provider.",
			},
			[]string{"channel", "provider"},
		),
		deliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "deliveries_failed_total",
				Help:      "Total number of notifications that ended without delivery, by channel and reason.",
			},
			[]string{"channel", "reason"},
		),
		providerSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "provider_send_duration_seconds",
				Help:      "Adapter send duration in seconds by channel and provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel", "provider"},
		),
		providerFallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "provider_fallback_total",
				Help:      "Total number of times a delivery fell through to the next provider in the chain.",
			},
			[]string{"channel", "from_provider"},
		),
		providerAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "provider_attempts_total",
				Help:      "Total adapter invocations by channel, provider and outcome.",
			},
			[]string{"channel", "provider", "outcome"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notify_engine",
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight dispatch workers grouped by channel.",
			},
			[]string{"channel"},
		),
		trackerStatusFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "tracker_status_fetch_total",
				Help:      "Total delivery-status polls by provider and normalized status.",
			},
			[]string{"provider", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesTotal,
		m.deliveriesFailedTotal,
		m.providerSendDuration,
		m.providerFallbackTotal,
		m.providerAttemptsTotal,
		m.dispatchInflight,
		m.trackerStatusFetchTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDeliverySucceeded(channel, provider string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncDeliveryFailed(channel, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.deliveriesFailedTotal.WithLabelValues(normalizeLabel(channel), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(channel, provider string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerSendDuration.WithLabelValues(normalizeLabel(channel), normalizeLabel(provider)).Observe(seconds)
}

func (m *Metrics) IncFallback(channel, fromProvider string) {
	if m == nil {
		return
	}
	m.providerFallbackTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(fromProvider)).Inc()
}

func (m *Metrics) IncProviderAttempt(channel, provider, outcome string) {
	if m == nil {
		return
	}
	m.providerAttemptsTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) DecDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeLabel(channel)).Dec()
}

func (m *Metrics) IncTrackerStatusFetch(provider, status string) {
	if m == nil {
		return
	}
	m.trackerStatusFetchTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(status)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(v string) string {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
