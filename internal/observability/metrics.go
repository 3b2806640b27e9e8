package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "support_desk"

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorTotal      *prometheus.CounterVec
	ticketEvents    *prometheus.CounterVec
	slaBreaches     prometheus.Counter
	webhookTotal    *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_errors_total", Help: "Error responses by code"},
			[]string{"method", "path", "code"},
		),
		ticketEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "ticket_events_total", Help: "Ticket lifecycle events by type"},
			[]string{"type"},
		),
		slaBreaches: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "sla_breaches_total", Help: "Tickets that passed their SLA due time"},
		),
		webhookTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "webhook_deliveries_total", Help: "Webhook deliveries by outcome"},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.errorTotal,
		m.ticketEvents,
		m.slaBreaches,
		m.webhookTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(method, path, code).Inc()
}

// RecordTicketEvent counts a published domain event.
func (m *Metrics) RecordTicketEvent(eventType string) {
	if m == nil {
		return
	}
	m.ticketEvents.WithLabelValues(eventType).Inc()
}

// RecordSLABreach counts one breached ticket.
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.slaBreaches.Inc()
}

// RecordWebhook counts a webhook attempt by outcome (ok, failed, rejected).
func (m *Metrics) RecordWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
}
