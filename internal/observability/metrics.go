package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - inbound chat events by kind and outcome
//   - FAQ edit sessions and held item locks
//   - reminder broadcasts
//   - HTTP API requests
//   - database query latency
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordEvent("message", "handled")
type Metrics struct {
	// EventCounter counts inbound chat events.
	// Labels: kind (message|command|callback), outcome (handled|unhandled|denied|error)
	EventCounter *prometheus.CounterVec

	// EventDuration measures event handling latency in seconds.
	// Labels: kind
	EventDuration *prometheus.HistogramVec

	// FAQSessions is the number of open FAQ edit sessions.
	// Labels: kind (add|edit)
	FAQSessions *prometheus.GaugeVec

	// FAQLocks is the number of FAQ items currently locked for editing.
	FAQLocks prometheus.Gauge

	// RemindersCounter counts reminder deliveries.
	// Labels: milestone (month|week|day|test), status (sent|failed)
	RemindersCounter *prometheus.CounterVec

	// GuestRegistrations counts stored registrations by source and status.
	// Labels: source (http|chat), status (confirmed|declined|pending)
	GuestRegistrations *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	ErrorCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// DatabaseQueryDuration measures database query latency.
	// Labels: operation (select|insert|update|upsert|delete), table
	DatabaseQueryDuration *prometheus.HistogramVec

	// DatabaseQueryCounter counts database queries.
	// Labels: operation, table, status (success|error)
	DatabaseQueryCounter *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_events_total",
				Help: "Total number of inbound chat events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		EventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concierge_event_duration_seconds",
				Help:    "Duration of inbound chat event handling in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),

		FAQSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "concierge_faq_edit_sessions",
				Help: "Current number of open FAQ edit sessions by kind",
			},
			[]string{"kind"},
		),

		FAQLocks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "concierge_faq_item_locks",
				Help: "Current number of FAQ items locked for editing",
			},
		),

		RemindersCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_reminders_total",
				Help: "Total number of reminder deliveries by milestone and status",
			},
			[]string{"milestone", "status"},
		),

		GuestRegistrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_guest_registrations_total",
				Help: "Total number of stored guest registrations by source and status",
			},
			[]string{"source", "status"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concierge_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		DatabaseQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concierge_database_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "table"},
		),

		DatabaseQueryCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table", "status"},
		),
	}
}

// RecordEvent increments the event counter for a kind and outcome.
func (m *Metrics) RecordEvent(kind, outcome string) {
	m.EventCounter.WithLabelValues(kind, outcome).Inc()
}

// ObserveEventDuration records how long an event took to handle.
func (m *Metrics) ObserveEventDuration(kind string, elapsed time.Duration) {
	m.EventDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetFAQSessions sets the open add and edit session gauges.
func (m *Metrics) SetFAQSessions(add, edit int) {
	m.FAQSessions.WithLabelValues("add").Set(float64(add))
	m.FAQSessions.WithLabelValues("edit").Set(float64(edit))
}

// SetFAQLocks sets the held lock gauge.
func (m *Metrics) SetFAQLocks(n int) {
	m.FAQLocks.Set(float64(n))
}

// RecordReminder records the outcome of one reminder broadcast.
func (m *Metrics) RecordReminder(milestone string, sent, failed int) {
	m.RemindersCounter.WithLabelValues(milestone, "sent").Add(float64(sent))
	m.RemindersCounter.WithLabelValues(milestone, "failed").Add(float64(failed))
}

// RecordRegistration counts a stored guest registration.
func (m *Metrics) RecordRegistration(source, status string) {
	m.GuestRegistrations.WithLabelValues(source, status).Inc()
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("telegram", "send_failed")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordDatabaseQuery records metrics for a database query.
func (m *Metrics) RecordDatabaseQuery(operation, table, status string, durationSeconds float64) {
	m.DatabaseQueryCounter.WithLabelValues(operation, table, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(durationSeconds)
}

// ObserveQuery adapts RecordDatabaseQuery to storage.QueryObserver.
func (m *Metrics) ObserveQuery(operation, table string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordDatabaseQuery(operation, table, status, elapsed.Seconds())
}
