package observability

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordEvent("message", "handled")
	metrics.SetFAQLocks(0)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, want := range []string{"concierge_events_total", "concierge_faq_item_locks"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}

	// A second set on the same registry must collide.
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewMetrics(registry)
}

func TestRecordEvent(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordEvent("callback", "handled")
	metrics.RecordEvent("callback", "handled")
	metrics.RecordEvent("callback", "denied")

	expected := `
		# HELP concierge_events_total Total number of inbound chat events by kind and outcome
		# TYPE concierge_events_total counter
		concierge_events_total{kind="callback",outcome="denied"} 1
		concierge_events_total{kind="callback",outcome="handled"} 2
	`
	if err := testutil.CollectAndCompare(metrics.EventCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestFAQGauges(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.SetFAQSessions(2, 1)
	metrics.SetFAQLocks(1)
	metrics.SetFAQSessions(0, 1)

	if got := testutil.ToFloat64(metrics.FAQSessions.WithLabelValues("add")); got != 0 {
		t.Errorf("add sessions = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.FAQSessions.WithLabelValues("edit")); got != 1 {
		t.Errorf("edit sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.FAQLocks); got != 1 {
		t.Errorf("locks = %v, want 1", got)
	}
}

func TestRecordReminder(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordReminder("week", 10, 2)
	metrics.RecordReminder("week", 1, 0)

	if got := testutil.ToFloat64(metrics.RemindersCounter.WithLabelValues("week", "sent")); got != 11 {
		t.Errorf("sent = %v, want 11", got)
	}
	if got := testutil.ToFloat64(metrics.RemindersCounter.WithLabelValues("week", "failed")); got != 2 {
		t.Errorf("failed = %v, want 2", got)
	}
}

func TestObserveQuery(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveQuery("select", "faq_items", 3*time.Millisecond, nil)
	metrics.ObserveQuery("select", "faq_items", time.Millisecond, errors.New("timeout"))

	if got := testutil.ToFloat64(metrics.DatabaseQueryCounter.WithLabelValues("select", "faq_items", "success")); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.DatabaseQueryCounter.WithLabelValues("select", "faq_items", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
	if count := testutil.CollectAndCount(metrics.DatabaseQueryDuration); count != 1 {
		t.Errorf("histogram series = %d, want 1", count)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordHTTPRequest("POST", "/api/v1/guests/register", "201", 0.02)
	metrics.RecordHTTPRequest("POST", "/api/v1/guests/register", "400", 0.001)

	if count := testutil.CollectAndCount(metrics.HTTPRequestCounter); count != 2 {
		t.Errorf("Expected 2 label combinations, got %d", count)
	}
}
