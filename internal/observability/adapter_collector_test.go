package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/concierge/internal/channels"
)

func TestAdapterCollector(t *testing.T) {
	m := channels.NewMetrics("telegram")
	m.RecordMessageSent()
	m.RecordMessageSent()
	m.RecordMessageReceived()
	m.RecordError(channels.ErrCodeForbidden)
	m.RecordSendLatency(1500 * time.Millisecond)

	collector := NewAdapterCollector(m.Snapshot)

	expected := `
		# HELP concierge_adapter_errors_total Chat adapter errors by code
		# TYPE concierge_adapter_errors_total counter
		concierge_adapter_errors_total{adapter="telegram",code="FORBIDDEN"} 1
	`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "concierge_adapter_errors_total"); err != nil {
		t.Errorf("errors: %v", err)
	}

	expected = `
		# HELP concierge_adapter_latency_seconds_total Summed chat adapter latency by direction
		# TYPE concierge_adapter_latency_seconds_total counter
		concierge_adapter_latency_seconds_total{adapter="telegram",direction="receive"} 0
		concierge_adapter_latency_seconds_total{adapter="telegram",direction="send"} 1.5
	`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "concierge_adapter_latency_seconds_total"); err != nil {
		t.Errorf("latency: %v", err)
	}

	// 5 message directions, 1 error code, 2 latency directions, 3 connection events.
	if got := testutil.CollectAndCount(collector); got != 11 {
		t.Errorf("CollectAndCount() = %d, want 11", got)
	}
}

func TestAdapterCollectorReadsLiveCounters(t *testing.T) {
	m := channels.NewMetrics("telegram")
	collector := NewAdapterCollector(m.Snapshot)

	m.RecordCallbackReceived()
	m.RecordCallbackReceived()

	expected := `
		# HELP concierge_adapter_messages_total Chat adapter messages by direction
		# TYPE concierge_adapter_messages_total counter
		concierge_adapter_messages_total{adapter="telegram",direction="callback"} 2
		concierge_adapter_messages_total{adapter="telegram",direction="edited"} 0
		concierge_adapter_messages_total{adapter="telegram",direction="failed"} 0
		concierge_adapter_messages_total{adapter="telegram",direction="received"} 0
		concierge_adapter_messages_total{adapter="telegram",direction="sent"} 0
	`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "concierge_adapter_messages_total"); err != nil {
		t.Errorf("messages: %v", err)
	}
}
