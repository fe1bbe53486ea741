package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/concierge/internal/channels"
)

var (
	adapterMessagesDesc = prometheus.NewDesc(
		"concierge_adapter_messages_total",
		"Chat adapter messages by direction",
		[]string{"adapter", "direction"}, nil,
	)
	adapterErrorsDesc = prometheus.NewDesc(
		"concierge_adapter_errors_total",
		"Chat adapter errors by code",
		[]string{"adapter", "code"}, nil,
	)
	adapterLatencyDesc = prometheus.NewDesc(
		"concierge_adapter_latency_seconds_total",
		"Summed chat adapter latency by direction",
		[]string{"adapter", "direction"}, nil,
	)
	adapterConnectionsDesc = prometheus.NewDesc(
		"concierge_adapter_connections_total",
		"Chat adapter connection lifecycle events",
		[]string{"adapter", "event"}, nil,
	)
)

// AdapterCollector exports a chat adapter's counters at scrape time.
type AdapterCollector struct {
	snapshot func() channels.MetricsSnapshot
}

// NewAdapterCollector wraps snapshot, usually an adapter's Metrics method.
func NewAdapterCollector(snapshot func() channels.MetricsSnapshot) *AdapterCollector {
	return &AdapterCollector{snapshot: snapshot}
}

func (c *AdapterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- adapterMessagesDesc
	ch <- adapterErrorsDesc
	ch <- adapterLatencyDesc
	ch <- adapterConnectionsDesc
}

func (c *AdapterCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	counter := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, v, append([]string{s.Adapter}, labels...)...)
	}

	counter(adapterMessagesDesc, float64(s.MessagesSent), "sent")
	counter(adapterMessagesDesc, float64(s.MessagesReceived), "received")
	counter(adapterMessagesDesc, float64(s.CallbacksReceived), "callback")
	counter(adapterMessagesDesc, float64(s.MessagesEdited), "edited")
	counter(adapterMessagesDesc, float64(s.MessagesFailed), "failed")

	for code, n := range s.ErrorsByCode {
		counter(adapterErrorsDesc, float64(n), string(code))
	}

	counter(adapterLatencyDesc, s.SendLatency.Total.Seconds(), "send")
	counter(adapterLatencyDesc, s.ReceiveLatency.Total.Seconds(), "receive")

	counter(adapterConnectionsDesc, float64(s.ConnectionsOpened), "opened")
	counter(adapterConnectionsDesc, float64(s.ConnectionsClosed), "closed")
	counter(adapterConnectionsDesc, float64(s.ReconnectAttempts), "reconnect")
}
