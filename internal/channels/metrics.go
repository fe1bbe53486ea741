package channels

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts what one chat adapter did since it was created. The
// observability package exports snapshots as Prometheus metrics.
type Metrics struct {
	sent      atomic.Uint64
	received  atomic.Uint64
	callbacks atomic.Uint64
	edited    atomic.Uint64
	failed    atomic.Uint64

	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	reconnects        atomic.Uint64

	send    latency
	receive latency

	errMu  sync.Mutex
	errors map[ErrorCode]uint64

	adapter string
	started time.Time
}

// NewMetrics creates the counters for the named adapter.
func NewMetrics(adapter string) *Metrics {
	return &Metrics{
		errors:  make(map[ErrorCode]uint64),
		adapter: adapter,
		started: time.Now(),
	}
}

func (m *Metrics) RecordMessageSent()      { m.sent.Add(1) }
func (m *Metrics) RecordMessageReceived()  { m.received.Add(1) }
func (m *Metrics) RecordCallbackReceived() { m.callbacks.Add(1) }
func (m *Metrics) RecordMessageEdited()    { m.edited.Add(1) }
func (m *Metrics) RecordMessageFailed()    { m.failed.Add(1) }
func (m *Metrics) RecordConnectionOpened() { m.connectionsOpened.Add(1) }
func (m *Metrics) RecordConnectionClosed() { m.connectionsClosed.Add(1) }
func (m *Metrics) RecordReconnectAttempt() { m.reconnects.Add(1) }

// RecordError counts one failure with the given code.
func (m *Metrics) RecordError(code ErrorCode) {
	m.errMu.Lock()
	m.errors[code]++
	m.errMu.Unlock()
}

// RecordSendLatency records how long one outgoing Bot API call took.
func (m *Metrics) RecordSendLatency(d time.Duration) { m.send.record(d) }

// RecordReceiveLatency records how long handling one update took.
func (m *Metrics) RecordReceiveLatency(d time.Duration) { m.receive.record(d) }

// Snapshot returns a consistent copy of every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.errMu.Lock()
	errs := maps.Clone(m.errors)
	m.errMu.Unlock()

	return MetricsSnapshot{
		Adapter:           m.adapter,
		MessagesSent:      m.sent.Load(),
		MessagesReceived:  m.received.Load(),
		CallbacksReceived: m.callbacks.Load(),
		MessagesEdited:    m.edited.Load(),
		MessagesFailed:    m.failed.Load(),
		ErrorsByCode:      errs,
		SendLatency:       m.send.snapshot(),
		ReceiveLatency:    m.receive.snapshot(),
		ConnectionsOpened: m.connectionsOpened.Load(),
		ConnectionsClosed: m.connectionsClosed.Load(),
		ReconnectAttempts: m.reconnects.Load(),
		Uptime:            time.Since(m.started),
	}
}

// MetricsSnapshot is a point-in-time copy of an adapter's Metrics.
type MetricsSnapshot struct {
	Adapter           string
	MessagesSent      uint64
	MessagesReceived  uint64
	CallbacksReceived uint64
	MessagesEdited    uint64
	MessagesFailed    uint64
	ErrorsByCode      map[ErrorCode]uint64
	SendLatency       LatencySnapshot
	ReceiveLatency    LatencySnapshot
	ConnectionsOpened uint64
	ConnectionsClosed uint64
	ReconnectAttempts uint64
	Uptime            time.Duration
}

// LatencySnapshot summarizes recorded durations.
type LatencySnapshot struct {
	Count uint64
	Total time.Duration
	Max   time.Duration
}

// Mean returns Total/Count, or zero when nothing was recorded.
func (s LatencySnapshot) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type latency struct {
	mu    sync.Mutex
	count uint64
	total time.Duration
	max   time.Duration
}

func (l *latency) record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.total += d
	if d > l.max {
		l.max = d
	}
}

func (l *latency) snapshot() LatencySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LatencySnapshot{Count: l.count, Total: l.total, Max: l.max}
}
