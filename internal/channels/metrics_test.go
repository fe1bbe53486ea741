package channels

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics("telegram")
	m.RecordMessageSent()
	m.RecordMessageSent()
	m.RecordMessageEdited()
	m.RecordCallbackReceived()
	m.RecordMessageFailed()
	m.RecordError(ErrCodeForbidden)
	m.RecordError(ErrCodeForbidden)
	m.RecordSendLatency(20 * time.Millisecond)

	snap := m.Snapshot()
	if snap.Adapter != "telegram" {
		t.Errorf("Adapter = %q", snap.Adapter)
	}
	if snap.MessagesSent != 2 || snap.MessagesEdited != 1 || snap.CallbacksReceived != 1 || snap.MessagesFailed != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.ErrorsByCode[ErrCodeForbidden] != 2 {
		t.Errorf("forbidden errors = %d, want 2", snap.ErrorsByCode[ErrCodeForbidden])
	}
	if snap.SendLatency.Count != 1 {
		t.Errorf("send latency count = %d, want 1", snap.SendLatency.Count)
	}
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics("telegram")
	m.RecordError(ErrCodeTimeout)

	snap := m.Snapshot()
	m.RecordError(ErrCodeTimeout)

	if snap.ErrorsByCode[ErrCodeTimeout] != 1 {
		t.Errorf("snapshot changed after recording: %d", snap.ErrorsByCode[ErrCodeTimeout])
	}
}

func TestLatencySnapshot(t *testing.T) {
	tests := []struct {
		name     string
		samples  []time.Duration
		wantMean time.Duration
		wantMax  time.Duration
	}{
		{name: "empty"},
		{name: "single", samples: []time.Duration{5 * time.Millisecond}, wantMean: 5 * time.Millisecond, wantMax: 5 * time.Millisecond},
		{name: "several", samples: []time.Duration{10, 30, 20}, wantMean: 20, wantMax: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics("telegram")
			for _, d := range tt.samples {
				m.RecordReceiveLatency(d)
			}
			got := m.Snapshot().ReceiveLatency
			if got.Count != uint64(len(tt.samples)) {
				t.Errorf("Count = %d", got.Count)
			}
			if got.Mean() != tt.wantMean || got.Max != tt.wantMax {
				t.Errorf("Mean() = %v, Max = %v; want %v, %v", got.Mean(), got.Max, tt.wantMean, tt.wantMax)
			}
		})
	}
}

func TestMetricsConcurrentRecording(t *testing.T) {
	m := NewMetrics("telegram")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordMessageSent()
			m.RecordError(ErrCodeRateLimit)
			m.RecordSendLatency(time.Millisecond)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.MessagesSent != 50 || snap.ErrorsByCode[ErrCodeRateLimit] != 50 || snap.SendLatency.Count != 50 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
