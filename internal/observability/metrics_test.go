package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	return string(body)
}

func TestMetricsExposed(t *testing.T) {
	m := NewMetrics("test")
	m.WSMessage("in", "transcript")
	m.WSMessage("in", "transcript")
	m.Segment("played")
	m.SetQueueDepth(3)
	m.Interrupt()
	m.Recording("sent")
	m.ServerError()
	m.Transition("processing")
	m.ObserveResponseLatency(300 * time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`test_ws_messages_total{direction="in",type="transcript"} 2`,
		`test_playback_segments_total{outcome="played"} 1`,
		`test_playback_queue_depth 3`,
		`test_playback_interrupts_total 1`,
		`test_recordings_total{result="sent"} 1`,
		`test_server_errors_total 1`,
		`test_state_transitions_total{to="processing"} 1`,
		`test_response_latency_ms_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := NewMetrics("iso")
	b := NewMetrics("iso")
	a.Interrupt()
	if strings.Contains(scrape(t, b), "iso_playback_interrupts_total 1") {
		t.Fatalf("second registry observed the first one's counter")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.WSMessage("out", "recording")
	m.SetQueueDepth(1)
	m.ObserveResponseLatency(time.Second)
	_ = scrape(t, m)
}
