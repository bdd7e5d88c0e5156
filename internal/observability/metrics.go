package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the client's Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	WSMessages       *prometheus.CounterVec
	Segments         *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	Interrupts       prometheus.Counter
	Recordings       *prometheus.CounterVec
	ServerErrors     prometheus.Counter
	StateTransitions *prometheus.CounterVec
	ResponseLatency  prometheus.Histogram
}

// NewMetrics registers every instrument on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "orion"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		WSMessages: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Segments: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_segments_total",
			Help:      "Audio segments by outcome.",
		}, []string{"outcome"}),
		QueueDepth: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_queue_depth",
			Help:      "Segments waiting for playback.",
		}),
		Interrupts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_interrupts_total",
			Help:      "Playback interruptions.",
		}),
		Recordings: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Finished recordings by result.",
		}, []string{"result"}),
		ServerErrors: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_errors_total",
			Help:      "Error events received from the server.",
		}),
		StateTransitions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Assistant state changes by target state.",
		}, []string{"to"}),
		ResponseLatency: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_ms",
			Help:      "Time from sending a recording to the first server event in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
	}
}

func (m *Metrics) WSMessage(direction, kind string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, kind).Inc()
}

func (m *Metrics) Segment(outcome string) {
	if m == nil {
		return
	}
	m.Segments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) Interrupt() {
	if m == nil {
		return
	}
	m.Interrupts.Inc()
}

func (m *Metrics) Recording(result string) {
	if m == nil {
		return
	}
	m.Recordings.WithLabelValues(result).Inc()
}

func (m *Metrics) ServerError() {
	if m == nil {
		return
	}
	m.ServerErrors.Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveResponseLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ResponseLatency.Observe(float64(d.Milliseconds()))
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
