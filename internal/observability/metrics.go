package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcome labels.
const (
	OutcomeCompleted           = "completed"
	OutcomeEmptySpeech         = "empty_speech"
	OutcomeTranscriptionFailed = "transcription_failed"
	OutcomeDropped             = "dropped"
	OutcomeFailed              = "failed"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveConnections   prometheus.Gauge
	Turns               *prometheus.CounterVec
	WSMessages          *prometheus.CounterVec
	GatewayErrors       *prometheus.CounterVec
	GenerationFallbacks prometheus.Counter
	TurnLatency         prometheus.Histogram

	window *turnStageWindow
}

// NewMetrics registers the instruments with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers against an explicit registerer; tests pass a
// fresh registry so repeated construction cannot collide.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of connected voice clients.",
		}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns by outcome.",
		}, []string{"outcome"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		GatewayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "Gateway errors by gateway and class.",
		}, []string{"gateway", "class"}),
		GenerationFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallbacks_total",
			Help:      "Turns answered with the fixed fallback reply.",
		}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2000, 3000, 5000},
		}),
		window: newTurnStageWindow(256),
	}
}

// ObserveStage records one stage duration in the rolling window.
func (m *Metrics) ObserveStage(stage string, ms float64) {
	m.window.Observe(stage, ms)
}

// SnapshotTurnStages reports the rolling-window percentiles for /v1/perf/latency.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	return m.window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
