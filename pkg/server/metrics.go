package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "codesync"

// metrics holds the Prometheus instruments for the collaboration server.
type metrics struct {
	activeConnections prometheus.Gauge
	activeSessions    prometheus.Gauge
	broadcastsTotal   *prometheus.CounterVec
	droppedFrames     prometheus.Counter
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
}

// The default registerer tolerates only one registration per metric name, so
// servers sharing it also share one metrics instance. Custom registries (as
// used in tests) get their own.
var (
	defaultMetrics   *metrics
	defaultMetricsMu sync.Mutex
)

func newMetrics(registry prometheus.Registerer) *metrics {
	if registry == prometheus.DefaultRegisterer {
		defaultMetricsMu.Lock()
		defer defaultMetricsMu.Unlock()
		if defaultMetrics == nil {
			defaultMetrics = initMetrics(registry)
		}
		return defaultMetrics
	}
	return initMetrics(registry)
}

func initMetrics(registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)

	return &metrics{
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of live collaborative sessions",
		}),

		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Total broadcast fan-outs by message type",
		}, []string{"type"}),

		droppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a client send queue was full",
		}),

		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "executions_total",
			Help:      "Code executions by outcome",
		}, []string{"outcome"}),

		executionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "execution_duration_seconds",
			Help:      "Code execution wall-clock duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10},
		}),
	}
}
