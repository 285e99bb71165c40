package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics are process-local counters and gauges kept for operator
// introspection via a debugger or a future exporter; nothing in this
// engine serves them over HTTP (no network-transport surface is in scope).
type Metrics struct {
	ActivationSets    prometheus.Counter
	MatchesFired      *prometheus.CounterVec
	UtterancesWritten prometheus.Counter
	RecordingActive   prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors against registry. Pass a
// dedicated *prometheus.Registry rather than the global default so tests
// can construct independent Orchestrators without colliding registrations.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ActivationSets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wakewing",
			Name:      "activation_sets_total",
			Help:      "Total ActivationSets evaluated by the matcher.",
		}),
		MatchesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakewing",
			Name:      "matches_fired_total",
			Help:      "Total times a match rule's chain completed and its action fired.",
		}, []string{"rule"}),
		UtterancesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wakewing",
			Name:      "utterances_written_total",
			Help:      "Total utterance WAV files written.",
		}),
		RecordingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wakewing",
			Name:      "recording_active",
			Help:      "1 while an utterance recording buffer is open, 0 otherwise.",
		}),
	}
	registry.MustRegister(m.ActivationSets, m.MatchesFired, m.UtterancesWritten, m.RecordingActive)
	return m
}
