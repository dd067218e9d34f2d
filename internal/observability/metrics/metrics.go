package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the negotiation lifecycle.
// Construct with an explicit registerer so tests can use isolated registries.
type Metrics struct {
	NegotiationsStarted  prometheus.Counter
	NegotiationsTerminal *prometheus.CounterVec
	ActiveNegotiations   prometheus.Gauge
	PhaseTransitions     *prometheus.CounterVec

	ProviderRequestDuration *prometheus.HistogramVec
	PollCycleDuration       prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NegotiationsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "negotiations_started_total",
			Help: "Total number of negotiations submitted",
		}),
		NegotiationsTerminal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiations_terminal_total",
			Help: "Total number of negotiations reaching a terminal status",
		}, []string{"outcome"}),
		ActiveNegotiations: f.NewGauge(prometheus.GaugeOpts{
			Name: "negotiations_active",
			Help: "Number of negotiations currently being driven",
		}),
		PhaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_phase_transitions_total",
			Help: "Total number of phase transitions observed",
		}, []string{"phase"}),
		ProviderRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Time taken for voice provider API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		PollCycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "negotiation_poll_cycle_duration_seconds",
			Help:    "Time taken for one status poll cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveProviderRequest is the hook handed to the provider client.
func (m *Metrics) ObserveProviderRequest(operation string, d time.Duration, err error) {
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}
