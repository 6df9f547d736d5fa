package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the gateway.
type Metrics struct {
	ActiveCalls      prometheus.Gauge
	CallEvents       *prometheus.CounterVec
	WebhookRequests  *prometheus.CounterVec
	DispatchOutcomes *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	TurnLatency      prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of calls currently tracked in the registry.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		WebhookRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Inbound telephony webhook requests by route.",
		}, []string{"route"}),
		DispatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_outcomes_total",
			Help:      "Background turn outcomes by result.",
		}, []string{"outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Downstream provider errors by provider and stage.",
		}, []string{"provider", "stage"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "Wall-clock time from recording submission to ready response.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
	}
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
