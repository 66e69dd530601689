package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_requests_total",
			Help: "Total number of chat turns processed",
		},
		[]string{"agent", "model", "provider", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_request_duration_seconds",
			Help:    "Chat turn duration in seconds, first byte to terminal event",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"agent", "model", "provider"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_tokens_total",
			Help: "Total number of LLM tokens processed",
		},
		[]string{"agent", "model", "type"},
	)

	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_cost_usd_total",
			Help: "Total estimated cost in USD",
		},
		[]string{"agent", "model"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_provider_errors_total",
			Help: "Total number of upstream provider errors",
		},
		[]string{"provider", "code"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_active_streams",
			Help: "Number of event streams currently open",
		},
	)
)

func RecordRequest(agent, model, provider, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(agent, model, provider, status).Inc()
	RequestDuration.WithLabelValues(agent, model, provider).Observe(durationSec)
}

func RecordTokens(agent, model string, inputTokens, outputTokens int) {
	TokensTotal.WithLabelValues(agent, model, "input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues(agent, model, "output").Add(float64(outputTokens))
}

func RecordCost(agent, model string, costUSD float64) {
	CostTotal.WithLabelValues(agent, model).Add(costUSD)
}

func RecordProviderError(provider, code string) {
	ProviderErrors.WithLabelValues(provider, code).Inc()
}
