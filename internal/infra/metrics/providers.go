package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallsLatencyMs, providerTimeoutsTotal) }

var providerCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_calls_latency_ms",
		Help:    "Provider generate-call latency distribution in milliseconds.",
		Buckets: []float64{500, 1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000},
	},
	[]string{"provider", "model", "success"},
)

var providerTimeoutsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_timeouts_total",
		Help: "Generate calls abandoned after exceeding the wall-clock budget.",
	},
	[]string{"provider"},
)

func ObserveProviderCall(provider, model string, latencyMs int64, success bool) {
	providerCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncProviderTimeout(provider string) {
	providerTimeoutsTotal.WithLabelValues(norm(provider)).Inc()
}
