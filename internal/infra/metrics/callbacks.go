package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(callbackNoticesTotal) }

var callbackNoticesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "callback_notices_total",
		Help: "Provider callback notices by outcome (applied/duplicate/unknown_task/ignored/malformed).",
	},
	[]string{"outcome"},
)

func IncCallbackNotice(outcome string) {
	callbackNoticesTotal.WithLabelValues(norm(outcome)).Inc()
}
