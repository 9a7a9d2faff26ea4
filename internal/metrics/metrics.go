package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_dispatch_total",
			Help: "Total number of agent dispatches",
		},
		[]string{"agent", "status"}, // status: success|error|invalid
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finagent_dispatch_duration_seconds",
			Help:    "Agent dispatch latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent"},
	)

	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_tool_calls_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	ModelTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_model_tokens_total",
			Help: "Total tokens consumed by model calls",
		},
		[]string{"model", "type"}, // type: input|output
	)
)

func init() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(ToolCalls)
	prometheus.MustRegister(ModelTokens)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Status maps an error to the status label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
