package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipchat_chat_turns_total",
			Help: "Total number of completed chat turns by outcome.",
		},
		[]string{"outcome"},
	)
	reflectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipchat_reflections_total",
			Help: "Total number of corrective reflection calls sent to the model.",
		},
	)
	reflectionExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipchat_reflection_exhausted_total",
			Help: "Total number of turns that exhausted the reflection budget.",
		},
	)
	completionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shipchat_completion_latency_ms",
			Help:    "Completion provider round-trip latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)
	queryLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shipchat_query_latency_ms",
			Help:    "Scoped SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	loginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipchat_login_attempts_total",
			Help: "Order-code login attempts by result.",
		},
		[]string{"result"},
	)
	authRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipchat_auth_rejected_total",
			Help: "API requests rejected before reaching the chat surface.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		reflectionsTotal,
		reflectionExhaustedTotal,
		completionLatencyMs,
		queryLatencyMs,
		loginAttemptsTotal,
		authRejectedTotal,
	)
}

func ObserveTurn(outcome string, reflections int) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
	if reflections > 0 {
		reflectionsTotal.Add(float64(reflections))
	}
}

func IncrementReflectionExhausted() {
	reflectionExhaustedTotal.Inc()
}

func ObserveCompletionLatency(elapsed time.Duration) {
	completionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryLatency(elapsed time.Duration) {
	queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveAuthRejection(reason string) {
	authRejectedTotal.WithLabelValues(reason).Inc()
}

func ObserveLoginAttempt(found bool) {
	result := "not_found"
	if found {
		result = "ok"
	}
	loginAttemptsTotal.WithLabelValues(result).Inc()
}
