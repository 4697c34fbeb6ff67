package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "suzy_ai_request_duration_seconds",
		Help:    "Latency of completion calls including retries.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"outcome"})

	aiRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suzy_ai_retries_total",
		Help: "Completion attempts retried after a transient failure.",
	})

	chatFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suzy_chat_fallback_responses_total",
		Help: "Chat replies replaced by the fallback text.",
	})

	timerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suzy_timer_events_total",
		Help: "Timer starts, stops and declines by kind.",
	}, []string{"event", "kind"})

	sessionDeclines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suzy_session_declines_total",
		Help: "Join and leave requests declined, by reason.",
	}, []string{"reason"})

	analyticsRegenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suzy_analytics_regenerations_total",
		Help: "Analytics rows rebuilt from source data.",
	}, []string{"scope"})
)
