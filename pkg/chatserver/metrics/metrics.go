package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAnswered  = "answered"
	OutcomeGreeting  = "greeting"
	OutcomeNoContext = "no_context"
	OutcomeDegraded  = "degraded"
	OutcomeError     = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_turns_total",
		Help: "Chat turns processed, by outcome.",
	}, []string{"outcome"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assistant_turn_duration_seconds",
		Help:    "End-to-end chat turn latency.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	retrievedChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_retrieved_chunks",
		Help:    "Chunks retrieved per turn after the similarity floor.",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	indexedChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assistant_indexed_chunks",
		Help: "Chunks currently in the vector index.",
	})
)

func RecordTurn(outcome string, duration time.Duration, retrieved int) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	retrievedChunks.Observe(float64(retrieved))
}

func SetIndexedChunks(count int) {
	indexedChunks.Set(float64(count))
}
