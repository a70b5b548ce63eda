package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesFetchedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phantomscan",
			Subsystem: "pipeline",
			Name:      "candidates_fetched_total",
			Help:      "Candidates discovered per ecosystem per run.",
		},
		[]string{"ecosystem"},
	)
	candidatesScoredCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phantomscan",
			Subsystem: "pipeline",
			Name:      "candidates_scored_total",
			Help:      "Candidates that resolved in-registry and were scored.",
		},
		[]string{"ecosystem"},
	)
	candidatesWatchlistedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phantomscan",
			Subsystem: "pipeline",
			Name:      "candidates_watchlisted_total",
			Help:      "Candidates routed to the watchlist because existence probing failed.",
		},
		[]string{"ecosystem", "reason"},
	)
	scoreEcosystemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phantomscan",
			Subsystem: "pipeline",
			Name:      "score_ecosystem_duration_seconds",
			Help:      "Wall-clock duration of one ecosystem's existence+score pass.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"ecosystem"},
	)
)

func observeScoreEcosystem(eco string, start time.Time) {
	scoreEcosystemDuration.WithLabelValues(eco).Observe(time.Since(start).Seconds())
}
