package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainseason_upstream_calls_total",
			Help: "Total calls to upstream APIs",
		},
		[]string{"source", "endpoint", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rainseason_upstream_latency_seconds",
			Help:    "Upstream API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "endpoint"},
	)

	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainseason_rainfall_records_ingested_total",
			Help: "Total daily rainfall records parsed from upstream",
		},
		[]string{"endpoint"},
	)

	OutlookCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainseason_outlook_cache_total",
			Help: "Seasonal outlook cache lookups by result",
		},
		[]string{"result"},
	)

	OutlooksComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainseason_outlooks_computed_total",
			Help: "Seasonal outlooks computed by region, season and onset status",
		},
		[]string{"region", "season", "onset_status"},
	)

	IntentsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainseason_intents_routed_total",
			Help: "Chat messages routed by query type and extractor",
		},
		[]string{"query_type", "extractor"},
	)

	BotReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainseason_bot_replies_total",
			Help: "Chat replies by outcome",
		},
		[]string{"outcome"},
	)
)
