package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarfeed_donations_ingested_total",
		Help: "Donations accepted by the ingestion pipeline, labelled by kind (real or test).",
	}, []string{"kind"})

	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarfeed_store_writes_total",
		Help: "Donation upserts, labelled by status.",
	}, []string{"status"})

	QueryFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarfeed_query_memory_fallbacks_total",
		Help: "Read queries answered from in-memory state after a store failure.",
	}, []string{"query"})

	BankRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarfeed_bank_requests_total",
		Help: "Calls to the bank API, labelled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	ClientInfoCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarfeed_client_info_cache_total",
		Help: "Client info cache lookups, labelled by result (hit, miss, stale).",
	}, []string{"result"})

	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarfeed_poll_cycles_total",
		Help: "Completed poll cycles, labelled by outcome.",
	}, []string{"outcome"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jarfeed_poll_duration_ms",
		Help:    "Poll cycle latency in milliseconds.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jarfeed_realtime_subscribers",
		Help: "Currently connected realtime subscribers.",
	})

	BroadcastsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jarfeed_broadcasts_skipped_total",
		Help: "Messages not delivered because a subscriber buffer was full.",
	})
)
