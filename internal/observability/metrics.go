package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the matching core and its shell.
// Every consumer nil-checks the *Metrics it was given.
type Metrics struct {
	// --- Core Processing ---
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreJournals       *prometheus.CounterVec
	CoreSequence       prometheus.Gauge
	CoreSequenceGaps   prometheus.Counter
	CoreHalted         prometheus.Gauge
	CoreViolations     *prometheus.CounterVec

	// --- Matching ---
	TradesTotal     prometheus.Counter
	SelfTrades      prometheus.Counter
	OpenOrders      *prometheus.GaugeVec
	MarketPrice     prometheus.Gauge
	MatchesPerOrder prometheus.Histogram

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter
	PersistAbandoned    prometheus.Counter

	// --- Ingestion ---
	IngestMessages   *prometheus.CounterVec
	IngestDuplicates prometheus.Counter
	IngestToApply    *prometheus.HistogramVec
	EventLogAppends  prometheus.Counter

	// --- Outbound ---
	PublishedMessages *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistTradesWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge
	ProjectionUpdateDur    *prometheus.HistogramVec

	// --- Replay ---
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core Processing
		CoreEventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_core_events_applied_total",
			Help: "Events applied by core (accepted or rejected on business grounds)",
		}, []string{"event_type"}),

		CoreEventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_core_events_rejected_total",
			Help: "Business rejections by reason",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "match_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event in core",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreJournals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "match_core_sequence",
			Help: "Last applied sequence",
		}),

		CoreSequenceGaps: f.NewCounter(prometheus.CounterOpts{
			Name: "match_core_sequence_gaps_total",
			Help: "Sequence gaps observed (tolerated)",
		}),

		CoreHalted: f.NewGauge(prometheus.GaugeOpts{
			Name: "match_core_halted",
			Help: "1 once the core halted on an invariant violation",
		}),

		CoreViolations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_core_invariant_violations_total",
			Help: "Invariant violations by code",
		}, []string{"code"}),

		// Matching
		TradesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "match_trades_total",
			Help: "Trades produced",
		}),

		SelfTrades: f.NewCounter(prometheus.CounterOpts{
			Name: "match_self_trades_total",
			Help: "Trades where taker and maker share a user",
		}),

		OpenOrders: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "match_open_orders",
			Help: "Resting orders per side",
		}, []string{"side"}),

		MarketPrice: f.NewGauge(prometheus.GaugeOpts{
			Name: "match_market_price",
			Help: "Last trade price",
		}),

		MatchesPerOrder: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "match_makers_per_order",
			Help:    "Makers consumed per taker order",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		// Channel & Backpressure
		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "match_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "match_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "match_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "match_publish_drops_total",
			Help: "Outputs dropped due to full publish channel",
		}),

		PersistBackpressure: f.NewCounter(prometheus.CounterOpts{
			Name: "match_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),
		PersistAbandoned: f.NewCounter(prometheus.CounterOpts{
			Name: "match_persist_abandoned_total",
			Help: "Outputs dropped because shutdown began while the core was blocked on persist",
		}),

		// Ingestion
		IngestMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_ingest_messages_total",
			Help: "Inbound messages by outcome",
		}, []string{"outcome"}),

		IngestDuplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "match_ingest_duplicates_total",
			Help: "Redelivered messages skipped (sequence already applied)",
		}),

		IngestToApply: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "match_ingest_to_apply_seconds",
			Help:    "NATS receive to core apply complete",
			Buckets: ingestBuckets,
		}, []string{"event_type"}),

		EventLogAppends: f.NewCounter(prometheus.CounterOpts{
			Name: "match_eventlog_appends_total",
			Help: "Events appended to the local event log",
		}),

		// Outbound
		PublishedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_published_messages_total",
			Help: "Outbound messages published",
		}, []string{"sink"}),

		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_publish_errors_total",
			Help: "Outbound publish failures",
		}, []string{"sink"}),

		// Persistence
		PersistEventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "match_persist_events_written_total",
			Help: "Event results written to Postgres",
		}),

		PersistTradesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "match_persist_trades_written_total",
			Help: "Trades written to Postgres",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "match_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "match_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "match_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "match_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "match_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		ProjectionUpdateDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "match_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		// Replay
		ReplayEventsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "match_replay_events_total",
			Help: "Events replayed on startup",
		}),

		ReplayDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "match_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// Query API
		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "match_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "match_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
