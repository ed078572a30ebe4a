package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tro_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tro_hold_requests_total",
			Help: "Hold batches by outcome",
		},
		[]string{"outcome"},
	)

	HoldRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tro_hold_rollbacks_total",
			Help: "Seats returned to FREE by partial-batch rollback",
		},
		[]string{"result"},
	)

	SeatsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tro_seats_reclaimed_total",
			Help: "Expired holds reclaimed by the sweeper",
		},
	)

	SweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tro_sweep_failures_total",
			Help: "Sweep passes that failed",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tro_sweep_seconds",
			Help:    "Duration of sweep passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tro_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tro_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tro_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
