package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lecture_notify_deliveries_total",
			Help: "Delivery attempts by channel, final status and error category",
		},
		[]string{"channel", "status", "category"},
	)

	dispatchSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lecture_notify_dispatch_skipped_total",
			Help: "Channels skipped before sending, by reason",
		},
		[]string{"reason"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lecture_notify_provider_duration_seconds",
			Help:    "Time spent in a provider send call",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	scannerTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lecture_notify_scanner_ticks_total",
			Help: "Reminder scanner ticks by outcome",
		},
		[]string{"outcome"},
	)

	scannerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lecture_notify_scanner_tick_duration_seconds",
			Help:    "Duration of a reminder scanner tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	settingsAuditWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lecture_notify_settings_audit_total",
			Help: "Settings audit entries by action and result",
		},
		[]string{"action", "result"},
	)
)
