// Package metrics holds the Prometheus collectors for notification delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SMSAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readyalert_sms_attempts_total",
			Help: "SMS gateway results by outcome (sent, simulated, skipped, invalid, failed).",
		},
		[]string{"outcome"},
	)

	PushDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readyalert_push_deliveries_total",
			Help: "Web push delivery attempts by outcome (sent, gone, failed).",
		},
		[]string{"outcome"},
	)

	PushDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "readyalert_push_delivery_duration_seconds",
			Help:    "Duration of single web push delivery attempts.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	SubscriptionsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readyalert_push_subscriptions_pruned_total",
			Help: "Push subscriptions deleted after the provider reported them gone.",
		},
	)

	DetectorSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readyalert_detector_signals_total",
			Help: "One-shot change detector signals by kind (new, ready).",
		},
		[]string{"kind"},
	)

	ReadyTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readyalert_ready_transitions_total",
			Help: "Events marked ready through the notification orchestrator.",
		},
	)
)
