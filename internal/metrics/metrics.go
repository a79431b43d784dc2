package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of service operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "giveaway_operation_duration_seconds",
			Help: "Duration of giveaway service operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"operation", "status"}, // status: success or failure
	)

	// LinkClicks counts tracked short link clicks
	LinkClicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_link_clicks_total",
			Help: "Tracked short link clicks",
		},
		[]string{"unique"},
	)

	// JoinOutcomes counts join attempts by outcome
	JoinOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_join_outcomes_total",
			Help: "Campaign join attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveSubscriptions tracks live campaign subscriptions
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giveaway_active_subscriptions",
			Help: "Number of live campaign list subscriptions",
		},
	)
)

// RecordOperation records the duration of an operation since start
func RecordOperation(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	OperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// RecordClick counts a tracked click
func RecordClick(unique bool) {
	label := "false"
	if unique {
		label = "true"
	}
	LinkClicks.WithLabelValues(label).Inc()
}

// RecordJoin counts a join outcome such as "joined", "duplicate" or "full"
func RecordJoin(outcome string) {
	JoinOutcomes.WithLabelValues(outcome).Inc()
}
