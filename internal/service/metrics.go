package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneycase_sessions_opened_total",
		Help: "Cash sessions opened",
	})

	openConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneycase_open_conflicts_total",
		Help: "Open attempts rejected because the branch already had an open session",
	})

	sessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneycase_sessions_closed_total",
			Help: "Cash sessions closed, by discrepancy classification",
		},
		[]string{"classification"},
	)

	salesSourceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moneycase_sales_source_duration_seconds",
		Help:    "Latency of sales data source lookups",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
	})
)
