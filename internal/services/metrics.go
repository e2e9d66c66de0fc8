package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HairyGair/go-barry/internal/sources"
)

var (
	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "barry",
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching incidents from each source.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "barry",
		Subsystem: "source",
		Name:      "fetch_failures_total",
		Help:      "Failed incident fetches per source.",
	}, []string{"source"})

	alertsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "barry",
		Name:      "alerts_current",
		Help:      "Alerts in the current reconciled snapshot.",
	})

	refreshEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "barry",
		Name:      "refresh_escalations_total",
		Help:      "Refresh cycles escalated after every source failed repeatedly.",
	})
)

func observeFetch(res sources.Result) {
	fetchDuration.WithLabelValues(res.Source).Observe(res.Duration.Seconds())
	if !res.Success {
		fetchFailures.WithLabelValues(res.Source).Inc()
	}
}
