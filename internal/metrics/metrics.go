// Package metrics exposes Prometheus collectors for the notice pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal      *prometheus.CounterVec
	noticesRegisteredTotal *prometheus.CounterVec
	unitsTotal             *prometheus.CounterVec
	fieldsMergedTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticecrawler_pages_fetched_total",
				Help: "Documents fetched, labeled by source, kind, and status class.",
			},
			[]string{"source", "kind", "status"},
		)

		noticesRegisteredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticecrawler_notices_registered_total",
				Help: "Notice identifiers registered, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		unitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticecrawler_units_total",
				Help: "Units of batch work, labeled by job and outcome.",
			},
			[]string{"job", "outcome"},
		)

		fieldsMergedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticecrawler_fields_merged_total",
				Help: "Extraction merges applied, labeled by source.",
			},
			[]string{"source"},
		)
	})
}

// RecordPageFetched counts one fetched document.
func RecordPageFetched(source, kind, statusClass string) {
	if pagesFetchedTotal == nil {
		return
	}
	pagesFetchedTotal.WithLabelValues(source, kind, statusClass).Inc()
}

// RecordRegistered counts one RegisterIfAbsent outcome ("inserted" or "skipped").
func RecordRegistered(source, outcome string) {
	if noticesRegisteredTotal == nil {
		return
	}
	noticesRegisteredTotal.WithLabelValues(source, outcome).Inc()
}

// RecordUnit counts one unit of batch work ("ok" or "failed").
func RecordUnit(job, outcome string) {
	if unitsTotal == nil {
		return
	}
	unitsTotal.WithLabelValues(job, outcome).Inc()
}

// RecordMerge counts one applied field merge.
func RecordMerge(source string) {
	if fieldsMergedTotal == nil {
		return
	}
	fieldsMergedTotal.WithLabelValues(source).Inc()
}

// StatusClass buckets an HTTP status code ("2xx".."5xx", "other").
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
