// Package metrics records upload counters in a private Prometheus registry
// that is written to a textfile when the run ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder struct {
	registry *prometheus.Registry

	itemsTotal       *prometheus.CounterVec
	collectionsTotal *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	itemDuration     prometheus.Histogram
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		itemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploader_items_total",
				Help: "Products processed, by outcome",
			},
			[]string{"status"},
		),
		collectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploader_collections_total",
				Help: "Collections ensured, by outcome",
			},
			[]string{"status"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploader_remote_requests_total",
				Help: "GraphQL round trips, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uploader_remote_request_duration_seconds",
				Help:    "Duration of GraphQL round trips",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		itemDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uploader_item_duration_seconds",
				Help:    "Time spent on one product, from taxonomy lookup to publish",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveItem records one finished product. status is success, failed or
// skipped.
func (r *Recorder) ObserveItem(status string, elapsed time.Duration) {
	r.itemsTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		r.itemDuration.Observe(elapsed.Seconds())
	}
}

func (r *Recorder) ObserveCollection(status string) {
	r.collectionsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveRequest(operation string, outcome string, elapsed time.Duration) {
	r.requestsTotal.WithLabelValues(operation, outcome).Inc()
	r.requestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// WriteFile writes every metric in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
