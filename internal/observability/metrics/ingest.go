package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IngestMetrics struct {
	registry *prometheus.Registry

	itemsTotal    *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	itemsInFlight prometheus.Gauge
	batchSize     *prometheus.HistogramVec
	notifyLag     *prometheus.HistogramVec
}

func NewIngestMetrics(service string) *IngestMetrics {
	registry := prometheus.NewRegistry()

	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Subsystem: "ingest",
			Name:      "items_total",
			Help:      "Total processed ingestion items by outcome.",
		},
		[]string{"service", "outcome"},
	)
	itemDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Subsystem: "ingest",
			Name:      "item_duration_seconds",
			Help:      "Per-item fetch/vectorize/index duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	itemsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragline",
			Subsystem: "ingest",
			Name:      "items_in_flight",
			Help:      "Number of in-flight ingestion items.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Number of events per delivered notification batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"service"},
	)
	notifyLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Subsystem: "ingest",
			Name:      "notification_lag_seconds",
			Help:      "Delay between the storage event and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(itemsTotal, itemDuration, itemsInFlight, batchSize, notifyLag)

	return &IngestMetrics{
		registry:      registry,
		itemsTotal:    itemsTotal,
		itemDuration:  itemDuration,
		itemsInFlight: itemsInFlight,
		batchSize:     batchSize,
		notifyLag:     notifyLag,
	}
}

func (m *IngestMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IngestMetrics) StartItem() {
	m.itemsInFlight.Inc()
}

func (m *IngestMetrics) FinishItem(service, outcome string, duration time.Duration) {
	m.itemsInFlight.Dec()
	m.itemsTotal.WithLabelValues(service, outcome).Inc()
	m.itemDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *IngestMetrics) ObserveBatch(service string, size int) {
	m.batchSize.WithLabelValues(service).Observe(float64(size))
}

func (m *IngestMetrics) ObserveNotifyLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.notifyLag.WithLabelValues(service).Observe(lag.Seconds())
}
