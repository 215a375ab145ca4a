package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal *prometheus.CounterVec
	chatDuration      *prometheus.HistogramVec
	retrievedPassages *prometheus.HistogramVec
	emptyContextTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragline",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total chat requests by outcome kind.",
		},
		[]string{"service", "outcome"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Subsystem: "chat",
			Name:      "request_duration_seconds",
			Help:      "End-to-end chat request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Subsystem: "chat",
			Name:      "retrieved_passages",
			Help:      "Number of passages retrieved per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
		[]string{"service"},
	)
	emptyContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Subsystem: "chat",
			Name:      "empty_context_total",
			Help:      "Chat requests answered without retrieved context.",
		},
		[]string{"service"},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, chatRequestsTotal, chatDuration, retrievedPassages, emptyContextTotal)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		chatRequestsTotal: chatRequestsTotal,
		chatDuration:      chatDuration,
		retrievedPassages: retrievedPassages,
		emptyContextTotal: emptyContextTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) StartRequest() {
	m.requestInFlight.Inc()
}

func (m *HTTPServerMetrics) FinishRequest(service, method, path string, status int, duration time.Duration) {
	m.requestInFlight.Dec()
	m.requestTotal.WithLabelValues(service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveChat(service, outcome string, passages int, duration time.Duration) {
	m.chatRequestsTotal.WithLabelValues(service, outcome).Inc()
	m.chatDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.retrievedPassages.WithLabelValues(service).Observe(float64(passages))
	if outcome == "ok" && passages == 0 {
		m.emptyContextTotal.WithLabelValues(service).Inc()
	}
}
