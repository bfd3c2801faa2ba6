// Package metrics exposes the service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindcare"

type Metrics struct {
	registry *prometheus.Registry

	chatTurns       *prometheus.CounterVec
	collabRequests  *prometheus.CounterVec
	collabDuration  *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	activeWebsocket prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Processed chat utterances by intent and reply kind.",
		}, []string{"intent", "kind"}),
		collabRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_requests_total",
			Help:      "Text completion requests by operation and outcome.",
		}, []string{"operation", "status"}),
		collabDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Text completion latency by operation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		activeWebsocket: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open live chat connections.",
		}),
	}

	m.registry.MustRegister(
		m.chatTurns,
		m.collabRequests,
		m.collabDuration,
		m.httpRequests,
		m.activeWebsocket,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTurn(intent, kind string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(intent, kind).Inc()
}

func (m *Metrics) ObserveCollaborator(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.collabRequests.WithLabelValues(operation, status).Inc()
	m.collabDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) WebsocketOpened() {
	if m != nil {
		m.activeWebsocket.Inc()
	}
}

func (m *Metrics) WebsocketClosed() {
	if m != nil {
		m.activeWebsocket.Dec()
	}
}
