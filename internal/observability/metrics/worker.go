package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	sendTotal    *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
	sendInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	sendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "notifications_sent_total",
			Help:      "Total notification deliveries by status.",
		},
		[]string{"service", "status"},
	)
	sendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "notification_send_duration_seconds",
			Help:      "Notification delivery duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	sendInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "notification_send_in_flight",
			Help:      "Number of in-flight notification deliveries.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(sendTotal, sendDuration, sendInFlight)

	return &WorkerMetrics{
		registry:     registry,
		sendTotal:    sendTotal,
		sendDuration: sendDuration,
		sendInFlight: sendInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartNotification() {
	m.sendInFlight.Inc()
}

func (m *WorkerMetrics) FinishNotification(service string, duration time.Duration, err error) {
	m.sendInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.sendTotal.WithLabelValues(service, status).Inc()
	m.sendDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
