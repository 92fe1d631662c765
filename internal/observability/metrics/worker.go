package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics observes the document lifecycle engine. It implements the
// poller's metrics hook.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        prometheus.Histogram
	pendingBacklog  prometheus.Gauge
	sweepsTotal     prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docai",
			Subsystem:   "worker",
			Name:        "document_process_total",
			Help:        "Total dispatched documents by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "docai",
			Subsystem:   "worker",
			Name:        "document_process_duration_seconds",
			Help:        "Document dispatch duration in seconds by outcome.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docai",
			Subsystem:   "worker",
			Name:        "document_process_in_flight",
			Help:        "Number of in-flight document dispatches.",
			ConstLabels: constLabels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docai",
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between document creation and dispatch start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)
	pendingBacklog := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docai",
			Subsystem:   "worker",
			Name:        "pending_backlog",
			Help:        "PENDING documents observed by the last poll sweep.",
			ConstLabels: constLabels,
		},
	)
	sweepsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "docai",
			Subsystem:   "worker",
			Name:        "poll_sweeps_total",
			Help:        "Total completed poll sweeps.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, pendingBacklog, sweepsTotal)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		pendingBacklog:  pendingBacklog,
		sweepsTotal:     sweepsTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) SweepCompleted(pending int) {
	m.sweepsTotal.Inc()
	m.pendingBacklog.Set(float64(pending))
}

func (m *WorkerMetrics) DispatchStarted() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) DispatchFinished(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
