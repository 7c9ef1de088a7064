package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments the upload worker.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobsInFlight   prometheus.Gauge
	chunksIngested *prometheus.CounterVec
	queueLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "upload_jobs_total",
			Help:      "Total processed upload jobs by media and status.",
		},
		[]string{"service", "media", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "upload_job_duration_seconds",
			Help:      "Upload job duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "upload_jobs_in_flight",
			Help:      "Number of upload jobs being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksIngested := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "chunks_ingested_total",
			Help:      "Total chunks inserted into case stores by media.",
		},
		[]string{"service", "media"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, chunksIngested, queueLag)

	return &WorkerMetrics{
		registry:       registry,
		jobsTotal:      jobsTotal,
		jobDuration:    jobDuration,
		jobsInFlight:   jobsInFlight,
		chunksIngested: chunksIngested,
		queueLag:       queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

// FinishJob records one job outcome. Media is empty when routing failed.
func (m *WorkerMetrics) FinishJob(service, media string, chunks int, duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case chunks == 0:
		status = "empty"
	}
	if media == "" {
		media = "unknown"
	}

	m.jobsTotal.WithLabelValues(service, media, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if chunks > 0 {
		m.chunksIngested.WithLabelValues(service, media).Add(float64(chunks))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
