package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoflow",
		Name:      "jobs_processed_total",
		Help:      "Total number of jobs processed, by queue, job and outcome",
	}, []string{"queue", "job", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoflow",
		Name:      "job_duration_seconds",
		Help:      "Duration of job handlers",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"queue", "job"})

	QueueWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "photoflow",
		Name:      "queue_waiting_jobs",
		Help:      "Number of undelivered jobs per queue",
	}, []string{"queue"})

	QueueActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "photoflow",
		Name:      "queue_active_jobs",
		Help:      "Number of in-flight jobs per queue",
	}, []string{"queue"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoflow",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	FacesAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoflow",
		Name:      "faces_assigned_total",
		Help:      "Total number of faces assigned to a person",
	})

	PersonsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoflow",
		Name:      "persons_created_total",
		Help:      "Total number of persons created by recognition",
	})

	VideosTranscoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoflow",
		Name:      "videos_transcoded_total",
		Help:      "Total number of video conversions, by transcode target",
	}, []string{"target"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoflow",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoflow",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
