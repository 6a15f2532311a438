package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TaskProcessed  *prometheus.CounterVec
	APIErrors      prometheus.Counter
	RequestSeconds *prometheus.HistogramVec
	ActiveJobs     prometheus.Gauge

	BatchJobs    *prometheus.CounterVec
	BatchPolls   prometheus.Counter
	BatchRows    *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TaskProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_tasks_processed_total",
			Help: "Total number of processed geocoding tasks.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		ActiveJobs: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geocoding_batch_jobs_active",
			Help: "Current number of batch jobs in flight.",
		}),
		BatchJobs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_batch_jobs_total",
			Help: "Total number of batch jobs by terminal status.",
		}, []string{"status"}),
		BatchPolls: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_batch_status_polls_total",
			Help: "Total number of batch job status polls.",
		}),
		BatchRows: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_batch_requests_total",
			Help: "Total number of batch requests by result.",
		}, []string{"result"}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_cache_lookups_total",
			Help: "Lookup cache reads by cache and result.",
		}, []string{"cache", "result"}),
	}
}
