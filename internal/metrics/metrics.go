package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadengine"

// Metrics groups the collectors the engine reports to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobsStarted       prometheus.Counter
	JobsFinished      *prometheus.CounterVec
	JobsRunning       prometheus.Gauge
	RecordsGenerated  prometheus.Counter
	RateLimitRejected prometheus.Counter
	JobDuration       *prometheus.HistogramVec
	ListAttachments   prometheus.Counter
	Exports           *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Jobs accepted by the engine.",
		}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"status"}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Jobs currently pending or running.",
		}),
		RecordsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_generated_total",
			Help:      "Lead records generated across all jobs.",
		}),
		RateLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Job starts rejected by the start quota.",
		}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"status"}),
		ListAttachments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_attachments_total",
			Help:      "Jobs attached to lists.",
		}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "CSV exports served.",
		}, []string{"source"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
	m.JobsRunning.Inc()
}

// JobResumed counts a live job picked up from persistent history after a
// restart. It was counted as started by the previous process.
func (m *Metrics) JobResumed() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

func (m *Metrics) JobFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
	m.JobsRunning.Dec()
	m.JobDuration.WithLabelValues(status).Observe(seconds)
}

func (m *Metrics) Generated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsGenerated.Add(float64(n))
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.RateLimitRejected.Inc()
}

func (m *Metrics) Attached() {
	if m == nil {
		return
	}
	m.ListAttachments.Inc()
}

func (m *Metrics) Exported(source string) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(source).Inc()
}
