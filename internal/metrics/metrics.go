package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes counters for the job lifecycle and a histogram of how long
// completed extractions take.
type Metrics struct {
	jobsAccepted     prometheus.Counter
	jobsCompleted    prometheus.Counter
	jobsFailed       prometheus.Counter
	jobsCancelled    prometheus.Counter
	recordsExtracted prometheus.Counter
	jobDuration      prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_jobs_accepted_total",
			Help: "Extraction jobs accepted via scan/start.",
		}),
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_jobs_completed_total",
			Help: "Extraction jobs that reached the completed status.",
		}),
		jobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_jobs_failed_total",
			Help: "Extraction jobs that reached the failed status.",
		}),
		jobsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_jobs_cancelled_total",
			Help: "Extraction jobs cancelled by a client.",
		}),
		recordsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_records_total",
			Help: "Records persisted across all completed jobs.",
		}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "extraction_job_duration_seconds",
			Help:    "Wall-clock duration of completed extractions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

func (m *Metrics) JobAccepted()  { m.jobsAccepted.Inc() }
func (m *Metrics) JobFailed()    { m.jobsFailed.Inc() }
func (m *Metrics) JobCancelled() { m.jobsCancelled.Inc() }

func (m *Metrics) JobCompleted(d time.Duration, records int64) {
	m.jobsCompleted.Inc()
	m.recordsExtracted.Add(float64(records))
	m.jobDuration.Observe(d.Seconds())
}
