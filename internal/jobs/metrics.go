// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	lowStock    *prometheus.GaugeVec
	now         func() time.Time
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer returns
// a process-wide instance on the default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barberia_jobs_total",
			Help: "Job runs by job and status (success or failure).",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barberia_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barberia_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job"}),
		lowStock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barberia_low_stock_products",
			Help: "Products at or below their minimum stock, by level, as of the last scan.",
		}, []string{"level"}),
		now: time.Now,
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.lowStock)
	return m
}

// Run measures one execution of a job.
type Run struct {
	metrics *Metrics
	job     string
	started time.Time
}

// Begin starts measuring a run of job. Safe on a nil receiver.
func (m *Metrics) Begin(job string) *Run {
	if m == nil {
		return &Run{job: job}
	}
	return &Run{metrics: m, job: job, started: m.now()}
}

// Finish records the outcome and returns err unchanged.
func (r *Run) Finish(err error) error {
	if r == nil || r.metrics == nil {
		return err
	}
	m := r.metrics
	end := m.now()
	m.duration.WithLabelValues(r.job).Observe(end.Sub(r.started).Seconds())
	if err != nil {
		m.runs.WithLabelValues(r.job, "failure").Inc()
		return err
	}
	m.runs.WithLabelValues(r.job, "success").Inc()
	m.lastSuccess.WithLabelValues(r.job).Set(float64(end.Unix()))
	return nil
}

// SetLowStock records how many products the last scan found at level.
func (m *Metrics) SetLowStock(level string, count int) {
	if m == nil {
		return
	}
	m.lowStock.WithLabelValues(level).Set(float64(count))
}
