// Package metrics exposes pipeline counters and timings on the standard
// Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's instruments. A nil *Metrics is valid and
// records nothing, so tests can pass nil.
type Metrics struct {
	StageRuns     *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	JobsCreated   prometheus.Counter
	ChunkSeconds  prometheus.Histogram
}

// New registers the instruments on the given registerer (pass
// prometheus.DefaultRegisterer in production).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcription",
			Name:      "stage_runs_total",
			Help:      "Stage executions, including retries.",
		}, []string{"stage"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcription",
			Name:      "stage_failures_total",
			Help:      "Stage executions that returned an error.",
		}, []string{"stage"}),
		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "transcription",
			Name:      "jobs_created_total",
			Help:      "Jobs accepted through the API.",
		}),
		ChunkSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "transcription",
			Name:      "chunk_transcribe_seconds",
			Help:      "Wall time spent transcribing one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// ObserveStage records one stage run and, when err is non-nil, a failure.
func (m *Metrics) ObserveStage(stage string, err error) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage).Inc()
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveChunk records the wall time of one chunk transcription.
func (m *Metrics) ObserveChunk(seconds float64) {
	if m == nil {
		return
	}
	m.ChunkSeconds.Observe(seconds)
}

// ObserveJobCreated counts one accepted job.
func (m *Metrics) ObserveJobCreated() {
	if m == nil {
		return
	}
	m.JobsCreated.Inc()
}
