// Package metrics exposes Prometheus instrumentation for ingestion runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"video_ingestor/internal/domain"
)

const namespace = "video_ingestor"

// Video dispositions reported through CountVideos.
const (
	DispositionIngested          = "ingested"
	DispositionLanguageRejected  = "language_rejected"
	DispositionMissingStatistics = "missing_statistics"
	DispositionTooShort          = "too_short"
	DispositionUnknownCategory   = "unknown_category"
	DispositionDuplicate         = "duplicate"
	DispositionConflict          = "conflict"
)

type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	VideosTotal         *prometheus.CounterVec
	CredentialRotations prometheus.Counter
	LastSuccessUnix     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Ingestion runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of ingestion runs",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
			},
		),
		VideosTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "videos_total",
				Help:      "Videos seen by the pipeline, by disposition",
			},
			[]string{"disposition"},
		),
		CredentialRotations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_rotations_total",
				Help:      "API key rotations caused by exhausted quota",
			},
		),
		LastSuccessUnix: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that did not abort",
			},
		),
	}
}

func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDurationSeconds.Observe(d.Seconds())
	if outcome != domain.OutcomeAborted {
		m.LastSuccessUnix.SetToCurrentTime()
	}
}

func (m *Metrics) CountVideos(disposition string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.VideosTotal.WithLabelValues(disposition).Add(float64(n))
}

func (m *Metrics) CountRotation() {
	if m == nil {
		return
	}
	m.CredentialRotations.Inc()
}
