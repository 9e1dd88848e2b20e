package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfqa"

// Metrics holds the collectors of the service on their own registry.
type Metrics struct {
	Registry          *prometheus.Registry
	StageDuration     *prometheus.HistogramVec
	ImageDescriptions *prometheus.CounterVec
	Questions         *prometheus.CounterVec
	Chunks            prometheus.Gauge
	Sessions          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of ingestion and answer stages.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "outcome"}),
		ImageDescriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_descriptions_total",
			Help:      "Image description calls by outcome.",
		}, []string{"outcome"}),
		Questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered by outcome.",
		}, []string{"outcome"}),
		Chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_chunks",
			Help:      "Chunks in the most recently built vector store.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open sessions.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StageDuration,
		m.ImageDescriptions,
		m.Questions,
		m.Chunks,
		m.Sessions,
	)
	return m
}

// ObserveStage records how long stage took. A nil err counts as ok.
func (m *Metrics) ObserveStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, Outcome(err)).Observe(time.Since(start).Seconds())
}

// ImageDescribed counts one image description call.
func (m *Metrics) ImageDescribed(outcome string) {
	if m == nil {
		return
	}
	m.ImageDescriptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuestionAnswered(err error) {
	if m == nil {
		return
	}
	m.Questions.WithLabelValues(Outcome(err)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
