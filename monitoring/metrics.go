package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes
const (
	OutcomeOK            = "ok"
	OutcomeShapeMismatch = "shape_mismatch"
	OutcomePredictFailed = "prediction_failed"
	OutcomeStoreFailed   = "store_failed"
)

// Metrics 流水线指标
type Metrics struct {
	registry     *prometheus.Registry
	submissions  *prometheus.CounterVec
	predictions  *prometheus.CounterVec
	latency      prometheus.Histogram
	feedbackRows prometheus.Counter
	cacheHits    prometheus.Counter
	quality      *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "churnform", Subsystem: "pipeline", Name: "submissions_total", Help: "Submissions by outcome."},
			[]string{"outcome"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "churnform", Subsystem: "model", Name: "predictions_total", Help: "Predictions by label."},
			[]string{"label"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "churnform", Subsystem: "pipeline", Name: "duration_seconds",
			Help:    "Time from encoding to persisted feedback.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		feedbackRows: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "churnform", Subsystem: "feedback", Name: "rows_total", Help: "Rows appended to the feedback store."},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "churnform", Subsystem: "model", Name: "cache_hits_total", Help: "Predictions served from the cache."},
		),
		quality: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "churnform", Subsystem: "pipeline", Name: "quality_issues_total", Help: "Fields encoded as defaults, by rule."},
			[]string{"rule"},
		),
	}
	m.registry.MustRegister(
		m.submissions,
		m.predictions,
		m.latency,
		m.feedbackRows,
		m.cacheHits,
		m.quality,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSubmission 记录一次提交
func (m *Metrics) ObserveSubmission(outcome string, elapsed time.Duration) {
	m.submissions.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}

// ObservePrediction 记录预测标签
func (m *Metrics) ObservePrediction(label int, cached bool) {
	if label == 1 {
		m.predictions.WithLabelValues("churn").Inc()
	} else {
		m.predictions.WithLabelValues("stay").Inc()
	}
	if cached {
		m.cacheHits.Inc()
	}
}

// ObserveFeedbackRow 记录写入的反馈行
func (m *Metrics) ObserveFeedbackRow() {
	m.feedbackRows.Inc()
}

// ObserveQualityIssue 记录质量问题
func (m *Metrics) ObserveQualityIssue(rule string) {
	m.quality.WithLabelValues(rule).Inc()
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
