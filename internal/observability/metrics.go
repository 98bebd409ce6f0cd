package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------
// Scout metrics on a dedicated Prometheus registry
// -----------------------------------------------------------------------

// Evaluation outcomes.
const (
	OutcomePassed      = "passed"
	OutcomeFailed      = "failed"
	OutcomeInvalidated = "invalidated"
)

// ScoreBuckets cover the 1-100 score range in tens.
var ScoreBuckets = prometheus.LinearBuckets(10, 10, 10)

// Metrics holds every scout collector. Safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	ruleFaults  *prometheus.CounterVec
	checkGrades *prometheus.CounterVec
	riskScore   *prometheus.HistogramVec
	moonScore   *prometheus.HistogramVec
	scanSeconds prometheus.Histogram
	alerts      prometheus.Counter
	cache       *prometheus.CounterVec
	feedFrames  *prometheus.CounterVec
}

// NewMetrics registers the scout collectors on a fresh registry along with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_evaluations_total",
			Help: "Model evaluations by model and outcome",
		}, []string{"model", "outcome"}),
		ruleFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_rule_faults_total",
			Help: "Rule predicate faults absorbed during evaluation",
		}, []string{"rule"}),
		checkGrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_check_grades_total",
			Help: "Check-model verdicts by grade",
		}, []string{"model", "grade"}),
		riskScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_risk_score",
			Help:    "Distribution of risk scores",
			Buckets: ScoreBuckets,
		}, []string{"level"}),
		moonScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_moon_score",
			Help:    "Distribution of moonshot scores",
			Buckets: ScoreBuckets,
		}, []string{"label"}),
		scanSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_scan_duration_seconds",
			Help:    "Duration of scan job runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_alerts_total",
			Help: "Alerts emitted for passed verdicts",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_wallet_age_cache_total",
			Help: "Wallet-age cache lookups by result",
		}, []string{"result"}),
		feedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_feed_frames_total",
			Help: "Snapshot feed frames by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.evaluations, m.ruleFaults, m.checkGrades,
		m.riskScore, m.moonScore, m.scanSeconds,
		m.alerts, m.cache, m.feedFrames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEvaluation counts one model verdict.
func (m *Metrics) ObserveEvaluation(modelID string, passed, invalidated bool) {
	outcome := OutcomeFailed
	switch {
	case invalidated:
		outcome = OutcomeInvalidated
	case passed:
		outcome = OutcomePassed
	}
	m.evaluations.WithLabelValues(modelID, outcome).Inc()
}

// RuleFault counts an absorbed predicate fault. Its signature matches the
// model evaluator's fault observer.
func (m *Metrics) RuleFault(ruleID string, _ error) {
	m.ruleFaults.WithLabelValues(ruleID).Inc()
}

// ObserveCheck counts one check-model verdict.
func (m *Metrics) ObserveCheck(modelID, grade string) {
	m.checkGrades.WithLabelValues(modelID, grade).Inc()
}

func (m *Metrics) ObserveRisk(score int, level string) {
	m.riskScore.WithLabelValues(level).Observe(float64(score))
}

func (m *Metrics) ObserveMoon(score int, label string) {
	m.moonScore.WithLabelValues(label).Observe(float64(score))
}

func (m *Metrics) ObserveScan(d time.Duration) {
	m.scanSeconds.Observe(d.Seconds())
}

func (m *Metrics) AlertEmitted() {
	m.alerts.Inc()
}

// CacheLookup counts a wallet-age cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cache.WithLabelValues("hit").Inc()
		return
	}
	m.cache.WithLabelValues("miss").Inc()
}

// FeedFrame counts a feed frame as accepted or dropped.
func (m *Metrics) FeedFrame(accepted bool) {
	if accepted {
		m.feedFrames.WithLabelValues("accepted").Inc()
		return
	}
	m.feedFrames.WithLabelValues("dropped").Inc()
}
