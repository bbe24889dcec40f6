package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// Registry holds every Prometheus metric of the monitor
// ⭐ SSOT: metric names are declared here only
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	EvaluationDuration *prometheus.HistogramVec
	Evaluations        *prometheus.CounterVec
	Findings           *prometheus.CounterVec

	CacheLookups *prometheus.CounterVec
	CacheRecords *prometheus.GaugeVec

	PriceFetchDuration *prometheus.HistogramVec
	EnrichFailures     *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec

	AlertSubscribers prometheus.Gauge
}

// New creates a registry with all metrics registered on a private
// prometheus.Registry, plus Go and process collectors
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "varwatch_evaluation_duration_seconds",
				Help:    "Duration of a full enrich and evaluate run in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		),

		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varwatch_evaluations_total",
				Help: "Total number of evaluation runs by result",
			},
			[]string{"result"},
		),

		Findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varwatch_findings_total",
				Help: "Total number of rule findings by rule",
			},
			[]string{"rule"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varwatch_cache_lookups_total",
				Help: "Ticker risk cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		CacheRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "varwatch_cache_records",
				Help: "Ticker risk cache population by quality tier",
			},
			[]string{"quality"},
		),

		PriceFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "varwatch_price_fetch_duration_seconds",
				Help:    "Price history fetch latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "result"},
		),

		EnrichFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varwatch_enrich_failures_total",
				Help: "Per-symbol enrichment failures by stage (fetch, estimate)",
			},
			[]string{"stage"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "varwatch_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),

		AlertSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "varwatch_alert_subscribers",
				Help: "Connected websocket alert subscribers",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.EvaluationDuration,
		r.Evaluations,
		r.Findings,
		r.CacheLookups,
		r.CacheRecords,
		r.PriceFetchDuration,
		r.EnrichFailures,
		r.BreakerState,
		r.AlertSubscribers,
	)

	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveEvaluation records one completed or failed run
func (r *Registry) ObserveEvaluation(d time.Duration, err error, findings []contracts.Finding) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.EvaluationDuration.WithLabelValues(result).Observe(d.Seconds())
	r.Evaluations.WithLabelValues(result).Inc()
	for _, f := range findings {
		r.Findings.WithLabelValues(f.RuleID).Inc()
	}
}

// CacheHit records a cache hit
func (r *Registry) CacheHit() {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss records a cache miss
func (r *Registry) CacheMiss() {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues("miss").Inc()
}

// SetCacheCounts publishes the tier distribution
func (r *Registry) SetCacheCounts(counts map[contracts.QualityTier]int) {
	if r == nil {
		return
	}
	for _, q := range []contracts.QualityTier{contracts.QualityGood, contracts.QualityMid, contracts.QualityBad, contracts.QualityUnknown} {
		r.CacheRecords.WithLabelValues(string(q)).Set(float64(counts[q]))
	}
}

// ObservePriceFetch records one provider call
func (r *Registry) ObservePriceFetch(provider string, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.PriceFetchDuration.WithLabelValues(provider, result).Observe(d.Seconds())
}

// EnrichFailure records a per-symbol failure
func (r *Registry) EnrichFailure(stage string) {
	if r == nil {
		return
	}
	r.EnrichFailures.WithLabelValues(stage).Inc()
}

// SetBreakerState publishes a breaker state (0 closed, 1 half-open, 2 open)
func (r *Registry) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}

// SetSubscribers publishes the websocket subscriber count
func (r *Registry) SetSubscribers(n int) {
	if r == nil {
		return
	}
	r.AlertSubscribers.Set(float64(n))
}
