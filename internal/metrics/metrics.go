// Package metrics exposes screening outcomes as Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// Recorder receives screening and market-data observations. Implementations
// must be safe for concurrent use.
type Recorder interface {
	ObserveScreen(r models.ScreeningResult)
	ObserveProviderCall(op string, d time.Duration, err error)
}

// Noop discards every observation.
type Noop struct{}

// ObserveScreen implements Recorder.
func (Noop) ObserveScreen(models.ScreeningResult) {}

// ObserveProviderCall implements Recorder.
func (Noop) ObserveProviderCall(string, time.Duration, error) {}

// Prometheus records observations into Prometheus collectors.
type Prometheus struct {
	considered   *prometheus.CounterVec
	passed       *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	filterErrors *prometheus.CounterVec
	score        prometheus.Histogram
	duration     *prometheus.HistogramVec
	providerCall *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		considered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cso_candidates_considered_total",
				Help: "Candidates evaluated by the hard-filter pipeline",
			},
			[]string{"underlying"},
		),
		passed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cso_candidates_passed_total",
				Help: "Candidates that passed every hard filter",
			},
			[]string{"underlying"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cso_rejections_total",
				Help: "Candidates rejected, by the first failed filter",
			},
			[]string{"reason"},
		),
		filterErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cso_filter_errors_total",
				Help: "Filters that failed unexpectedly while evaluating a candidate",
			},
			[]string{"gate"},
		),
		score: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cso_composite_score",
				Help:    "Composite score of recommended candidates",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cso_screen_duration_seconds",
				Help:    "Duration of one screening call",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"underlying"},
		),
		providerCall: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cso_provider_call_duration_seconds",
				Help:    "Duration of market-data provider calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "status"},
		),
	}

	for _, c := range []prometheus.Collector{
		p.considered, p.passed, p.rejections, p.filterErrors, p.score, p.duration, p.providerCall,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return p, nil
}

// ObserveScreen implements Recorder.
func (p *Prometheus) ObserveScreen(r models.ScreeningResult) {
	label := r.Underlying
	if label == "" {
		label = "all"
	}
	p.considered.WithLabelValues(label).Add(float64(r.Considered))
	p.passed.WithLabelValues(label).Add(float64(r.Passed))
	for reason, n := range r.Rejections {
		if n > 0 {
			p.rejections.WithLabelValues(string(reason)).Add(float64(n))
		}
	}
	for _, fe := range r.FilterErrors {
		p.filterErrors.WithLabelValues(fe.Gate).Inc()
	}
	for _, rec := range r.Recommendations {
		p.score.Observe(rec.Score)
	}
	p.duration.WithLabelValues(label).Observe(r.Elapsed.Seconds())
}

// ObserveProviderCall implements Recorder.
func (p *Prometheus) ObserveProviderCall(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.providerCall.WithLabelValues(op, status).Observe(d.Seconds())
}
