// Package metrics exposes Prometheus instruments for the valuation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for submitted readings.
const (
	OutcomeAutoApplied = "auto_applied"
	OutcomeQueued      = "queued"
)

// Recorder is what the engine and the scheduler report into.
type Recorder interface {
	ObserveSubmission(outcome string, deviationBps float64)
	ObserveResolution(resolution string)
	SetPending(n float64)
	SetStalePending(n float64)
}

// Prom implements Recorder with Prometheus collectors.
type Prom struct {
	submitted    *prometheus.CounterVec
	resolved     *prometheus.CounterVec
	deviation    prometheus.Histogram
	pending      prometheus.Gauge
	stalePending prometheus.Gauge
}

// NewProm creates the collectors and registers them with reg.
func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_data_points_submitted_total",
			Help: "Readings submitted through addDataPoint, by outcome.",
		}, []string{"outcome"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_data_points_resolved_total",
			Help: "Pending readings resolved by an approver, by resolution.",
		}, []string{"resolution"}),
		deviation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "asset_data_point_deviation_bps",
			Help:    "Deviation of submitted readings from their baseline, in basis points.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asset_data_points_pending",
			Help: "Readings currently awaiting approval.",
		}),
		stalePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asset_data_points_pending_stale",
			Help: "Readings awaiting approval for longer than the configured stale age.",
		}),
	}

	reg.MustRegister(p.submitted, p.resolved, p.deviation, p.pending, p.stalePending)
	return p
}

// ObserveSubmission implements Recorder.
func (p *Prom) ObserveSubmission(outcome string, deviationBps float64) {
	p.submitted.WithLabelValues(outcome).Inc()
	p.deviation.Observe(deviationBps)
}

// ObserveResolution implements Recorder.
func (p *Prom) ObserveResolution(resolution string) {
	p.resolved.WithLabelValues(resolution).Inc()
}

// SetPending implements Recorder.
func (p *Prom) SetPending(n float64) {
	p.pending.Set(n)
}

// SetStalePending implements Recorder.
func (p *Prom) SetStalePending(n float64) {
	p.stalePending.Set(n)
}

// Nop discards observations.
type Nop struct{}

func (Nop) ObserveSubmission(string, float64) {}
func (Nop) ObserveResolution(string)          {}
func (Nop) SetPending(float64)                {}
func (Nop) SetStalePending(float64)           {}
