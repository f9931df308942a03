// Package metrics exposes planner progress as Prometheus collectors.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the planner collectors.
type Recorder struct {
	registry   *prometheus.Registry
	passes     *prometheus.CounterVec
	conflicts  prometheus.Counter
	rollbacks  prometheus.Counter
	bestScore  prometheus.Gauge
	avoidance  prometheus.Gauge
	states     prometheus.Gauge
	passEvents prometheus.Histogram
}

// NewRecorder registers the planner collectors on reg. If the collectors are
// already registered, the existing ones are reused.
func NewRecorder(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{registry: reg}
	var err error
	if r.passes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_passes_total",
		Help: "Simulation passes by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if r.conflicts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_conflicts_total",
		Help: "Conflicts detected across all passes",
	})); err != nil {
		return nil, err
	}
	if r.rollbacks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_rollbacks_total",
		Help: "Rollbacks performed",
	})); err != nil {
		return nil, err
	}
	if r.bestScore, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_best_score",
		Help: "Lowest score of a completed pass",
	})); err != nil {
		return nil, err
	}
	if r.avoidance, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_avoidance_rules",
		Help: "Avoidance rules learned so far",
	})); err != nil {
		return nil, err
	}
	if r.states, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_policy_states",
		Help: "States tabled by the dispatch policy",
	})); err != nil {
		return nil, err
	}
	if r.passEvents, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_pass_events",
		Help:    "Events processed per pass",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8),
	})); err != nil {
		return nil, err
	}
	return r, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePass records the end of one pass.
func (r *Recorder) ObservePass(outcome string, events int) {
	if r == nil {
		return
	}
	r.passes.WithLabelValues(outcome).Inc()
	r.passEvents.Observe(float64(events))
}

// ObserveConflict records a conflict and the resulting rollback.
func (r *Recorder) ObserveConflict(rolledBack bool) {
	if r == nil {
		return
	}
	r.conflicts.Inc()
	if rolledBack {
		r.rollbacks.Inc()
	}
}

// SetBestScore records the best completed score.
func (r *Recorder) SetBestScore(score float64) {
	if r == nil {
		return
	}
	r.bestScore.Set(score)
}

// SetLearned records the size of the learned state.
func (r *Recorder) SetLearned(avoidanceRules, policyStates int) {
	if r == nil {
		return
	}
	r.avoidance.Set(float64(avoidanceRules))
	r.states.Set(float64(policyStates))
}

// WriteTextfile writes every collected metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
