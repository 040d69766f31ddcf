package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/microgrid/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	cost      *prometheus.GaugeVec
	gap       *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
	fallbacks prometheus.Counter
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink(namespace string) (*PromSink, error) {
	return NewPromSinkWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(namespace string, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_runs_total",
		Help:      "Total number of planning runs",
	}, []string{"solver", "baseline"})
	cost := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plan_cost",
		Help:      "Objective value of the last plan",
	}, []string{"solver", "term"})
	gap := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plan_baseline_gap",
		Help:      "Direct cost of the last plan minus the LP baseline cost",
	}, []string{"solver"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "plan_duration_seconds",
		Help:      "Wall time of planning runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"solver"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_baseline_fallbacks_total",
		Help:      "Runs whose LP baseline could not be computed",
	})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if cost, err = register(reg, cost); err != nil {
		return nil, err
	}
	if gap, err = register(reg, gap); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if fallbacks, err = register(reg, fallbacks); err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, cost: cost, gap: gap, duration: duration, fallbacks: fallbacks}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlan updates the run counter, cost gauges and duration histogram.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.runs.WithLabelValues(ev.Solver, strconv.FormatBool(ev.HasBaseline)).Inc()
	s.cost.WithLabelValues(ev.Solver, "total").Set(ev.Cost)
	s.cost.WithLabelValues(ev.Solver, "direct").Set(ev.DirectCost)
	s.cost.WithLabelValues(ev.Solver, "penalty").Set(ev.Penalty)
	if ev.HasBaseline {
		s.gap.WithLabelValues(ev.Solver).Set(ev.DirectCost - ev.BaselineCost)
	}
	s.duration.WithLabelValues(ev.Solver).Observe(ev.Duration.Seconds())
	return nil
}

// RecordFallback counts baseline fallbacks.
func (s *PromSink) RecordFallback(coremetrics.FallbackEvent) error {
	s.fallbacks.Inc()
	return nil
}
