package optimize

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal        *prometheus.CounterVec
	evaluationsTotal *prometheus.CounterVec
	nonFiniteTotal   *prometheus.CounterVec
	bestCost         *prometheus.GaugeVec
	runDuration      *prometheus.HistogramVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.GaugeVec, *prometheus.HistogramVec) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_runs_total",
			Help: "Number of optimizer runs by outcome",
		},
		[]string{"solver", "status"},
	)
	evals := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_evaluations_total",
			Help: "Number of objective evaluations",
		},
		[]string{"solver"},
	)
	nonFinite := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_non_finite_evaluations_total",
			Help: "Number of objective evaluations that returned NaN or Inf",
		},
		[]string{"solver"},
	)
	best := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optimizer_best_cost",
			Help: "Best cost found by the last optimizer run",
		},
		[]string{"solver"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optimizer_run_duration_seconds",
			Help:    "Wall time of optimizer runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"solver"},
	)
	return runs, evals, nonFinite, best, dur
}

func init() {
	runsTotal, evaluationsTotal, nonFiniteTotal, bestCost, runDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimizer metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, evaluationsTotal, nonFiniteTotal, bestCost, runDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, evaluationsTotal, nonFiniteTotal, bestCost, runDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observeRun(solver string, start time.Time, res Result, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	runsTotal.WithLabelValues(solver, status).Inc()
	evaluationsTotal.WithLabelValues(solver).Add(float64(res.Evaluations))
	nonFiniteTotal.WithLabelValues(solver).Add(float64(res.NonFinite))
	if err == nil {
		bestCost.WithLabelValues(solver).Set(res.Cost)
	}
	runDuration.WithLabelValues(solver).Observe(time.Since(start).Seconds())
}
