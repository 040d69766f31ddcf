// Package planner turns problem data into a dispatch plan: it builds the
// objective and the search box, runs the configured optimizer, re-simulates
// the battery and compares the result with the LP baseline.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/microgrid/core/baseline"
	"github.com/kilianp07/microgrid/core/logger"
	"github.com/kilianp07/microgrid/core/metrics"
	"github.com/kilianp07/microgrid/core/model"
	"github.com/kilianp07/microgrid/core/objective"
	"github.com/kilianp07/microgrid/core/optimize"
)

// BaselineFunc computes the reference dispatch for a problem.
type BaselineFunc func(model.ProblemData, model.SystemParams) (baseline.Result, error)

// Outcome reports how the run ended apart from the optimizer result.
type Outcome struct {
	// FallbackApplied is set when the LP baseline could not be computed and
	// the plan was produced without a reference cost.
	FallbackApplied bool   `json:"fallback_applied"`
	Reason          string `json:"reason,omitempty"`
}

// Plan is a planned dispatch over the whole horizon.
type Plan struct {
	RunID     string              `json:"run_id"`
	Solver    string              `json:"solver"`
	CreatedAt time.Time           `json:"created_at"`
	StepHours float64             `json:"step_hours"`
	Grid      []float64           `json:"grid"`
	Diesel    []float64           `json:"diesel"`
	Battery   []float64           `json:"battery"`
	SoC       []float64           `json:"soc"`
	// SoCClamped is set when the battery schedule hits the SoC window, so the
	// delivered battery power differs from the planned one.
	SoCClamped bool                `json:"soc_clamped"`
	Cost       float64             `json:"cost"`
	Breakdown  objective.Breakdown `json:"breakdown"`
	Baseline   *baseline.Result    `json:"baseline,omitempty"`
	Outcome    Outcome             `json:"outcome"`
	// Trace is the per-iteration optimizer state.
	Trace       []optimize.Iteration `json:"trace"`
	Evaluations int                  `json:"evaluations"`
	NonFinite   int                  `json:"non_finite"`
	Duration    time.Duration        `json:"duration"`
}

// Horizon returns the number of steps.
func (p Plan) Horizon() int { return len(p.Grid) }

// History returns the best cost after every iteration.
func (p Plan) History() []float64 {
	return optimize.Result{Trace: p.Trace}.History()
}

// Planner runs one optimizer against the dispatch objective.
type Planner struct {
	params        model.SystemParams
	weights       objective.Weights
	opt           optimize.Optimizer
	allowCharging bool
	baseline      BaselineFunc
	sink          metrics.MetricsSink
	log           logger.Logger
	now           func() time.Time
}

// Option customises a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Planner) { p.log = logger.OrNop(l) }
}

// WithSink sets the metrics sink.
func WithSink(s metrics.MetricsSink) Option {
	return func(p *Planner) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithWeights overrides the penalty weights.
func WithWeights(w objective.Weights) Option {
	return func(p *Planner) { p.weights = w }
}

// WithAllowCharging controls the battery lower bound: -MaxCharge when true,
// 0 when false.
func WithAllowCharging(allow bool) Option {
	return func(p *Planner) { p.allowCharging = allow }
}

// WithBaseline replaces the LP baseline. A nil function disables it.
func WithBaseline(f BaselineFunc) Option {
	return func(p *Planner) { p.baseline = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New returns a Planner for the given parameters and optimizer.
func New(params model.SystemParams, opt optimize.Optimizer, opts ...Option) (*Planner, error) {
	if opt == nil {
		return nil, fmt.Errorf("%w: nil optimizer", optimize.ErrInvalidConfiguration)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Planner{
		params:        params,
		weights:       objective.DefaultWeights(),
		opt:           opt,
		allowCharging: true,
		sink:          metrics.NopSink{},
		log:           logger.NopLogger{},
		now:           time.Now,
	}
	p.baseline = p.solveBaseline
	for _, o := range opts {
		o(p)
	}
	if err := p.weights.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Planner) solveBaseline(data model.ProblemData, params model.SystemParams) (baseline.Result, error) {
	o := baseline.DefaultOptions()
	o.AllowCharging = p.allowCharging
	return baseline.Solve(data, params, o)
}

// Bounds returns the search box for a horizon of T steps, laid out like the
// decision vector.
func Bounds(params model.SystemParams, T int, allowCharging bool) (lower, upper []float64) {
	lower = make([]float64, 3*T)
	upper = make([]float64, 3*T)
	grid, diesel, batt := objective.Split(upper)
	lgrid, ldiesel, lbatt := objective.Split(lower)
	for t := 0; t < T; t++ {
		lgrid[t], grid[t] = 0, params.Limits.MaxGrid
		ldiesel[t], diesel[t] = 0, params.Limits.MaxDiesel
		batt[t] = params.Limits.MaxDischarge
		if allowCharging {
			lbatt[t] = -params.Limits.MaxCharge
		}
	}
	return lower, upper
}

// Plan optimizes the dispatch for data. When ctx ends during the search the
// plan built from the best point so far is returned together with the
// context error.
func (p *Planner) Plan(ctx context.Context, data model.ProblemData) (Plan, error) {
	ev, err := objective.New(data, p.params, p.weights)
	if err != nil {
		return Plan{}, err
	}
	T := ev.Horizon()
	lower, upper := Bounds(p.params, T, p.allowCharging)

	plan := Plan{
		RunID:     uuid.NewString(),
		Solver:    p.opt.Name(),
		CreatedAt: p.now(),
		StepHours: p.params.Battery.StepHours,
	}
	p.log.Infof("plan %s: %d steps with %s", plan.RunID, T, plan.Solver)

	start := time.Now()
	res, err := p.opt.Optimize(ctx, ev.Objective(), lower, upper)
	plan.Duration = time.Since(start)
	if err != nil {
		interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		if !interrupted || len(res.Best) != 3*T {
			p.log.Errorf("plan %s: %v", plan.RunID, err)
			return Plan{}, fmt.Errorf("planner: %w", err)
		}
		p.log.Warnf("plan %s interrupted, keeping best point so far: %v", plan.RunID, err)
	}

	best := append([]float64(nil), res.Best...)
	grid, diesel, batt := objective.Split(best)
	plan.Grid, plan.Diesel, plan.Battery = grid, diesel, batt
	tr := ev.Trace(best)
	plan.SoC = tr.SoC
	plan.SoCClamped = tr.Clamped()
	plan.Breakdown = ev.Breakdown(best)
	plan.Cost = plan.Breakdown.Total()
	plan.Trace = res.Trace
	plan.Evaluations = res.Evaluations
	plan.NonFinite = res.NonFinite

	if err == nil && p.baseline != nil {
		ref, berr := p.baseline(data, p.params)
		if berr != nil {
			plan.Outcome = Outcome{FallbackApplied: true, Reason: berr.Error()}
			p.log.Warnf("plan %s: baseline unavailable: %v", plan.RunID, berr)
		} else {
			plan.Baseline = &ref
		}
	}

	if pen := plan.Breakdown.Penalty(); pen > 1e-6*(1+plan.Breakdown.Direct()) {
		p.log.Warnf("plan %s violates soft constraints (penalty %.4g)", plan.RunID, pen)
	}
	if plan.SoCClamped {
		p.log.Warnf("plan %s drives the battery outside its SoC window", plan.RunID)
	}
	p.log.Infof("plan %s: cost %.4f (direct %.4f, penalty %.4g) after %d evaluations in %s",
		plan.RunID, plan.Cost, plan.Breakdown.Direct(), plan.Breakdown.Penalty(), plan.Evaluations, plan.Duration)

	p.record(plan)
	return plan, err
}

// record forwards the plan to the sink. Sink failures are logged only.
func (p *Planner) record(plan Plan) {
	ev := metrics.PlanEvent{
		RunID:       plan.RunID,
		Solver:      plan.Solver,
		Horizon:     plan.Horizon(),
		Cost:        plan.Cost,
		DirectCost:  plan.Breakdown.Direct(),
		Penalty:     plan.Breakdown.Penalty(),
		Evaluations: plan.Evaluations,
		NonFinite:   plan.NonFinite,
		Duration:    plan.Duration,
		Time:        plan.CreatedAt,
	}
	if plan.Baseline != nil {
		ev.BaselineCost = plan.Baseline.Cost
		ev.HasBaseline = true
	}
	if err := p.sink.RecordPlan(ev); err != nil {
		p.log.Warnf("record plan: %v", err)
	}

	if rec, ok := p.sink.(metrics.ScheduleRecorder); ok {
		step := time.Duration(plan.StepHours * float64(time.Hour))
		steps := make([]metrics.StepEvent, plan.Horizon())
		for t := range steps {
			steps[t] = metrics.StepEvent{
				RunID:   plan.RunID,
				Step:    t,
				Grid:    plan.Grid[t],
				Diesel:  plan.Diesel[t],
				Battery: plan.Battery[t],
				SoC:     plan.SoC[t+1],
				Time:    plan.CreatedAt.Add(time.Duration(t) * step),
			}
		}
		if err := rec.RecordSchedule(steps); err != nil {
			p.log.Warnf("record schedule: %v", err)
		}
	}
	if rec, ok := p.sink.(metrics.ConvergenceRecorder); ok {
		cev := metrics.ConvergenceEvent{RunID: plan.RunID, Solver: plan.Solver, Best: plan.History(), Time: plan.CreatedAt}
		if err := rec.RecordConvergence(cev); err != nil {
			p.log.Warnf("record convergence: %v", err)
		}
	}
	if plan.Outcome.FallbackApplied {
		if rec, ok := p.sink.(metrics.FallbackRecorder); ok {
			fev := metrics.FallbackEvent{RunID: plan.RunID, Reason: plan.Outcome.Reason, Time: plan.CreatedAt}
			if err := rec.RecordFallback(fev); err != nil {
				p.log.Warnf("record fallback: %v", err)
			}
		}
	}
}
