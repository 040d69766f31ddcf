package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid/core/baseline"
	"github.com/kilianp07/microgrid/core/metrics"
	"github.com/kilianp07/microgrid/core/model"
	"github.com/kilianp07/microgrid/core/optimize"
)

func testData() model.ProblemData {
	return model.ProblemData{
		PV:   []float64{0, 6, 12, 4},
		Wind: []float64{3, 2, 1, 2},
		Load: []float64{20, 18, 25, 22},
	}
}

// fixedOptimizer returns the midpoint of the box.
type fixedOptimizer struct {
	calls int
	err   error
}

func (f *fixedOptimizer) Name() string { return "fixed" }

func (f *fixedOptimizer) Optimize(_ context.Context, obj optimize.Objective, lower, upper []float64) (optimize.Result, error) {
	f.calls++
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = (lower[i] + upper[i]) / 2
	}
	c := obj(x)
	return optimize.Result{
		Best:        x,
		Cost:        c,
		Trace:       []optimize.Iteration{{Index: 0, Best: c}, {Index: 1, Best: c}},
		Evaluations: 1,
	}, f.err
}

type spySink struct {
	plans     []metrics.PlanEvent
	steps     []metrics.StepEvent
	conv      []metrics.ConvergenceEvent
	fallbacks []metrics.FallbackEvent
	err       error
}

func (s *spySink) RecordPlan(ev metrics.PlanEvent) error {
	s.plans = append(s.plans, ev)
	return s.err
}

func (s *spySink) RecordSchedule(steps []metrics.StepEvent) error {
	s.steps = append(s.steps, steps...)
	return s.err
}

func (s *spySink) RecordConvergence(ev metrics.ConvergenceEvent) error {
	s.conv = append(s.conv, ev)
	return s.err
}

func (s *spySink) RecordFallback(ev metrics.FallbackEvent) error {
	s.fallbacks = append(s.fallbacks, ev)
	return s.err
}

func TestBounds(t *testing.T) {
	p := model.DefaultSystemParams()
	lo, hi := Bounds(p, 2, true)
	assert.Equal(t, []float64{0, 0, 0, 0, -p.Limits.MaxCharge, -p.Limits.MaxCharge}, lo)
	assert.Equal(t, []float64{
		p.Limits.MaxGrid, p.Limits.MaxGrid,
		p.Limits.MaxDiesel, p.Limits.MaxDiesel,
		p.Limits.MaxDischarge, p.Limits.MaxDischarge,
	}, hi)

	lo, _ = Bounds(p, 2, false)
	assert.Equal(t, make([]float64, 6), lo)
}

func TestPlanWithParticleSwarm(t *testing.T) {
	opts := optimize.DefaultPSOOptions()
	opts.MaxIter = 150
	opts.Seed = 11
	pso, err := optimize.NewParticleSwarm(opts)
	require.NoError(t, err)

	params := model.DefaultSystemParams()
	sink := &spySink{}
	pl, err := New(params, pso, WithSink(sink))
	require.NoError(t, err)

	data := testData()
	plan, err := pl.Plan(context.Background(), data)
	require.NoError(t, err)

	_, err = uuid.Parse(plan.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "pso", plan.Solver)
	assert.Equal(t, 4, plan.Horizon())
	require.Len(t, plan.SoC, 5)
	for _, s := range plan.SoC {
		assert.GreaterOrEqual(t, s, params.Battery.MinSoC)
		assert.LessOrEqual(t, s, params.Battery.MaxSoC)
	}
	lo, hi := Bounds(params, 4, true)
	x := append(append(append([]float64(nil), plan.Grid...), plan.Diesel...), plan.Battery...)
	for i := range x {
		assert.GreaterOrEqual(t, x[i], lo[i])
		assert.LessOrEqual(t, x[i], hi[i])
	}
	assert.InDelta(t, plan.Breakdown.Total(), plan.Cost, 1e-9)
	assert.Len(t, plan.History(), 150)
	assert.Equal(t, 30*151, plan.Evaluations)

	require.NotNil(t, plan.Baseline)
	assert.False(t, plan.Outcome.FallbackApplied)
	assert.LessOrEqual(t, plan.Baseline.Cost, plan.Cost+1e-2)

	require.Len(t, sink.plans, 1)
	assert.Equal(t, plan.RunID, sink.plans[0].RunID)
	assert.True(t, sink.plans[0].HasBaseline)
	assert.Len(t, sink.steps, 4)
	require.Len(t, sink.conv, 1)
	assert.Len(t, sink.conv[0].Best, 150)
	assert.Empty(t, sink.fallbacks)
}

func TestPlanIsDeterministic(t *testing.T) {
	run := func() Plan {
		opts := optimize.DefaultCuckooOptions()
		opts.MaxIter = 30
		opts.Seed = 5
		cs, err := optimize.NewCuckooSearch(opts)
		require.NoError(t, err)
		pl, err := New(model.DefaultSystemParams(), cs, WithBaseline(nil))
		require.NoError(t, err)
		plan, err := pl.Plan(context.Background(), testData())
		require.NoError(t, err)
		return plan
	}
	a, b := run(), run()
	assert.Equal(t, a.Grid, b.Grid)
	assert.Equal(t, a.Battery, b.Battery)
	assert.Equal(t, a.Cost, b.Cost)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestBaselineFallback(t *testing.T) {
	sink := &spySink{}
	pl, err := New(model.DefaultSystemParams(), &fixedOptimizer{},
		WithSink(sink),
		WithBaseline(func(model.ProblemData, model.SystemParams) (baseline.Result, error) {
			return baseline.Result{}, baseline.ErrSolver
		}))
	require.NoError(t, err)

	plan, err := pl.Plan(context.Background(), testData())
	require.NoError(t, err)
	assert.Nil(t, plan.Baseline)
	assert.True(t, plan.Outcome.FallbackApplied)
	assert.True(t, strings.Contains(plan.Outcome.Reason, "lp solve failed"))
	require.Len(t, sink.fallbacks, 1)
	assert.Equal(t, plan.RunID, sink.fallbacks[0].RunID)
	assert.False(t, sink.plans[0].HasBaseline)
}

func TestPlanReportsSoCClamping(t *testing.T) {
	pl, err := New(model.DefaultSystemParams(), &fixedOptimizer{}, WithBaseline(nil))
	require.NoError(t, err)
	plan, err := pl.Plan(context.Background(), testData())
	require.NoError(t, err)
	assert.False(t, plan.SoCClamped)

	// Without charging the midpoint discharges 15 kW every hour and empties
	// the 30 kWh above min_soc within two steps.
	pl, err = New(model.DefaultSystemParams(), &fixedOptimizer{}, WithBaseline(nil), WithAllowCharging(false))
	require.NoError(t, err)
	plan, err = pl.Plan(context.Background(), testData())
	require.NoError(t, err)
	assert.True(t, plan.SoCClamped)
	assert.Positive(t, plan.Breakdown.BoundsPenalty)
	assert.InDelta(t, model.DefaultSystemParams().Battery.MinSoC, plan.SoC[4], 1e-12)
}

func TestBaselineDisabled(t *testing.T) {
	pl, err := New(model.DefaultSystemParams(), &fixedOptimizer{}, WithBaseline(nil))
	require.NoError(t, err)
	plan, err := pl.Plan(context.Background(), testData())
	require.NoError(t, err)
	assert.Nil(t, plan.Baseline)
	assert.False(t, plan.Outcome.FallbackApplied)
}

func TestPlanRejectsInvalidDataBeforeSearch(t *testing.T) {
	opt := &fixedOptimizer{}
	pl, err := New(model.DefaultSystemParams(), opt)
	require.NoError(t, err)
	_, err = pl.Plan(context.Background(), model.ProblemData{PV: []float64{1}, Wind: []float64{1}, Load: []float64{1, 2}})
	assert.ErrorIs(t, err, model.ErrInvalidData)
	assert.Zero(t, opt.calls)
}

func TestPlanWrapsOptimizerErrors(t *testing.T) {
	pl, err := New(model.DefaultSystemParams(), &fixedOptimizer{err: optimize.ErrNumerical})
	require.NoError(t, err)
	_, err = pl.Plan(context.Background(), testData())
	assert.ErrorIs(t, err, optimize.ErrNumerical)
}

func TestPlanKeepsBestPointWhenInterrupted(t *testing.T) {
	pl, err := New(model.DefaultSystemParams(), &fixedOptimizer{err: context.DeadlineExceeded})
	require.NoError(t, err)
	plan, err := pl.Plan(context.Background(), testData())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 4, plan.Horizon())
	assert.Nil(t, plan.Baseline)
}

func TestSinkFailuresDoNotFailThePlan(t *testing.T) {
	sink := &spySink{err: errors.New("down")}
	pl, err := New(model.DefaultSystemParams(), &fixedOptimizer{}, WithSink(sink))
	require.NoError(t, err)
	_, err = pl.Plan(context.Background(), testData())
	assert.NoError(t, err)
	assert.Len(t, sink.plans, 1)
}

func TestScheduleTimestamps(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sink := &spySink{}
	params := model.DefaultSystemParams()
	params.Battery.StepHours = 0.5
	pl, err := New(params, &fixedOptimizer{}, WithSink(sink), WithClock(func() time.Time { return start }))
	require.NoError(t, err)
	plan, err := pl.Plan(context.Background(), testData())
	require.NoError(t, err)
	assert.Equal(t, start, plan.CreatedAt)
	require.Len(t, sink.steps, 4)
	assert.Equal(t, start.Add(90*time.Minute), sink.steps[3].Time)
	assert.Equal(t, plan.SoC[4], sink.steps[3].SoC)
}

func TestNewValidates(t *testing.T) {
	_, err := New(model.DefaultSystemParams(), nil)
	assert.ErrorIs(t, err, optimize.ErrInvalidConfiguration)

	bad := model.DefaultSystemParams()
	bad.Battery.ChargeEff = 0
	_, err = New(bad, &fixedOptimizer{})
	assert.ErrorIs(t, err, model.ErrInvalidParams)
}
