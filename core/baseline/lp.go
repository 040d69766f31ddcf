// Package baseline computes a linear-programming reference dispatch for a
// planning problem. The relaxation splits battery power into charge and
// discharge, keeps the SoC window as linear constraints, lets surplus be
// curtailed for free and lets load go unserved at a high price, so it always
// has a feasible point.
package baseline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/microgrid/core/battery"
	"github.com/kilianp07/microgrid/core/model"
)

// ErrSolver indicates the simplex run failed or returned an inconsistent point.
var ErrSolver = errors.New("baseline: lp solve failed")

// Options tune the relaxation.
type Options struct {
	// UnmetCost is the price of one kWh of unserved load.
	UnmetCost float64 `json:"unmet_cost"`
	// AllowCharging lets the battery absorb power. When false the battery can
	// only discharge.
	AllowCharging bool `json:"allow_charging"`
	// Tolerance is passed to the simplex solver.
	Tolerance float64 `json:"tolerance"`
}

// DefaultOptions returns the options used by the planner.
func DefaultOptions() Options {
	return Options{UnmetCost: 10, AllowCharging: true, Tolerance: 1e-7}
}

// Result is the optimal relaxed dispatch.
type Result struct {
	Grid      []float64 `json:"grid"`
	Diesel    []float64 `json:"diesel"`
	Battery   []float64 `json:"battery"`
	Curtailed []float64 `json:"curtailed"`
	Unserved  []float64 `json:"unserved"`
	SoC       []float64 `json:"soc"`
	// Cost is the operating cost comparable with objective.Breakdown.Direct.
	Cost float64 `json:"cost"`
	// UnservedCost is the price paid for Unserved, not included in Cost.
	UnservedCost float64 `json:"unserved_cost"`
}

// per-step variable blocks
const (
	varGrid = iota
	varDiesel
	varDischarge
	varCharge
	varCurtail
	varUnmet
	numVars
)

// solve points to the simplex call so tests can simulate solver failures.
var solve = lp.Simplex

// Solve returns the LP reference dispatch for data.
func Solve(data model.ProblemData, params model.SystemParams, opts Options) (Result, error) {
	if err := data.Validate(); err != nil {
		return Result{}, err
	}
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	if opts.UnmetCost <= 0 {
		return Result{}, fmt.Errorf("baseline: unmet cost must be positive")
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}

	c, a, b := build(data, params, opts)
	_, x, err := solve(c, a, b, opts.Tolerance, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSolver, err)
	}
	return extract(x, data, params, opts)
}

// build writes the problem in standard form, min cᵀx s.t. Ax = b, x >= 0.
// Columns are the six per-step blocks followed by the slack variables of the
// four power limits and the two SoC window sides. Rows are the power balance,
// the limits, the upper SoC side and the lower SoC side, T rows each.
func build(data model.ProblemData, params model.SystemParams, opts Options) ([]float64, *mat.Dense, []float64) {
	T := data.Horizon()
	cols := 12 * T
	rows := 7 * T
	v := func(block, t int) int { return block*T + t }
	slack := func(row int) int { return numVars*T + (row - T) }

	c := make([]float64, cols)
	for t := 0; t < T; t++ {
		c[v(varGrid, t)] = params.Costs.Grid
		c[v(varDiesel, t)] = params.Costs.Diesel
		c[v(varDischarge, t)] = params.Costs.Battery
		c[v(varCharge, t)] = params.Costs.Battery
		c[v(varUnmet, t)] = opts.UnmetCost
	}

	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)

	for t := 0; t < T; t++ {
		sign := 1.0
		net := data.Load[t] - data.PV[t] - data.Wind[t]
		if net < 0 {
			sign = -1
		}
		a.Set(t, v(varGrid, t), sign)
		a.Set(t, v(varDiesel, t), sign)
		a.Set(t, v(varDischarge, t), sign)
		a.Set(t, v(varCharge, t), -sign)
		a.Set(t, v(varCurtail, t), -sign)
		a.Set(t, v(varUnmet, t), sign)
		b[t] = sign * net
	}

	maxCharge := params.Limits.MaxCharge
	if !opts.AllowCharging {
		maxCharge = 0
	}
	limits := []struct {
		block int
		max   float64
	}{
		{varGrid, params.Limits.MaxGrid},
		{varDiesel, params.Limits.MaxDiesel},
		{varDischarge, params.Limits.MaxDischarge},
		{varCharge, maxCharge},
	}
	for k, lim := range limits {
		for t := 0; t < T; t++ {
			row := T + k*T + t
			a.Set(row, v(lim.block, t), 1)
			a.Set(row, slack(row), 1)
			b[row] = lim.max
		}
	}

	bp := params.Battery
	e0 := bp.InitialSoC * bp.CapacityKWh
	out := bp.StepHours / bp.DischargeEff
	in := bp.StepHours * bp.ChargeEff
	hi := 5 * T
	lo := 6 * T
	for t := 0; t < T; t++ {
		for s := 0; s <= t; s++ {
			a.Set(hi+t, v(varDischarge, s), -out)
			a.Set(hi+t, v(varCharge, s), in)
			a.Set(lo+t, v(varDischarge, s), out)
			a.Set(lo+t, v(varCharge, s), -in)
		}
		a.Set(hi+t, slack(hi+t), 1)
		a.Set(lo+t, slack(lo+t), 1)
		b[hi+t] = bp.MaxSoC*bp.CapacityKWh - e0
		b[lo+t] = e0 - bp.MinSoC*bp.CapacityKWh
	}
	return c, a, b
}

func extract(x []float64, data model.ProblemData, params model.SystemParams, opts Options) (Result, error) {
	T := data.Horizon()
	block := func(k int) []float64 {
		out := make([]float64, T)
		for t := range out {
			out[t] = math.Max(x[k*T+t], 0)
		}
		return out
	}
	res := Result{
		Grid:      block(varGrid),
		Diesel:    block(varDiesel),
		Curtailed: block(varCurtail),
		Unserved:  block(varUnmet),
		Battery:   make([]float64, T),
	}
	dis := block(varDischarge)
	ch := block(varCharge)

	scale := 1.0
	for t := 0; t < T; t++ {
		res.Battery[t] = dis[t] - ch[t]
		res.Cost += params.Costs.Grid*res.Grid[t] +
			params.Costs.Diesel*res.Diesel[t] +
			params.Costs.Battery*(dis[t]+ch[t])
		res.UnservedCost += opts.UnmetCost * res.Unserved[t]

		r := data.PV[t] + data.Wind[t] + res.Grid[t] + res.Diesel[t] + res.Battery[t] +
			res.Unserved[t] - res.Curtailed[t] - data.Load[t]
		scale = math.Max(scale, math.Abs(data.Load[t]))
		if math.Abs(r) > 1e-6*scale {
			return Result{}, fmt.Errorf("%w: balance residual %g at step %d", ErrSolver, r, t)
		}
	}
	res.SoC = battery.Simulate(res.Battery, params.Battery)
	return res, nil
}
