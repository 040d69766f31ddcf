// Package objective scores dispatch decision vectors: direct operating cost
// plus quadratic soft-constraint penalties.
package objective

import (
	"fmt"
	"math"

	"github.com/kilianp07/microgrid/core/battery"
	"github.com/kilianp07/microgrid/core/model"
	"github.com/kilianp07/microgrid/core/optimize"
)

// Weights scale the quadratic penalty terms.
type Weights struct {
	// Balance multiplies the squared power-balance residuals.
	Balance float64 `json:"balance"`
	// Bounds multiplies the squared limit and SoC violations.
	Bounds float64 `json:"bounds"`
}

// DefaultWeights returns the reference penalty weights.
func DefaultWeights() Weights {
	return Weights{Balance: 1e3, Bounds: 1e5}
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.Balance < 0 || w.Bounds < 0 {
		return fmt.Errorf("penalty weights must not be negative")
	}
	return nil
}

// Breakdown itemises the cost of one decision vector.
type Breakdown struct {
	GridCost    float64 `json:"grid_cost"`
	DieselCost  float64 `json:"diesel_cost"`
	BatteryCost float64 `json:"battery_cost"`
	// BalancePenalty and BoundsPenalty already include their weights.
	BalancePenalty float64 `json:"balance_penalty"`
	BoundsPenalty  float64 `json:"bounds_penalty"`
}

// Direct returns the operating cost without penalties.
func (b Breakdown) Direct() float64 { return b.GridCost + b.DieselCost + b.BatteryCost }

// Penalty returns the weighted penalty total.
func (b Breakdown) Penalty() float64 { return b.BalancePenalty + b.BoundsPenalty }

// Total returns the scalar minimised by the optimizers.
func (b Breakdown) Total() float64 { return b.Direct() + b.Penalty() }

// Evaluator is the fitness function of the dispatch problem. It holds
// immutable copies of its inputs and keeps no state between calls, so a
// single Evaluator can be shared by concurrent workers.
type Evaluator struct {
	data    model.ProblemData
	params  model.SystemParams
	weights Weights
}

// New validates its inputs and returns an Evaluator for them.
func New(data model.ProblemData, params model.SystemParams, weights Weights) (*Evaluator, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	cp := model.ProblemData{
		PV:   append([]float64(nil), data.PV...),
		Wind: append([]float64(nil), data.Wind...),
		Load: append([]float64(nil), data.Load...),
	}
	return &Evaluator{data: cp, params: params, weights: weights}, nil
}

// Horizon returns T.
func (e *Evaluator) Horizon() int { return e.data.Horizon() }

// Dim returns the decision vector length 3T.
func (e *Evaluator) Dim() int { return 3 * e.data.Horizon() }

// Evaluate returns the total cost of x. x is not clamped. A vector whose
// length is not 3T scores +Inf.
func (e *Evaluator) Evaluate(x []float64) float64 {
	if len(x) != e.Dim() {
		return math.Inf(1)
	}
	return e.Breakdown(x).Total()
}

// Objective returns Evaluate as an optimizer objective.
func (e *Evaluator) Objective() optimize.Objective {
	return e.Evaluate
}

// Breakdown computes every cost and penalty term of x. It panics when x is
// shorter than 3T.
func (e *Evaluator) Breakdown(x []float64) Breakdown {
	grid, diesel, batt := Split(x)
	c := e.params.Costs
	l := e.params.Limits

	var b Breakdown
	var balance, bounds float64
	for t := range e.data.Load {
		b.GridCost += c.Grid * positive(grid[t])
		b.DieselCost += c.Diesel * positive(diesel[t])
		b.BatteryCost += c.Battery * abs(batt[t])

		r := e.data.PV[t] + e.data.Wind[t] + grid[t] + diesel[t] + batt[t] - e.data.Load[t]
		balance += r * r

		bounds += sq(positive(-grid[t]))
		bounds += sq(positive(-diesel[t]))
		bounds += sq(positive(batt[t] - l.MaxDischarge))
		bounds += sq(positive(-l.MaxCharge - batt[t]))
	}

	tr := battery.Trace(batt, e.params.Battery)
	for t := range tr.Shortfall {
		bounds += sq(tr.Shortfall[t]) + sq(tr.Overflow[t])
	}

	b.BalancePenalty = e.weights.Balance * balance
	b.BoundsPenalty = e.weights.Bounds * bounds
	return b
}

// SoC returns the battery trajectory implied by x.
func (e *Evaluator) SoC(x []float64) []float64 {
	return e.Trace(x).SoC
}

// Trace returns the battery trajectory implied by x with the clamp
// magnitudes.
func (e *Evaluator) Trace(x []float64) battery.Trajectory {
	_, _, batt := Split(x)
	return battery.Trace(batt, e.params.Battery)
}

func positive(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sq(v float64) float64 { return v * v }
