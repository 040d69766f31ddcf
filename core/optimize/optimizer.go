// Package optimize implements the population metaheuristics used to plan
// microgrid dispatch: an adaptive Cuckoo Search driven by Lévy flights and a
// Particle Swarm Optimizer. Both minimise an opaque Objective over a box.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/microgrid/core/logger"
)

var (
	// ErrInvalidConfiguration is returned before any evaluation when options or
	// bounds are unusable.
	ErrInvalidConfiguration = errors.New("invalid optimizer configuration")
	// ErrNumerical is returned when the objective never produced a finite value.
	ErrNumerical = errors.New("objective returned no finite value")
)

// Objective maps a candidate vector to the scalar being minimised. It must not
// modify x and must be safe for concurrent use when Workers > 1.
type Objective func(x []float64) float64

// Optimizer searches the box [lower, upper] for the minimum of an Objective.
type Optimizer interface {
	Name() string
	Optimize(ctx context.Context, obj Objective, lower, upper []float64) (Result, error)
}

// Iteration summarises the state at the end of one iteration.
type Iteration struct {
	Index int     `json:"index"`
	Best  float64 `json:"best"`
	// Cuckoo Search only.
	Alpha     float64 `json:"alpha,omitempty"`
	Abandoned int     `json:"abandoned,omitempty"`
	// Particle Swarm only.
	Inertia     float64 `json:"inertia,omitempty"`
	MaxVelocity float64 `json:"max_velocity,omitempty"`
}

// Result is the outcome of an optimizer run.
type Result struct {
	Best        []float64   `json:"best"`
	Cost        float64     `json:"cost"`
	Trace       []Iteration `json:"trace"`
	Evaluations int         `json:"evaluations"`
	// NonFinite counts objective values that were NaN or infinite.
	NonFinite int `json:"non_finite"`
}

// Iterations returns the number of completed iterations.
func (r Result) Iterations() int { return len(r.Trace) }

// History returns the best cost recorded after every iteration.
func (r Result) History() []float64 {
	h := make([]float64, len(r.Trace))
	for i, it := range r.Trace {
		h[i] = it.Best
	}
	return h
}

// loggerSetter is implemented by optimizers that can report progress.
type loggerSetter interface {
	SetLogger(l logger.Logger)
}

func validateProblem(obj Objective, lower, upper []float64) error {
	if obj == nil {
		return fmt.Errorf("%w: nil objective", ErrInvalidConfiguration)
	}
	if len(lower) == 0 || len(lower) != len(upper) {
		return fmt.Errorf("%w: bounds have %d and %d dimensions", ErrInvalidConfiguration, len(lower), len(upper))
	}
	for i := range lower {
		if math.IsNaN(lower[i]) || math.IsInf(lower[i], 0) || math.IsNaN(upper[i]) || math.IsInf(upper[i], 0) {
			return fmt.Errorf("%w: bound %d is not finite", ErrInvalidConfiguration, i)
		}
		if lower[i] > upper[i] {
			return fmt.Errorf("%w: lower[%d]=%g exceeds upper[%d]=%g", ErrInvalidConfiguration, i, lower[i], i, upper[i])
		}
	}
	return nil
}

// newRand returns the single deterministic stream used by one run.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func uniformPoint(rng *rand.Rand, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = distuv.Uniform{Min: lower[i], Max: upper[i], Src: rng}.Rand()
	}
	return x
}

func clampTo(x, lower, upper []float64) {
	for i := range x {
		x[i] = clamp(x[i], lower[i], upper[i])
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stopped(name string, it int, err error) error {
	return fmt.Errorf("%s: stopped after %d iterations: %w", name, it, err)
}

// finish checks that the run found at least one finite value.
func finish(name string, res Result) error {
	if math.IsInf(res.Cost, 1) {
		return fmt.Errorf("%s: %w (%d of %d evaluations non-finite)", name, ErrNumerical, res.NonFinite, res.Evaluations)
	}
	return nil
}
