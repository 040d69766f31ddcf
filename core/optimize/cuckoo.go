package optimize

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/microgrid/core/logger"
)

// CuckooOptions configures CuckooSearch. Start from DefaultCuckooOptions:
// every field is used as given, so a zero AbandonFraction or
// StagnationTolerance really disables abandonment or adaptation.
type CuckooOptions struct {
	MaxIter int     `json:"max_iter"`
	Nests   int     `json:"n_nests"`
	Alpha0  float64 `json:"alpha0"`
	Beta    float64 `json:"beta"`

	// StagnationWindow is the look-back, in iterations, of the adaptation rule.
	StagnationWindow int `json:"stagnation_window"`
	// StagnationTolerance is the relative improvement below which the window
	// counts as stagnant.
	StagnationTolerance float64 `json:"stagnation_tolerance"`
	AlphaGrowth         float64 `json:"alpha_growth"`
	AbandonFraction     float64 `json:"abandon_fraction"`
	// AlphaMax caps alpha growth. Zero leaves alpha unbounded.
	AlphaMax float64 `json:"alpha_max"`

	Seed    uint64 `json:"seed"`
	Workers int    `json:"workers"`
}

// DefaultCuckooOptions returns the reference configuration.
func DefaultCuckooOptions() CuckooOptions {
	return CuckooOptions{
		MaxIter:             200,
		Nests:               25,
		Alpha0:              0.01,
		Beta:                1.5,
		StagnationWindow:    10,
		StagnationTolerance: 0.05,
		AlphaGrowth:         1.2,
		AbandonFraction:     0.25,
		Workers:             1,
	}
}

// Validate reports the first unusable option.
func (o CuckooOptions) Validate() error {
	switch {
	case o.MaxIter <= 0:
		return fmt.Errorf("%w: cuckoo: max_iter must be positive", ErrInvalidConfiguration)
	case o.Nests <= 0:
		return fmt.Errorf("%w: cuckoo: n_nests must be positive", ErrInvalidConfiguration)
	case o.Alpha0 <= 0:
		return fmt.Errorf("%w: cuckoo: alpha0 must be positive", ErrInvalidConfiguration)
	case o.Beta <= 0 || o.Beta > 2:
		return fmt.Errorf("%w: cuckoo: beta must be in (0, 2]", ErrInvalidConfiguration)
	case o.StagnationWindow < 1:
		return fmt.Errorf("%w: cuckoo: stagnation_window must be positive", ErrInvalidConfiguration)
	case o.StagnationTolerance < 0:
		return fmt.Errorf("%w: cuckoo: stagnation_tolerance must not be negative", ErrInvalidConfiguration)
	case o.AlphaGrowth < 1:
		return fmt.Errorf("%w: cuckoo: alpha_growth must be at least 1", ErrInvalidConfiguration)
	case o.AbandonFraction < 0 || o.AbandonFraction >= 1:
		return fmt.Errorf("%w: cuckoo: abandon_fraction must be in [0, 1)", ErrInvalidConfiguration)
	case o.AlphaMax < 0 || (o.AlphaMax > 0 && o.AlphaMax < o.Alpha0):
		return fmt.Errorf("%w: cuckoo: alpha_max must be zero or at least alpha0", ErrInvalidConfiguration)
	case o.Workers < 0:
		return fmt.Errorf("%w: cuckoo: workers must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// AbandonCount is the number of nests replaced at the end of every iteration.
func (o CuckooOptions) AbandonCount() int {
	return int(math.Floor(o.AbandonFraction * float64(o.Nests)))
}

// CuckooSearch is the adaptive Cuckoo Search. The Lévy step scale alpha grows
// whenever the best cost stagnates and never decreases during a run.
type CuckooSearch struct {
	opts CuckooOptions
	log  logger.Logger
}

// NewCuckooSearch validates opts and returns the optimizer.
func NewCuckooSearch(opts CuckooOptions) (*CuckooSearch, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	// Zero and one worker both evaluate on the calling goroutine.
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	return &CuckooSearch{opts: opts, log: logger.NopLogger{}}, nil
}

// Name implements Optimizer.
func (cs *CuckooSearch) Name() string { return "cuckoo" }

// Options returns the effective options.
func (cs *CuckooSearch) Options() CuckooOptions { return cs.opts }

// SetLogger sets the logger used for progress messages.
func (cs *CuckooSearch) SetLogger(l logger.Logger) { cs.log = logger.OrNop(l) }

// Optimize implements Optimizer.
//
//gocyclo:ignore
func (cs *CuckooSearch) Optimize(ctx context.Context, obj Objective, lower, upper []float64) (Result, error) {
	if err := validateProblem(obj, lower, upper); err != nil {
		return Result{}, err
	}
	o := cs.opts
	start := time.Now()
	rng := newRand(o.Seed)
	dim := len(lower)
	pop := newBatch(obj, o.Workers)

	nests := make([][]float64, o.Nests)
	fitness := make([]float64, o.Nests)
	for i := range nests {
		nests[i] = uniformPoint(rng, lower, upper)
	}
	pop.eval(nests, fitness)

	bestIdx := floats.MinIdx(fitness)
	best := slices.Clone(nests[bestIdx])
	res := Result{Best: best, Cost: fitness[bestIdx], Trace: make([]Iteration, 0, o.MaxIter)}

	alpha := o.Alpha0
	abandon := o.AbandonCount()
	cands := make([][]float64, o.Nests)
	candCost := make([]float64, o.Nests)
	targets := make([]int, o.Nests)
	order := make([]int, o.Nests)
	sorted := make([]float64, o.Nests)
	fresh := make([][]float64, abandon)
	freshCost := make([]float64, abandon)

	for it := 0; it < o.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			pop.record(&res)
			observeRun(cs.Name(), start, res, err)
			return res, stopped(cs.Name(), it, err)
		}

		// Lay one egg per nest and drop it into a random nest.
		for i, nest := range nests {
			step := LevyStep(rng, dim, o.Beta)
			c := make([]float64, dim)
			for k := range c {
				c[k] = nest[k] + alpha*step[k]*(nest[k]-best[k])
			}
			clampTo(c, lower, upper)
			cands[i] = c
			targets[i] = rng.IntN(o.Nests)
		}
		pop.eval(cands, candCost)
		for i, j := range targets {
			if candCost[i] < fitness[j] {
				nests[j] = cands[i]
				fitness[j] = candCost[i]
			}
		}

		// Abandon the worst nests.
		if abandon > 0 {
			copy(sorted, fitness)
			floats.ArgsortStable(sorted, order)
			worst := order[o.Nests-abandon:]
			for k := range worst {
				fresh[k] = uniformPoint(rng, lower, upper)
			}
			pop.eval(fresh, freshCost)
			for k, idx := range worst {
				nests[idx] = fresh[k]
				fitness[idx] = freshCost[k]
			}
		}

		bestIdx = floats.MinIdx(fitness)
		best = slices.Clone(nests[bestIdx])
		res.Best, res.Cost = best, fitness[bestIdx]
		res.Trace = append(res.Trace, Iteration{Index: it, Best: res.Cost, Alpha: alpha, Abandoned: abandon})

		if w := o.StagnationWindow; it >= w {
			prev := res.Trace[it-w].Best
			if prev-res.Cost < o.StagnationTolerance*math.Abs(prev) {
				alpha *= o.AlphaGrowth
				if o.AlphaMax > 0 && alpha > o.AlphaMax {
					alpha = o.AlphaMax
				}
				cs.log.Debugw("cuckoo stagnation", map[string]any{"iteration": it, "best": res.Cost, "alpha": alpha})
			}
		}
	}

	pop.record(&res)
	if res.NonFinite > 0 {
		cs.log.Warnf("cuckoo: %d of %d evaluations were not finite", res.NonFinite, res.Evaluations)
	}
	err := finish(cs.Name(), res)
	observeRun(cs.Name(), start, res, err)
	return res, err
}
