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

// PSOOptions configures ParticleSwarm. Every field except Seed and Workers is
// required.
type PSOOptions struct {
	MaxIter   int     `json:"max_iter"`
	Particles int     `json:"n_particles"`
	W         float64 `json:"w"`
	WDamp     float64 `json:"w_damp"`
	C1        float64 `json:"c1"`
	C2        float64 `json:"c2"`
	VelMax    float64 `json:"vel_max"`

	Seed    uint64 `json:"seed"`
	Workers int    `json:"workers"`
}

// DefaultPSOOptions returns the reference configuration.
func DefaultPSOOptions() PSOOptions {
	return PSOOptions{
		MaxIter:   200,
		Particles: 30,
		W:         0.9,
		WDamp:     0.99,
		C1:        2,
		C2:        2,
		VelMax:    10,
		Workers:   1,
	}
}

// Validate reports the first unusable option.
func (o PSOOptions) Validate() error {
	switch {
	case o.MaxIter <= 0:
		return fmt.Errorf("%w: pso: max_iter must be positive", ErrInvalidConfiguration)
	case o.Particles <= 0:
		return fmt.Errorf("%w: pso: n_particles must be positive", ErrInvalidConfiguration)
	case o.W < 0:
		return fmt.Errorf("%w: pso: w must not be negative", ErrInvalidConfiguration)
	case o.WDamp <= 0 || o.WDamp > 1:
		return fmt.Errorf("%w: pso: w_damp must be in (0, 1]", ErrInvalidConfiguration)
	case o.C1 < 0 || o.C2 < 0:
		return fmt.Errorf("%w: pso: c1 and c2 must not be negative", ErrInvalidConfiguration)
	case o.VelMax <= 0:
		return fmt.Errorf("%w: pso: vel_max must be positive", ErrInvalidConfiguration)
	case o.Workers < 0:
		return fmt.Errorf("%w: pso: workers must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

type particle struct {
	pos      []float64
	vel      []float64
	bestPos  []float64
	bestCost float64
}

// ParticleSwarm is a global-best PSO with geometrically damped inertia and
// per-component velocity clamping.
type ParticleSwarm struct {
	opts PSOOptions
	log  logger.Logger
}

// NewParticleSwarm validates opts and returns the optimizer.
func NewParticleSwarm(opts PSOOptions) (*ParticleSwarm, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	return &ParticleSwarm{opts: opts, log: logger.NopLogger{}}, nil
}

// Name implements Optimizer.
func (ps *ParticleSwarm) Name() string { return "pso" }

// Options returns the effective options.
func (ps *ParticleSwarm) Options() PSOOptions { return ps.opts }

// SetLogger sets the logger used for progress messages.
func (ps *ParticleSwarm) SetLogger(l logger.Logger) { ps.log = logger.OrNop(l) }

// Optimize implements Optimizer. Velocities are drawn in [0, 0.1*(upper-lower)]
// and clamped to [-VelMax, VelMax] from the start.
//
//gocyclo:ignore
func (ps *ParticleSwarm) Optimize(ctx context.Context, obj Objective, lower, upper []float64) (Result, error) {
	if err := validateProblem(obj, lower, upper); err != nil {
		return Result{}, err
	}
	o := ps.opts
	start := time.Now()
	rng := newRand(o.Seed)
	dim := len(lower)
	pop := newBatch(obj, o.Workers)

	vmax := make([]float64, dim)
	vmin := make([]float64, dim)
	for k := range vmax {
		vmax[k] = o.VelMax
		vmin[k] = -o.VelMax
	}
	initVelHi := make([]float64, dim)
	for k := range initVelHi {
		initVelHi[k] = 0.1 * (upper[k] - lower[k])
	}

	swarm := make([]*particle, o.Particles)
	positions := make([][]float64, o.Particles)
	costs := make([]float64, o.Particles)
	for i := range swarm {
		p := &particle{
			pos: uniformPoint(rng, lower, upper),
			vel: uniformPoint(rng, make([]float64, dim), initVelHi),
		}
		clampTo(p.vel, vmin, vmax)
		swarm[i] = p
		positions[i] = p.pos
	}
	pop.eval(positions, costs)
	for i, p := range swarm {
		p.bestPos = slices.Clone(p.pos)
		p.bestCost = costs[i]
	}
	gi := floats.MinIdx(costs)
	res := Result{Best: slices.Clone(swarm[gi].pos), Cost: costs[gi], Trace: make([]Iteration, 0, o.MaxIter)}

	w := o.W
	for it := 0; it < o.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			pop.record(&res)
			observeRun(ps.Name(), start, res, err)
			return res, stopped(ps.Name(), it, err)
		}

		gbest := res.Best
		var maxVel float64
		for _, p := range swarm {
			for k := range p.vel {
				r1 := rng.Float64()
				r2 := rng.Float64()
				v := w*p.vel[k] + o.C1*r1*(p.bestPos[k]-p.pos[k]) + o.C2*r2*(gbest[k]-p.pos[k])
				v = clamp(v, -o.VelMax, o.VelMax)
				p.vel[k] = v
				p.pos[k] = clamp(p.pos[k]+v, lower[k], upper[k])
				maxVel = math.Max(maxVel, math.Abs(v))
			}
		}
		pop.eval(positions, costs)

		for i, p := range swarm {
			if costs[i] < p.bestCost {
				p.bestCost = costs[i]
				p.bestPos = slices.Clone(p.pos)
			}
			if costs[i] < res.Cost {
				res.Cost = costs[i]
				res.Best = slices.Clone(p.pos)
			}
		}
		res.Trace = append(res.Trace, Iteration{Index: it, Best: res.Cost, Inertia: w, MaxVelocity: maxVel})
		w *= o.WDamp
	}

	pop.record(&res)
	if res.NonFinite > 0 {
		ps.log.Warnf("pso: %d of %d evaluations were not finite", res.NonFinite, res.Evaluations)
	}
	err := finish(ps.Name(), res)
	observeRun(ps.Name(), start, res, err)
	return res, err
}
