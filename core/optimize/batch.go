package optimize

import (
	"math"

	"golang.org/x/sync/errgroup"
)

// batch evaluates the candidates of one iteration. All random draws happen
// before a batch is submitted, so the worker count never changes results.
type batch struct {
	obj       Objective
	workers   int
	evals     int
	nonFinite int
}

func newBatch(obj Objective, workers int) *batch {
	if workers < 1 {
		workers = 1
	}
	return &batch{obj: obj, workers: workers}
}

// eval writes the cost of points[i] to costs[i]. Non-finite values are
// recorded as +Inf so they can never win a comparison.
func (b *batch) eval(points [][]float64, costs []float64) {
	if b.workers == 1 || len(points) < 2 {
		for i, p := range points {
			costs[i] = b.obj(p)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(b.workers)
		for i, p := range points {
			g.Go(func() error {
				costs[i] = b.obj(p)
				return nil
			})
		}
		_ = g.Wait()
	}
	for i := range points {
		b.evals++
		if c := costs[i]; math.IsNaN(c) || math.IsInf(c, 0) {
			costs[i] = math.Inf(1)
			b.nonFinite++
		}
	}
}

func (b *batch) record(res *Result) {
	res.Evaluations = b.evals
	res.NonFinite = b.nonFinite
}
