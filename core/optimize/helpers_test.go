package optimize

func sphere(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return s
}

func box(dim int, lo, hi float64) ([]float64, []float64) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = lo
		upper[i] = hi
	}
	return lower, upper
}

// successes runs f for seeds 1..n and counts results below tol.
func successes(n int, tol float64, f func(seed uint64) float64) int {
	ok := 0
	for s := 1; s <= n; s++ {
		if f(uint64(s)) < tol {
			ok++
		}
	}
	return ok
}
