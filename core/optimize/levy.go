package optimize

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// LevySigma returns the scale of the numerator distribution in Mantegna's
// algorithm for the stability index beta.
func LevySigma(beta float64) float64 {
	num := math.Gamma(1+beta) * math.Sin(math.Pi*beta/2)
	den := math.Gamma((1 + beta) / 2)
	return math.Pow(num/den, 1/beta)
}

// LevyStep draws a dim-dimensional heavy-tailed step with Mantegna's method:
// u ~ N(0, sigma²), v ~ N(0, 1), step = u / |v|^(1/beta). Smaller beta gives
// more frequent long jumps.
func LevyStep(rng *rand.Rand, dim int, beta float64) []float64 {
	u := distuv.Normal{Mu: 0, Sigma: LevySigma(beta), Src: rng}
	v := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	step := make([]float64, dim)
	for i := range step {
		num := u.Rand()
		den := v.Rand()
		for den == 0 {
			den = v.Rand()
		}
		step[i] = num / math.Pow(math.Abs(den), 1/beta)
	}
	return step
}
