package objective

// Horizon infers T from a decision vector length.
func Horizon(n int) int { return n / 3 }

// Split returns the grid, diesel and battery blocks of x. The blocks share
// storage with x.
func Split(x []float64) (grid, diesel, batt []float64) {
	t := Horizon(len(x))
	return x[:t], x[t : 2*t], x[2*t : 3*t]
}

// Join concatenates the three blocks into a decision vector.
func Join(grid, diesel, batt []float64) []float64 {
	x := make([]float64, 0, len(grid)+len(diesel)+len(batt))
	x = append(x, grid...)
	x = append(x, diesel...)
	return append(x, batt...)
}
