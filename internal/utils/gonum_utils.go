package utils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Resources is the (cpu, ram) vector used for capacity checks.
func Resources(cpu, ram float64) *mat.VecDense {
	return mat.NewVecDense(2, []float64{cpu, ram})
}

func SAddVec(a, b *mat.VecDense) {
	a.AddVec(a, b)
}

func LEThan(a, b *mat.VecDense) bool {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	for i := 0; i < a.Len(); i += 1 {
		if a.AtVec(i) > b.AtVec(i) {
			return false
		}
	}

	return true
}

// Utilization is the largest used/capacity ratio over all resources.
// A resource with no capacity counts as fully used if anything uses it.
func Utilization(used, capacity *mat.VecDense) float64 {
	if used.Len() != capacity.Len() {
		panic("Two vectors should have the same length.")
	}

	var ret float64
	for i := 0; i < used.Len(); i++ {
		if capacity.AtVec(i) <= 0 {
			if used.AtVec(i) > 0 {
				ret = math.Max(ret, 1)
			}
			continue
		}
		ret = math.Max(ret, used.AtVec(i)/capacity.AtVec(i))
	}

	return ret
}
