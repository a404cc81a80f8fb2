// Package formulas holds the return statistics used in market reports.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StdDev calculates the sample standard deviation.
// Fewer than two values have no dispersion and return 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// MinMax returns the smallest and largest values and their indexes.
// Empty input returns NaN values and -1 indexes.
func MinMax(data []float64) (min float64, minIdx int, max float64, maxIdx int) {
	if len(data) == 0 {
		return math.NaN(), -1, math.NaN(), -1
	}

	min, max = data[0], data[0]
	for i, v := range data {
		if v < min {
			min, minIdx = v, i
		}
		if v > max {
			max, maxIdx = v, i
		}
	}
	return min, minIdx, max, maxIdx
}

// CompoundPercent compounds a series of percent returns (1.5 = 1.5%) into
// the total percent return over the period.
func CompoundPercent(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r/100
	}
	return (growth - 1) * 100
}

func nan() float64 {
	return math.NaN()
}
