package report

import "math"

func nan() float64 { return math.NaN() }

func isNaN(f float64) bool { return math.IsNaN(f) }
