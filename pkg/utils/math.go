package utils

import "math"

// NormalizeL2 scales x in place to unit Euclidean length. A zero vector
// is left unchanged.
func NormalizeL2(x []float32) {
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	if ss == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(ss)))
	for i := range x {
		x[i] *= inv
	}
}

// Round3 rounds v to three decimal places. Relevance scores are reported
// at this precision.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
