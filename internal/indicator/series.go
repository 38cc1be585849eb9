// Package indicator computes derived numeric series from price sequences.
// Every function is pure: the output is aligned index-for-index with the
// input and positions inside the warm-up window are marked unavailable.
package indicator

import (
	"math"

	"coinsignal/internal/domain"
)

// Series is an indicator output aligned with its input. Unavailable
// positions hold NaN; read them through At.
type Series []float64

// At returns the value at index i and whether it is defined. Out-of-range
// indices are reported as unavailable.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	v := s[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FirstDefined returns the index of the first defined value, or -1.
func (s Series) FirstDefined() int {
	for i, v := range s {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func unavailable(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Closes extracts the close prices of candles in order.
func Closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
