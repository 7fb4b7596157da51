// Package util provides small numeric helpers shared by the analyzer, scorer
// and market-data layers.
package util

import "math"

// RoundToTick rounds x to the nearest multiple of tick, ties away from zero.
// Non-finite x and non-positive tick return x unchanged.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 || !IsFinite(x) {
		return x
	}
	return math.Round(x/tick) * tick
}

// Clamp bounds x to [lo, hi]. NaN clamps to lo so that a malformed value
// never scores above the floor.
func Clamp(x, lo, hi float64) float64 {
	switch {
	case math.IsNaN(x):
		return lo
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SafeDiv returns num/den, or fallback when den is zero or either operand is
// not finite.
func SafeDiv(num, den, fallback float64) float64 {
	if den == 0 || !IsFinite(num) || !IsFinite(den) {
		return fallback
	}
	return num / den
}
