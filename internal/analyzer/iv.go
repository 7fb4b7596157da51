package analyzer

import (
	"github.com/montanaflynn/stats"
)

// defaultIVPercentile is used when no history is available.
const defaultIVPercentile = 50.0

// IVPercentile returns the percentage of historical readings strictly below
// current. With no history it returns 50.
func IVPercentile(current float64, history []float64) float64 {
	if len(history) == 0 {
		return defaultIVPercentile
	}
	below := 0
	for _, iv := range history {
		if iv < current {
			below++
		}
	}
	return float64(below) / float64(len(history)) * 100
}

// IVRank places current within the historical min-max range on a 0-100
// scale. Empty or flat history returns 50. Values outside the range are not
// clamped.
func IVRank(current float64, history []float64) float64 {
	data := stats.Float64Data(history)
	lo, err := data.Min()
	if err != nil {
		return defaultIVPercentile
	}
	hi, err := data.Max()
	if err != nil || hi == lo {
		return defaultIVPercentile
	}
	return (current - lo) / (hi - lo) * 100
}
