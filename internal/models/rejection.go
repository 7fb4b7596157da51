package models

import "sort"

// RejectionReason tags the hard filter that rejected a candidate.
type RejectionReason string

const (
	// RejectLowVIX means the market-wide volatility index is below the minimum
	RejectLowVIX RejectionReason = "market_volatility_too_low"
	// RejectIlliquid means volume or open interest is below the minimum
	RejectIlliquid RejectionReason = "illiquid"
	// RejectSlippage means the bid-ask cost eats too much of the credit
	RejectSlippage RejectionReason = "slippage_too_high"
	// RejectRiskReward means the credit is too small for the risk taken
	RejectRiskReward RejectionReason = "bad_risk_reward"
	// RejectIVPercentile means implied volatility is outside the allowed percentile band
	RejectIVPercentile RejectionReason = "iv_percentile_too_low"
	// RejectDelta means the short leg is too close to the money
	RejectDelta RejectionReason = "delta_too_high"
	// RejectGamma means gamma is too high this close to expiration
	RejectGamma RejectionReason = "gamma_too_high_near_expiry"
	// RejectTheta means daily decay is too small
	RejectTheta RejectionReason = "theta_too_low"
	// RejectNegativeEV means the trade loses money on average
	RejectNegativeEV RejectionReason = "negative_expected_value"
)

var reasonOrder = []RejectionReason{
	RejectLowVIX,
	RejectIlliquid,
	RejectSlippage,
	RejectRiskReward,
	RejectIVPercentile,
	RejectDelta,
	RejectGamma,
	RejectTheta,
	RejectNegativeEV,
}

var reasonDescriptions = map[RejectionReason]string{
	RejectLowVIX:       "VIX too low (insufficient premium)",
	RejectIlliquid:     "Illiquid (low volume/OI)",
	RejectSlippage:     "Bid-ask spread too wide",
	RejectRiskReward:   "Poor risk/reward ratio",
	RejectIVPercentile: "IV percentile out of range",
	RejectDelta:        "Delta too high (too risky)",
	RejectGamma:        "Gamma too high near expiry",
	RejectTheta:        "Theta too low (insufficient decay)",
	RejectNegativeEV:   "Negative expected value",
}

// RejectionReasons returns every reason in canonical filter order.
func RejectionReasons() []RejectionReason {
	out := make([]RejectionReason, len(reasonOrder))
	copy(out, reasonOrder)
	return out
}

// Valid returns true if the RejectionReason is one of the defined constants
func (r RejectionReason) Valid() bool {
	_, ok := reasonDescriptions[r]
	return ok
}

// Description returns a human-readable explanation of the reason.
func (r RejectionReason) Description() string {
	if d, ok := reasonDescriptions[r]; ok {
		return d
	}
	return string(r)
}

// Ordinal returns the position of the reason in canonical filter order, or -1.
func (r RejectionReason) Ordinal() int {
	for i, rr := range reasonOrder {
		if rr == r {
			return i
		}
	}
	return -1
}

// RejectionCounts maps each reason to the number of candidates it rejected.
// A RejectionCounts belongs to exactly one screening call; concurrent calls
// each build their own and combine them with Merge afterwards.
type RejectionCounts map[RejectionReason]int

// NewRejectionCounts returns an empty accumulator.
func NewRejectionCounts() RejectionCounts {
	return make(RejectionCounts, len(reasonOrder))
}

// Add records one rejection.
func (rc RejectionCounts) Add(r RejectionReason) {
	rc[r]++
}

// Merge adds every count in other into rc.
func (rc RejectionCounts) Merge(other RejectionCounts) {
	for r, n := range other {
		rc[r] += n
	}
}

// Total returns the number of rejected candidates.
func (rc RejectionCounts) Total() int {
	total := 0
	for _, n := range rc {
		total += n
	}
	return total
}

// Clone returns an independent copy.
func (rc RejectionCounts) Clone() RejectionCounts {
	out := make(RejectionCounts, len(rc))
	for r, n := range rc {
		out[r] = n
	}
	return out
}

// ReasonCount pairs a reason with its count.
type ReasonCount struct {
	Reason RejectionReason `json:"reason"`
	Count  int             `json:"count"`
}

// Sorted returns the non-zero counts in canonical filter order. Reasons
// outside the known set are appended alphabetically.
func (rc RejectionCounts) Sorted() []ReasonCount {
	out := make([]ReasonCount, 0, len(rc))
	for _, r := range reasonOrder {
		if n := rc[r]; n > 0 {
			out = append(out, ReasonCount{Reason: r, Count: n})
		}
	}
	var extra []ReasonCount
	for r, n := range rc {
		if !r.Valid() && n > 0 {
			extra = append(extra, ReasonCount{Reason: r, Count: n})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Reason < extra[j].Reason })
	return append(out, extra...)
}
