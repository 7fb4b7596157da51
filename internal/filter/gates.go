// Package filter implements the fail-fast hard-filter pipeline. Each gate is
// an independent necessary condition; the pipeline stops at the first gate a
// candidate fails and attributes the rejection to it.
package filter

import (
	"math"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/util"
)

// Input is everything a gate may read.
type Input struct {
	Candidate models.Candidate
	VIX       float64
}

// Gate is one hard filter. Check reports whether the candidate passes.
// Comparisons are written so that NaN inputs fail.
type Gate struct {
	Name   string
	Reason models.RejectionReason
	Check  func(in Input, t config.Thresholds) bool
}

// Gate names, in canonical order.
const (
	GateMarket        = "market"
	GateLiquidity     = "liquidity"
	GateExecution     = "execution"
	GateRiskSanity    = "risk_sanity"
	GateIVPercentile  = "iv_percentile"
	GateDelta         = "delta"
	GateGamma         = "gamma"
	GateTheta         = "theta"
	GateExpectedValue = "expected_value"
)

// Canonical returns the gates in the authoritative evaluation order: cheap,
// context-only checks first and the expected-value check last. Rejection
// statistics are only comparable across runs that use this order.
func Canonical() []Gate {
	return []Gate{
		{Name: GateMarket, Reason: models.RejectLowVIX, Check: checkMarket},
		{Name: GateLiquidity, Reason: models.RejectIlliquid, Check: checkLiquidity},
		{Name: GateExecution, Reason: models.RejectSlippage, Check: checkExecution},
		{Name: GateRiskSanity, Reason: models.RejectRiskReward, Check: checkRiskSanity},
		{Name: GateIVPercentile, Reason: models.RejectIVPercentile, Check: checkIVPercentile},
		{Name: GateDelta, Reason: models.RejectDelta, Check: checkDelta},
		{Name: GateGamma, Reason: models.RejectGamma, Check: checkGamma},
		{Name: GateTheta, Reason: models.RejectTheta, Check: checkTheta},
		{Name: GateExpectedValue, Reason: models.RejectNegativeEV, Check: checkExpectedValue},
	}
}

func checkMarket(in Input, t config.Thresholds) bool {
	return in.VIX >= t.MinVIX
}

func checkLiquidity(in Input, t config.Thresholds) bool {
	c := in.Candidate
	return c.Volume >= t.MinVolume && c.OpenInterest >= t.MinOpenInterest
}

// checkExecution only applies when there is a positive credit to compare against.
func checkExecution(in Input, t config.Thresholds) bool {
	c := in.Candidate
	if !util.IsFinite(c.Credit) || !util.IsFinite(c.BidAskCost) {
		return false
	}
	if c.Credit <= 0 {
		return true
	}
	return c.BidAskCost/c.Credit <= t.MaxBidAskPct
}

// checkRiskSanity only applies when max loss is positive. Credit is per share
// and max loss per contract, so the ratio goes through the analyzer.
func checkRiskSanity(in Input, t config.Thresholds) bool {
	c := in.Candidate
	if !util.IsFinite(c.Credit) || !util.IsFinite(c.MaxLoss) {
		return false
	}
	if c.MaxLoss <= 0 {
		return true
	}
	return analyzer.RiskReward(c.Credit, c.MaxLoss) >= t.MinRiskReward
}

func checkIVPercentile(in Input, t config.Thresholds) bool {
	ivp := in.Candidate.IVPercentile
	return ivp >= t.MinIVPercentile && ivp <= t.MaxIVPercentile
}

func checkDelta(in Input, t config.Thresholds) bool {
	return math.Abs(in.Candidate.Delta) <= t.MaxAbsDelta
}

func checkGamma(in Input, t config.Thresholds) bool {
	c := in.Candidate
	if !c.NearExpiry(t.NearExpiryDays) {
		return true
	}
	return c.Gamma <= t.MaxGammaNearExpiry
}

func checkTheta(in Input, t config.Thresholds) bool {
	return in.Candidate.Theta > t.MinTheta
}

func checkExpectedValue(in Input, _ config.Thresholds) bool {
	return in.Candidate.ExpectedValue > 0
}
