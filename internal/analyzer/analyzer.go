// Package analyzer holds the pure formulas used to evaluate a credit spread.
// Every function is total: degenerate denominators return a safe default
// instead of failing. Candidate P&L is scaled to dollars per contract here
// and nowhere else; providers hand over Greeks already per contract.
package analyzer

import (
	"math"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/util"
)

const (
	daysPerMonth = 30.0
	daysPerYear  = 365.0
)

// ProbabilityOfProfit approximates the chance the short leg expires out of the
// money from its delta.
func ProbabilityOfProfit(shortDelta float64) float64 {
	return util.Clamp(1-math.Abs(shortDelta), 0, 1)
}

// ExpectedValue returns p*maxProfit - (1-p)*maxLoss. The result is not
// clamped and is negative for trades that lose money on average.
func ExpectedValue(p, maxProfit, maxLoss float64) float64 {
	return p*maxProfit - (1-p)*maxLoss
}

// MaxProfit returns the per-share credit kept after the bid-ask cost, in
// dollars per contract.
func MaxProfit(credit, bidAskCost float64) float64 {
	return (credit - bidAskCost) * models.ContractMultiplier
}

// ReturnOnCapital returns expected value as a percentage of capital at risk,
// normalized to a 30-day month.
func ReturnOnCapital(expectedValue, maxLoss float64, dte int) float64 {
	if !(maxLoss > 0) || dte <= 0 {
		return 0
	}
	return (expectedValue / maxLoss) * 100 * (daysPerMonth / float64(dte))
}

// ThetaEfficiency returns daily theta as a percentage of capital at risk.
func ThetaEfficiency(theta, maxLoss float64) float64 {
	if !(maxLoss > 0) {
		return 0
	}
	return (theta / maxLoss) * 100
}

// AnnualizedThetaReturn projects constant theta collection over the life of
// the trade and annualizes it.
func AnnualizedThetaReturn(theta, maxLoss float64, dte int) float64 {
	if !(maxLoss > 0) || dte <= 0 {
		return 0
	}
	collected := theta * float64(dte)
	pct := (collected / maxLoss) * 100
	return pct * (daysPerYear / float64(dte))
}

// MarginRequirement is the cash needed to secure contracts spreads of the
// given strike width.
func MarginRequirement(width float64, contracts int) float64 {
	return width * models.ContractMultiplier * float64(contracts)
}

// LiquidityScore combines volume and open interest, weighting open interest at half.
func LiquidityScore(volume, openInterest int64) float64 {
	return float64(volume) + 0.5*float64(openInterest)
}

// RiskReward returns the per-share credit scaled to a contract over the
// per-contract max loss.
func RiskReward(credit, maxLoss float64) float64 {
	if !(maxLoss > 0) {
		return 0
	}
	return credit * models.ContractMultiplier / maxLoss
}

// SlippagePct returns bid-ask cost as a percentage of credit.
func SlippagePct(bidAskCost, credit float64) float64 {
	if !(credit > 0) {
		return 0
	}
	return bidAskCost / credit * 100
}
