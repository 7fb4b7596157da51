package models

import (
	"fmt"
	"math"
)

// ContractMultiplier is the number of shares controlled by one option contract.
const ContractMultiplier = 100.0

// SpreadType identifies the orientation of a vertical credit spread.
type SpreadType string

const (
	// SpreadBullPut sells a put above a bought put (short strike below price)
	SpreadBullPut SpreadType = "bull_put"
	// SpreadBearCall sells a call below a bought call (short strike above price)
	SpreadBearCall SpreadType = "bear_call"
)

// Valid returns true if the SpreadType is one of the defined constants
func (t SpreadType) Valid() bool {
	switch t {
	case SpreadBullPut, SpreadBearCall:
		return true
	default:
		return false
	}
}

// Label returns the display name of the spread type.
func (t SpreadType) Label() string {
	switch t {
	case SpreadBullPut:
		return "Bull Put"
	case SpreadBearCall:
		return "Bear Call"
	default:
		return "Unknown"
	}
}

// Candidate is one credit-spread opportunity together with every input the
// screener needs. Candidates are values: nothing in the screening path
// modifies a Candidate after it is built.
//
// Unit basis: strikes, Credit and BidAskCost are per share (quote units).
// MaxLoss, Theta, ExpectedValue are dollars per contract. ReturnOnCapital is a
// monthly percentage.
type Candidate struct {
	// Identity
	Underlying  string  `json:"underlying"`
	Expiry      string  `json:"expiry"` // YYYY-MM-DD
	ShortStrike float64 `json:"short_strike"`
	LongStrike  float64 `json:"long_strike"`

	// Economics
	Credit  float64 `json:"credit"`
	MaxLoss float64 `json:"max_loss"`

	// Greeks (net position)
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`

	// Risk
	ProbabilityOfProfit float64 `json:"probability_of_profit"` // 0-1
	IVPercentile        float64 `json:"iv_percentile"`         // 0-100
	IVRank              float64 `json:"iv_rank"`               // position in the historical range, 0-100

	// Execution
	Volume         int64         `json:"volume"`
	OpenInterest   int64         `json:"open_interest"`
	LiquidityScore float64       `json:"liquidity_score"`
	BidAskCost     float64       `json:"bid_ask_cost"`
	Quality        SpreadQuality `json:"quality,omitempty"`

	// Outcome
	ExpectedValue   float64 `json:"expected_value"`
	ReturnOnCapital float64 `json:"return_on_capital"`

	DaysToExpiration int `json:"dte"`
}

// Width returns the distance between the two strikes.
func (c Candidate) Width() float64 {
	return math.Abs(c.ShortStrike - c.LongStrike)
}

// Type infers the spread orientation from the strikes.
func (c Candidate) Type() SpreadType {
	if c.LongStrike < c.ShortStrike {
		return SpreadBullPut
	}
	return SpreadBearCall
}

// MaxProfitPerShare is the credit kept after paying the bid-ask cost.
func (c Candidate) MaxProfitPerShare() float64 {
	return c.Credit - c.BidAskCost
}

// Breakeven returns the underlying price at expiry where the spread stops
// making money.
func (c Candidate) Breakeven() float64 {
	if c.Type() == SpreadBullPut {
		return c.ShortStrike - c.Credit
	}
	return c.ShortStrike + c.Credit
}

// NearExpiry reports whether the candidate expires in fewer than days days.
func (c Candidate) NearExpiry(days int) bool {
	return c.DaysToExpiration < days
}

// String returns a compact human-readable description.
func (c Candidate) String() string {
	return fmt.Sprintf("%s $%.0f/$%.0f %s %s (DTE: %d)",
		c.Underlying, c.ShortStrike, c.LongStrike, c.Type().Label(), c.Expiry, c.DaysToExpiration)
}
