package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/util"
)

// SpreadQuote is the raw market description of a spread before analysis.
// Prices are per share; Greeks are net position values per contract.
type SpreadQuote struct {
	Underlying  string
	Expiry      string
	ShortStrike float64
	LongStrike  float64
	Credit      float64 // mid-price credit per share
	BidAskCost  float64 // expected slippage per share

	ShortDelta float64
	Theta      float64 // dollars per day per contract
	Gamma      float64
	Vega       float64

	IV        float64
	IVHistory []float64
	// IVPercentile, when set, is used instead of computing it from IVHistory.
	IVPercentile *float64

	Volume       int64
	OpenInterest int64
	DTE          int
	Quality      models.SpreadQuality
}

var (
	// ErrInvalidStrikes is returned when the two strikes coincide or are not finite
	ErrInvalidStrikes = errors.New("invalid strikes")
	// ErrCreditExceedsWidth is returned when the credit leaves no room for loss
	ErrCreditExceedsWidth = errors.New("credit must be positive and less than strike width")
	// ErrNegativeDTE is returned for expirations in the past
	ErrNegativeDTE = errors.New("days to expiration must not be negative")
)

// Validate checks the structural preconditions BuildCandidate relies on.
func (q SpreadQuote) Validate() error {
	if !util.IsFinite(q.ShortStrike) || !util.IsFinite(q.LongStrike) || q.ShortStrike == q.LongStrike {
		return fmt.Errorf("%s %v/%v: %w", q.Underlying, q.ShortStrike, q.LongStrike, ErrInvalidStrikes)
	}
	width := math.Abs(q.ShortStrike - q.LongStrike)
	if !(q.Credit > 0) || q.Credit >= width {
		return fmt.Errorf("%s credit %.2f width %.2f: %w", q.Underlying, q.Credit, width, ErrCreditExceedsWidth)
	}
	if q.DTE < 0 {
		return fmt.Errorf("%s dte %d: %w", q.Underlying, q.DTE, ErrNegativeDTE)
	}
	return nil
}

// BuildCandidate derives a Candidate from a quote. This is the single
// canonical derivation of the P&L fields:
//
//	max_profit = (credit - bid_ask_cost) * 100
//	max_loss   = (width - credit) * 100
//
// Slippage reduces profit only; it is not subtracted before max loss.
func BuildCandidate(q SpreadQuote) (models.Candidate, error) {
	if err := q.Validate(); err != nil {
		return models.Candidate{}, err
	}

	width := math.Abs(q.ShortStrike - q.LongStrike)
	maxProfit := MaxProfit(q.Credit, q.BidAskCost)
	maxLoss := (width - q.Credit) * models.ContractMultiplier

	pop := ProbabilityOfProfit(q.ShortDelta)
	ev := ExpectedValue(pop, maxProfit, maxLoss)

	ivp := IVPercentile(q.IV, q.IVHistory)
	if q.IVPercentile != nil {
		ivp = *q.IVPercentile
	}

	return models.Candidate{
		Underlying:          q.Underlying,
		Expiry:              q.Expiry,
		ShortStrike:         q.ShortStrike,
		LongStrike:          q.LongStrike,
		Credit:              q.Credit,
		MaxLoss:             maxLoss,
		Delta:               q.ShortDelta,
		Theta:               q.Theta,
		Gamma:               q.Gamma,
		Vega:                q.Vega,
		ProbabilityOfProfit: pop,
		IVPercentile:        ivp,
		IVRank:              IVRank(q.IV, q.IVHistory),
		Volume:              q.Volume,
		OpenInterest:        q.OpenInterest,
		LiquidityScore:      LiquidityScore(q.Volume, q.OpenInterest),
		BidAskCost:          q.BidAskCost,
		Quality:             q.Quality,
		ExpectedValue:       ev,
		ReturnOnCapital:     ReturnOnCapital(ev, maxLoss, q.DTE),
		DaysToExpiration:    q.DTE,
	}, nil
}

// BuildCandidates converts every valid quote. Invalid quotes are skipped and
// their errors joined into the returned error.
func BuildCandidates(quotes []SpreadQuote) ([]models.Candidate, error) {
	out := make([]models.Candidate, 0, len(quotes))
	var errs []error
	for _, q := range quotes {
		c, err := BuildCandidate(q)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, c)
	}
	return out, errors.Join(errs...)
}
