package analyzer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

func TestProbabilityOfProfit(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		want  float64
	}{
		{name: "put delta is negative", delta: -0.15, want: 0.85},
		{name: "call delta is positive", delta: 0.30, want: 0.70},
		{name: "zero delta", delta: 0, want: 1},
		{name: "delta beyond one clamps", delta: -1.4, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ProbabilityOfProfit(tt.delta), 1e-12)
		})
	}
}

func TestExpectedValue_Identity(t *testing.T) {
	ps := []float64{0, 0.1, 0.5, 0.7, 0.85, 1}
	profits := []float64{-20, 0, 1.57, 157, 1e6}
	losses := []float64{-5, 0, 335, 500, 1e6}
	for _, p := range ps {
		for _, P := range profits {
			for _, L := range losses {
				assert.Equal(t, p*P-(1-p)*L, ExpectedValue(p, P, L), "p=%v P=%v L=%v", p, P, L)
			}
		}
	}
}

func TestExpectedValue_Scenarios(t *testing.T) {
	t.Run("per-share profit against per-contract loss is negative", func(t *testing.T) {
		ev := ExpectedValue(0.70, 1.65-0.08, 335)
		assert.InDelta(t, 1.099-100.5, ev, 1e-9)
		assert.Less(t, ev, 0.0)
	})
	t.Run("dollar basis is positive", func(t *testing.T) {
		assert.InDelta(t, 9.4, ExpectedValue(0.70, 157, 335), 1e-9)
	})
}

func TestDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, ReturnOnCapital(12, 0, 30))
	assert.Equal(t, 0.0, ReturnOnCapital(12, -5, 30))
	assert.Equal(t, 0.0, ReturnOnCapital(12, 335, 0))
	assert.Equal(t, 0.0, ReturnOnCapital(12, math.NaN(), 30))
	assert.Equal(t, 0.0, ThetaEfficiency(7.5, 0))
	assert.Equal(t, 0.0, ThetaEfficiency(7.5, math.NaN()))
	assert.Equal(t, 0.0, AnnualizedThetaReturn(7.5, 0, 30))
	assert.Equal(t, 0.0, AnnualizedThetaReturn(7.5, 335, 0))
	assert.Equal(t, 0.0, RiskReward(1.65, 0))
	assert.Equal(t, 0.0, SlippagePct(0.08, 0))
	assert.Equal(t, 50.0, IVPercentile(0.3, nil))
	assert.Equal(t, 50.0, IVPercentile(0.3, []float64{}))
}

func TestReturnOnCapital_MonthlyNormalization(t *testing.T) {
	assert.InDelta(t, 9.4/335*100*30/35, ReturnOnCapital(9.4, 335, 35), 1e-12)
	assert.InDelta(t, 10.0, ReturnOnCapital(50, 500, 30), 1e-12)
	assert.InDelta(t, 20.0, ReturnOnCapital(50, 500, 15), 1e-12)
}

func TestMaxProfit(t *testing.T) {
	assert.InDelta(t, 157.0, MaxProfit(1.65, 0.08), 1e-9)
	assert.InDelta(t, 165.0, MaxProfit(1.65, 0), 1e-9)
	assert.InDelta(t, -10.0, MaxProfit(0.10, 0.20), 1e-9, "slippage above credit is a loss")
}

func TestThetaMetrics(t *testing.T) {
	assert.InDelta(t, 2.0, ThetaEfficiency(10, 500), 1e-12)
	assert.InDelta(t, 2.0*365, AnnualizedThetaReturn(10, 500, 30), 1e-9)
}

func TestMarginAndLiquidity(t *testing.T) {
	assert.Equal(t, 1500.0, MarginRequirement(5, 3))
	assert.Equal(t, 0.0, MarginRequirement(5, 0))
	assert.Equal(t, 1750.0, LiquidityScore(500, 2500))
	assert.InDelta(t, 165.0/335, RiskReward(1.65, 335), 1e-12)
	assert.InDelta(t, 0.08/1.65*100, SlippagePct(0.08, 1.65), 1e-12)
}

func TestIVPercentile(t *testing.T) {
	history := []float64{0.10, 0.20, 0.30, 0.40}
	tests := []struct {
		name    string
		current float64
		want    float64
	}{
		{name: "below all", current: 0.05, want: 0},
		{name: "equal counts as not below", current: 0.20, want: 25},
		{name: "middle", current: 0.25, want: 50},
		{name: "above all", current: 0.50, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IVPercentile(tt.current, history), 1e-12)
		})
	}
}

func TestIVRank(t *testing.T) {
	assert.InDelta(t, 50.0, IVRank(0.25, []float64{0.10, 0.40}), 1e-9)
	assert.InDelta(t, 100.0, IVRank(0.40, []float64{0.10, 0.40, 0.20}), 1e-9)
	assert.Equal(t, 50.0, IVRank(0.25, nil))
	assert.Equal(t, 50.0, IVRank(0.25, []float64{0.2, 0.2}))
}

func quote() SpreadQuote {
	return SpreadQuote{
		Underlying:   "SPY",
		Expiry:       "2025-03-21",
		ShortStrike:  100,
		LongStrike:   95,
		Credit:       1.65,
		BidAskCost:   0.08,
		ShortDelta:   -0.30,
		Theta:        7.5,
		Gamma:        0.01,
		IV:           0.25,
		IVHistory:    []float64{0.1, 0.2, 0.3, 0.4},
		Volume:       500,
		OpenInterest: 2500,
		DTE:          35,
	}
}

func TestBuildCandidate(t *testing.T) {
	t.Run("canonical derivation", func(t *testing.T) {
		c, err := BuildCandidate(quote())
		require.NoError(t, err)

		assert.InDelta(t, 335.0, c.MaxLoss, 1e-9)
		assert.InDelta(t, 157.0, MaxProfit(c.Credit, c.BidAskCost), 1e-9)
		assert.InDelta(t, 0.70, c.ProbabilityOfProfit, 1e-12)
		assert.InDelta(t, 9.4, c.ExpectedValue, 1e-9)
		assert.InDelta(t, 9.4/335*100*30/35, c.ReturnOnCapital, 1e-9)
		assert.InDelta(t, 50.0, c.IVPercentile, 1e-12)
		assert.InDelta(t, 50.0, c.IVRank, 1e-9)
		assert.Equal(t, 1750.0, c.LiquidityScore)
		assert.Equal(t, models.SpreadBullPut, c.Type())
		assert.Equal(t, models.QualityUnknown, c.Quality)
	})

	t.Run("explicit iv percentile wins over history", func(t *testing.T) {
		q := quote()
		ivp := 72.0
		q.IVPercentile = &ivp
		c, err := BuildCandidate(q)
		require.NoError(t, err)
		assert.Equal(t, 72.0, c.IVPercentile)
	})

	t.Run("iv rank from history", func(t *testing.T) {
		q := quote()
		q.IV = 0.25
		q.IVHistory = []float64{0.10, 0.20, 0.30}
		c, err := BuildCandidate(q)
		require.NoError(t, err)
		assert.InDelta(t, 75.0, c.IVRank, 1e-9)
		assert.InDelta(t, 200.0/3, c.IVPercentile, 1e-9)
	})

	t.Run("slippage does not change max loss", func(t *testing.T) {
		q := quote()
		q.BidAskCost = 0.50
		c, err := BuildCandidate(q)
		require.NoError(t, err)
		assert.InDelta(t, 335.0, c.MaxLoss, 1e-9)
		assert.InDelta(t, 115.0, MaxProfit(c.Credit, c.BidAskCost), 1e-9)
	})

	t.Run("invalid quotes", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*SpreadQuote)
			want   error
		}{
			{name: "same strikes", mutate: func(q *SpreadQuote) { q.LongStrike = q.ShortStrike }, want: ErrInvalidStrikes},
			{name: "nan strike", mutate: func(q *SpreadQuote) { q.ShortStrike = math.NaN() }, want: ErrInvalidStrikes},
			{name: "zero credit", mutate: func(q *SpreadQuote) { q.Credit = 0 }, want: ErrCreditExceedsWidth},
			{name: "credit equals width", mutate: func(q *SpreadQuote) { q.Credit = 5 }, want: ErrCreditExceedsWidth},
			{name: "negative dte", mutate: func(q *SpreadQuote) { q.DTE = -1 }, want: ErrNegativeDTE},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				q := quote()
				tt.mutate(&q)
				_, err := BuildCandidate(q)
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			})
		}
	})

	t.Run("batch skips invalid quotes", func(t *testing.T) {
		bad := quote()
		bad.Credit = 0
		out, err := BuildCandidates([]SpreadQuote{quote(), bad, quote()})
		assert.Len(t, out, 2)
		assert.ErrorIs(t, err, ErrCreditExceedsWidth)
	})
}
