package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/ranking"
)

func candidate() models.Candidate {
	return models.Candidate{
		Underlying:          "SPY",
		Expiry:              "2025-03-21",
		ShortStrike:         100,
		LongStrike:          95,
		Credit:              1.65,
		MaxLoss:             335,
		Theta:               2,
		BidAskCost:          0.08,
		ProbabilityOfProfit: 0.70,
		IVPercentile:        50,
		ExpectedValue:       9.4,
		ReturnOnCapital:     2.4,
		DaysToExpiration:    35,
	}
}

func TestWorstCase(t *testing.T) {
	b := New(config.DefaultScreeningConfig())
	assert.Equal(t, "Stock moves beyond $98.35. Max loss: $335.00. This occurs in ~30% of cases.", b.WorstCase(candidate()))

	c := candidate()
	c.ShortStrike, c.LongStrike = 105, 110
	assert.Contains(t, b.WorstCase(c), "beyond $106.65")
}

func TestExitPlan_Bands(t *testing.T) {
	b := New(config.DefaultScreeningConfig())

	tests := []struct {
		name string
		pop  float64
		want string
	}{
		{name: "high", pop: 0.85, want: "High probability trade. Hold to expiry if profit > 75%. Cut at 2x max profit ($314.00 loss)."},
		{name: "upper boundary belongs to standard band", pop: 0.80, want: "Standard trade. Take profit at 50% max gain. Cut at 2x max profit ($314.00 loss)."},
		{name: "standard", pop: 0.75, want: "Standard trade. Take profit at 50% max gain. Cut at 2x max profit ($314.00 loss)."},
		{name: "lower boundary belongs to moderate band", pop: 0.70, want: "Moderate probability. Take profit at 30% max gain. Cut at 1.5x max profit ($235.50 loss)."},
		{name: "moderate", pop: 0.55, want: "Moderate probability. Take profit at 30% max gain. Cut at 1.5x max profit ($235.50 loss)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate()
			c.ProbabilityOfProfit = tt.pop
			assert.Equal(t, tt.want, b.ExitPlan(c))
		})
	}
}

func TestExitPlan_ConfigurableBands(t *testing.T) {
	cfg, err := config.DefaultScreeningConfig().With(func(p *config.ScreeningParams) {
		p.Narrative.HoldPOP = 0.90
		p.Narrative.HoldProfitPct = 80
	})
	require.NoError(t, err)
	b := New(cfg)
	c := candidate()
	c.ProbabilityOfProfit = 0.85
	assert.Contains(t, b.ExitPlan(c), "Standard trade")
	c.ProbabilityOfProfit = 0.95
	assert.Contains(t, b.ExitPlan(c), "profit > 80%")
}

func TestRationale(t *testing.T) {
	b := New(config.DefaultScreeningConfig())

	t.Run("generic when nothing stands out", func(t *testing.T) {
		assert.Equal(t, "Meets all minimum criteria for credit spread", b.Rationale(candidate()))
	})

	t.Run("fixed order", func(t *testing.T) {
		c := candidate()
		c.IVPercentile = 72
		c.ExpectedValue = 25
		c.Theta = 7.5
		c.ReturnOnCapital = 12
		assert.Equal(t,
			"IV at 72th percentile (premium rich); Strong positive EV ($25.00); Excellent theta efficiency (2.24%); High ROC (12.0%/month)",
			b.Rationale(c))
	})

	t.Run("thresholds are strict", func(t *testing.T) {
		c := candidate()
		c.IVPercentile = 70
		c.ExpectedValue = 10
		c.ReturnOnCapital = 10
		assert.Equal(t, genericRationale, b.Rationale(c))
	})

	t.Run("subset", func(t *testing.T) {
		c := candidate()
		c.ReturnOnCapital = 15
		c.ExpectedValue = 11
		assert.Equal(t, "Strong positive EV ($11.00); High ROC (15.0%/month)", b.Rationale(c))
	})
}

func TestBuildAll(t *testing.T) {
	b := New(config.DefaultScreeningConfig())
	first := candidate()
	first.IVRank = 64
	second := candidate()
	second.Underlying = "QQQ"
	recs := b.BuildAll([]ranking.Scored{
		{Candidate: first, Score: 80, Breakdown: models.ScoreBreakdown{Composite: 80}},
		{Candidate: second, Score: 60},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Rank)
	assert.Equal(t, 2, recs[1].Rank)
	assert.Equal(t, "QQQ", recs[1].Candidate.Underlying)
	assert.Equal(t, 80.0, recs[0].Breakdown.Composite)
	assert.InDelta(t, 157.0, recs[0].MaxProfit, 1e-9)
	assert.InDelta(t, 98.35, recs[0].Breakeven, 1e-9)
	assert.Equal(t, 2.0, recs[0].ThetaPerDay)
	assert.InDelta(t, 2.0/335*100*365, recs[0].AnnualizedTheta, 1e-9)
	assert.Equal(t, 500.0, recs[0].Margin)
	assert.Equal(t, 64.0, recs[0].IVRank)
	assert.NotEmpty(t, recs[0].WorstCase)
	assert.NotEmpty(t, recs[0].ExitPlan)
	assert.NotEmpty(t, recs[0].Rationale)
}

func TestCombine(t *testing.T) {
	rec := func(u string, score float64) models.TradeRecommendation {
		return models.TradeRecommendation{Candidate: models.Candidate{Underlying: u}, Score: score, Rank: 1}
	}
	in := []models.TradeRecommendation{rec("IWM", 60), rec("QQQ", 80), rec("SPY", 60), rec("SPY", 90)}

	out := Combine(in, 3)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"SPY", "QQQ", "IWM"}, []string{
		out[0].Candidate.Underlying, out[1].Candidate.Underlying, out[2].Candidate.Underlying,
	}, "ties keep input order")
	for i, r := range out {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, 1, in[3].Rank, "input is not modified")

	assert.Len(t, Combine(in, 0), 4)
	assert.Empty(t, Combine(nil, 5))
}
