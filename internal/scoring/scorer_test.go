package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

func dollarCandidate() models.Candidate {
	ev := analyzer.ExpectedValue(0.70, 157, 335)
	return models.Candidate{
		Underlying:          "SPY",
		ShortStrike:         100,
		LongStrike:          95,
		Credit:              1.65,
		MaxLoss:             335,
		Delta:               0.15,
		Theta:               7.5,
		Gamma:               0.01,
		ProbabilityOfProfit: 0.70,
		IVPercentile:        72,
		Volume:              500,
		OpenInterest:        2500,
		LiquidityScore:      2200,
		BidAskCost:          0.08,
		ExpectedValue:       ev,
		ReturnOnCapital:     analyzer.ReturnOnCapital(ev, 335, 35),
		DaysToExpiration:    35,
	}
}

func TestScorer_DollarBasisScenario(t *testing.T) {
	s := New(config.DefaultScreeningConfig())
	c := dollarCandidate()
	b := s.Breakdown(c)

	assert.InDelta(t, 59.4, b.ExpectedValue, 1e-9)
	assert.InDelta(t, 72*1.1, b.IVPercentile, 1e-9)
	assert.Equal(t, 100.0, b.Theta, "7.5/335 is above the 2% cap")
	assert.InDelta(t, 100-(0.08/1.65*100)*10, b.SpreadQuality, 1e-9)
	assert.InDelta(t, c.ReturnOnCapital*5, b.ROC, 1e-9)
	assert.InDelta(t, 44.0, b.Liquidity, 1e-9)

	want := 0.35*b.ExpectedValue + 0.25*b.IVPercentile + 0.20*b.Theta + 0.10*b.SpreadQuality + 0.10*b.ROC
	assert.InDelta(t, want, b.Composite, 1e-9)
	assert.False(t, math.IsNaN(b.Composite) || math.IsInf(b.Composite, 0))
	assert.Equal(t, b.Composite, s.Score(c))
}

func TestScorer_ExpectedValueScore(t *testing.T) {
	s := New(config.DefaultScreeningConfig())
	tests := []struct {
		ev   float64
		want float64
	}{
		{ev: 0, want: 50},
		{ev: 25, want: 75},
		{ev: -25, want: 25},
		{ev: 50, want: 100},
		{ev: 500, want: 100},
		{ev: -500, want: 0},
		{ev: math.NaN(), want: 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.ExpectedValueScore(tt.ev), 1e-9, "ev=%v", tt.ev)
	}
}

func TestScorer_IVScore(t *testing.T) {
	s := New(config.DefaultScreeningConfig())
	assert.Equal(t, 70.0, s.IVScore(70), "bonus applies strictly above the threshold")
	assert.InDelta(t, 88.0, s.IVScore(80), 1e-9)
	assert.Equal(t, 100.0, s.IVScore(95), "bonus is capped")
	assert.Equal(t, 0.0, s.IVScore(-5))
}

func TestScorer_LinearFactors(t *testing.T) {
	s := New(config.DefaultScreeningConfig())

	assert.Equal(t, 0.0, s.ThetaScore(0))
	assert.InDelta(t, 50.0, s.ThetaScore(1), 1e-9)
	assert.Equal(t, 100.0, s.ThetaScore(2))
	assert.Equal(t, 100.0, s.ThetaScore(9))
	assert.Equal(t, 0.0, s.ThetaScore(-1))

	assert.InDelta(t, 50.0, s.ROCScore(10), 1e-9)
	assert.Equal(t, 100.0, s.ROCScore(20))
	assert.Equal(t, 0.0, s.ROCScore(-3))

	assert.InDelta(t, 50.0, s.LiquidityScore(2500), 1e-9)
	assert.Equal(t, 100.0, s.LiquidityScore(1e6))
}

func TestScorer_SpreadQuality(t *testing.T) {
	s := New(config.DefaultScreeningConfig())

	tests := []struct {
		name    string
		quality models.SpreadQuality
		credit  float64
		cost    float64
		want    float64
	}{
		{name: "excellent", quality: models.QualityExcellent, credit: 1, want: 100},
		{name: "good", quality: models.QualityGood, credit: 1, want: 75},
		{name: "acceptable", quality: models.QualityAcceptable, credit: 1, want: 50},
		{name: "poor", quality: models.QualityPoor, credit: 1, want: 25},
		{name: "avoid", quality: models.QualityAvoid, credit: 1, want: 0},
		{name: "unrecognized rating", quality: "murky", credit: 1, want: 50},
		{name: "rating wins over cost", quality: models.QualityExcellent, credit: 1, cost: 0.5, want: 100},
		{name: "continuous tight", credit: 2, cost: 0.02, want: 90},
		{name: "continuous floors at zero", credit: 1, cost: 0.5, want: 0},
		{name: "no credit fails closed", credit: 0, cost: 0.02, want: 0},
		{name: "nan credit fails closed", credit: math.NaN(), cost: 0.02, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Candidate{Quality: tt.quality, Credit: tt.credit, BidAskCost: tt.cost}
			assert.InDelta(t, tt.want, s.SpreadQualityScore(c), 1e-9)
		})
	}
}

func TestScorer_CompositeIsClamped(t *testing.T) {
	cfg, err := config.DefaultScreeningConfig().With(func(p *config.ScreeningParams) {
		p.Weights = config.Weights{IVPercentile: 1}
		p.Scoring.IVBonusMultiplier = 3
	})
	require.NoError(t, err)
	s := New(cfg)
	c := dollarCandidate()
	c.IVPercentile = 99
	assert.Equal(t, 100.0, s.Score(c))

	c = models.Candidate{ExpectedValue: math.Inf(-1), IVPercentile: math.NaN()}
	score := New(config.DefaultScreeningConfig()).Score(c)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestScorer_LiquidityWeight(t *testing.T) {
	cfg, err := config.DefaultScreeningConfig().With(func(p *config.ScreeningParams) {
		p.Weights.ExpectedValue = 0.25
		p.Weights.Liquidity = 0.10
	})
	require.NoError(t, err)
	s := New(cfg)
	thin := dollarCandidate()
	thin.LiquidityScore = 0
	deep := dollarCandidate()
	deep.LiquidityScore = 5000
	assert.InDelta(t, 10.0, s.Score(deep)-s.Score(thin), 1e-9)
}
