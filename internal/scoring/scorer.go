// Package scoring maps each analytic metric onto a common 0-100 scale and
// combines them into one weighted composite score.
package scoring

import (
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/util"
)

const (
	minScore = 0.0
	maxScore = 100.0
)

// qualityStep spaces the rating ranks evenly from avoid (0) to excellent (100).
var qualityStep = maxScore / float64(models.QualityExcellent.Rank())

// Scorer computes composite scores. It is immutable and safe for concurrent use.
type Scorer struct {
	weights config.Weights
	scoring config.Scoring
}

// New returns a scorer using the weights and normalization constants of cfg.
func New(cfg config.ScreeningConfig) *Scorer {
	return &Scorer{weights: cfg.Weights(), scoring: cfg.Scoring()}
}

// Score returns the composite score of c, clamped to [0,100].
func (s *Scorer) Score(c models.Candidate) float64 {
	return s.Breakdown(c).Composite
}

// Breakdown returns every normalized factor together with the composite.
func (s *Scorer) Breakdown(c models.Candidate) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		ExpectedValue: s.ExpectedValueScore(c.ExpectedValue),
		IVPercentile:  s.IVScore(c.IVPercentile),
		Theta:         s.ThetaScore(analyzer.ThetaEfficiency(c.Theta, c.MaxLoss)),
		SpreadQuality: s.SpreadQualityScore(c),
		ROC:           s.ROCScore(c.ReturnOnCapital),
		Liquidity:     s.LiquidityScore(c.LiquidityScore),
	}
	w := s.weights
	composite := b.ExpectedValue*w.ExpectedValue +
		b.IVPercentile*w.IVPercentile +
		b.Theta*w.Theta +
		b.SpreadQuality*w.SpreadQuality +
		b.ROC*w.ROC +
		b.Liquidity*w.Liquidity
	b.Composite = util.Clamp(composite, minScore, maxScore)
	return b
}

// ExpectedValueScore maps EV linearly so that 0 scores 50 and +/-EVRange
// reaches the ends of the scale.
func (s *Scorer) ExpectedValueScore(ev float64) float64 {
	half := maxScore / 2
	return util.Clamp(half+ev*(half/s.scoring.EVRange), minScore, maxScore)
}

// IVScore uses the percentile directly, with a multiplier above the rich
// premium threshold.
func (s *Scorer) IVScore(ivPercentile float64) float64 {
	score := ivPercentile
	if ivPercentile > s.scoring.IVBonusThreshold {
		score *= s.scoring.IVBonusMultiplier
	}
	return util.Clamp(score, minScore, maxScore)
}

// ThetaScore maps theta efficiency (daily % of capital at risk) so that
// ThetaEfficiencyCap scores 100.
func (s *Scorer) ThetaScore(efficiency float64) float64 {
	return util.Clamp(efficiency*maxScore/s.scoring.ThetaEfficiencyCap, minScore, maxScore)
}

// SpreadQualityScore uses the discrete rating when present and falls back to
// the inverse bid-ask cost. A spread with no credit scores 0.
func (s *Scorer) SpreadQualityScore(c models.Candidate) float64 {
	if q := c.Quality; q != models.QualityUnknown {
		if r := q.Rank(); r >= 0 {
			return float64(r) * qualityStep
		}
		return s.scoring.UnknownQualityScore
	}
	if !(c.Credit > 0) {
		return minScore
	}
	costPct := analyzer.SlippagePct(c.BidAskCost, c.Credit)
	return util.Clamp(maxScore-costPct*s.scoring.CostPctPenalty, minScore, maxScore)
}

// ROCScore maps monthly return on capital so that ROCCap scores 100.
func (s *Scorer) ROCScore(roc float64) float64 {
	return util.Clamp(roc*maxScore/s.scoring.ROCCap, minScore, maxScore)
}

// LiquidityScore maps the liquidity score so that LiquidityCap scores 100.
func (s *Scorer) LiquidityScore(liquidity float64) float64 {
	return util.Clamp(liquidity*maxScore/s.scoring.LiquidityCap, minScore, maxScore)
}
