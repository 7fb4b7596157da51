// Package recommend turns selected candidates into trade recommendations with
// deterministic, rule-based narrative.
package recommend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/ranking"
)

const genericRationale = "Meets all minimum criteria for credit spread"

// Builder produces recommendations. It is immutable and safe for concurrent use.
type Builder struct {
	n config.Narrative
}

// New returns a builder using the narrative thresholds of cfg.
func New(cfg config.ScreeningConfig) *Builder {
	return &Builder{n: cfg.Narrative()}
}

// BuildAll converts ranked candidates into recommendations, numbering them
// from 1 in the given order.
func (b *Builder) BuildAll(ranked []ranking.Scored) []models.TradeRecommendation {
	out := make([]models.TradeRecommendation, len(ranked))
	for i, s := range ranked {
		out[i] = b.Build(s, i+1)
	}
	return out
}

// Combine merges recommendations from several batches into one list, best
// score first, keeping at most limit and renumbering ranks from 1. Equal
// scores keep their input order. The inputs are not modified.
func Combine(recs []models.TradeRecommendation, limit int) []models.TradeRecommendation {
	out := make([]models.TradeRecommendation, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Build converts one scored candidate into a recommendation.
func (b *Builder) Build(s ranking.Scored, rank int) models.TradeRecommendation {
	c := s.Candidate
	return models.TradeRecommendation{
		Candidate:           c,
		Score:               s.Score,
		Breakdown:           s.Breakdown,
		Rank:                rank,
		MaxLoss:             c.MaxLoss,
		MaxProfit:           analyzer.MaxProfit(c.Credit, c.BidAskCost),
		Breakeven:           c.Breakeven(),
		ProbabilityOfProfit: c.ProbabilityOfProfit,
		ThetaPerDay:         c.Theta,
		AnnualizedTheta:     analyzer.AnnualizedThetaReturn(c.Theta, c.MaxLoss, c.DaysToExpiration),
		Margin:              analyzer.MarginRequirement(c.Width(), 1),
		IVRank:              c.IVRank,
		WorstCase:           b.WorstCase(c),
		ExitPlan:            b.ExitPlan(c),
		Rationale:           b.Rationale(c),
	}
}

// WorstCase describes the breakeven crossing, the dollar loss, and how often
// it is expected.
func (b *Builder) WorstCase(c models.Candidate) string {
	return fmt.Sprintf("Stock moves beyond $%.2f. Max loss: $%.2f. This occurs in ~%.0f%% of cases.",
		c.Breakeven(), c.MaxLoss, (1-c.ProbabilityOfProfit)*100)
}

// ExitPlan picks profit-taking and stop rules from the probability band.
func (b *Builder) ExitPlan(c models.Candidate) string {
	pop := c.ProbabilityOfProfit
	maxProfit := analyzer.MaxProfit(c.Credit, c.BidAskCost)
	switch {
	case pop > b.n.HoldPOP:
		return fmt.Sprintf("High probability trade. Hold to expiry if profit > %s%%. Cut at %sx max profit ($%.2f loss).",
			num(b.n.HoldProfitPct), num(b.n.StopMultiple), maxProfit*b.n.StopMultiple)
	case pop > b.n.ModeratePOP:
		return fmt.Sprintf("Standard trade. Take profit at %s%% max gain. Cut at %sx max profit ($%.2f loss).",
			num(b.n.ModerateProfitPct), num(b.n.StopMultiple), maxProfit*b.n.StopMultiple)
	default:
		return fmt.Sprintf("Moderate probability. Take profit at %s%% max gain. Cut at %sx max profit ($%.2f loss).",
			num(b.n.ConservativeProfitPct), num(b.n.ConservativeStop), maxProfit*b.n.ConservativeStop)
	}
}

// Rationale lists the notable strengths in a fixed order: IV, EV, theta, ROC.
func (b *Builder) Rationale(c models.Candidate) string {
	var parts []string
	if c.IVPercentile > b.n.RationaleIV {
		parts = append(parts, fmt.Sprintf("IV at %.0fth percentile (premium rich)", c.IVPercentile))
	}
	if c.ExpectedValue > b.n.RationaleEV {
		parts = append(parts, fmt.Sprintf("Strong positive EV ($%.2f)", c.ExpectedValue))
	}
	if eff := analyzer.ThetaEfficiency(c.Theta, c.MaxLoss); eff > b.n.RationaleTheta {
		parts = append(parts, fmt.Sprintf("Excellent theta efficiency (%.2f%%)", eff))
	}
	if c.ReturnOnCapital > b.n.RationaleROC {
		parts = append(parts, fmt.Sprintf("High ROC (%.1f%%/month)", c.ReturnOnCapital))
	}
	if len(parts) == 0 {
		return genericRationale
	}
	return strings.Join(parts, "; ")
}

// num formats a constant without trailing zeros: 2 -> "2", 1.5 -> "1.5".
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
