// Package ranking orders scored candidates and selects the top of the list.
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/scoring"
)

// Scored pairs a candidate with its composite score.
type Scored struct {
	Candidate models.Candidate
	Score     float64
	Breakdown models.ScoreBreakdown
}

// Ranker scores and selects candidates that passed every hard filter.
type Ranker struct {
	scorer *scoring.Scorer
	limit  int
}

// New returns a ranker that keeps at most limit candidates.
func New(scorer *scoring.Scorer, limit int) *Ranker {
	return &Ranker{scorer: scorer, limit: limit}
}

// Rank scores every candidate and returns them best first, truncated to the
// ranker's limit.
func (r *Ranker) Rank(passed []models.Candidate) []Scored {
	return Rank(r.ScoreAll(passed), r.limit)
}

// ScoreAll scores every candidate, preserving input order.
func (r *Ranker) ScoreAll(passed []models.Candidate) []Scored {
	out := make([]Scored, len(passed))
	for i, c := range passed {
		b := r.scorer.Breakdown(c)
		out[i] = Scored{Candidate: c, Score: b.Composite, Breakdown: b}
	}
	return out
}

// Rank sorts items by descending score and keeps the first limit. Items with
// equal scores keep their input order. A non-positive limit keeps everything.
// The input slice is not modified.
func Rank(items []Scored, limit int) []Scored {
	out := make([]Scored, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Metric is a secondary ordering used for reporting.
type Metric string

const (
	// ByScore orders by composite score
	ByScore Metric = "score"
	// ByExpectedValue orders by expected value
	ByExpectedValue Metric = "ev"
	// ByROC orders by monthly return on capital
	ByROC Metric = "roc"
	// ByTheta orders by theta efficiency
	ByTheta Metric = "theta"
	// ByPOP orders by probability of profit
	ByPOP Metric = "pop"
)

// Valid returns true if the Metric is one of the defined constants
func (m Metric) Valid() bool {
	switch m {
	case ByScore, ByExpectedValue, ByROC, ByTheta, ByPOP:
		return true
	default:
		return false
	}
}

// ParseMetric converts a flag value into a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if s == "" {
		return ByScore, nil
	}
	if !m.Valid() {
		return "", fmt.Errorf("unknown sort metric %q (want score, ev, roc, theta or pop)", s)
	}
	return m, nil
}

func (m Metric) value(s Scored) float64 {
	switch m {
	case ByExpectedValue:
		return s.Candidate.ExpectedValue
	case ByROC:
		return s.Candidate.ReturnOnCapital
	case ByTheta:
		return analyzer.ThetaEfficiency(s.Candidate.Theta, s.Candidate.MaxLoss)
	case ByPOP:
		return s.Candidate.ProbabilityOfProfit
	default:
		return s.Score
	}
}

// RecommendationsBy reorders recommendations by metric for display, keeping
// their assigned ranks. It does not modify the input.
func RecommendationsBy(recs []models.TradeRecommendation, metric Metric) []models.TradeRecommendation {
	out := make([]models.TradeRecommendation, len(recs))
	copy(out, recs)
	key := func(r models.TradeRecommendation) float64 {
		return metric.value(Scored{Candidate: r.Candidate, Score: r.Score, Breakdown: r.Breakdown})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]) > key(out[j])
	})
	return out
}
