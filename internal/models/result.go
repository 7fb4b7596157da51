package models

import "time"

// ScoreBreakdown holds each normalized 0-100 factor behind a composite score.
type ScoreBreakdown struct {
	ExpectedValue float64 `json:"expected_value"`
	IVPercentile  float64 `json:"iv_percentile"`
	Theta         float64 `json:"theta"`
	SpreadQuality float64 `json:"spread_quality"`
	ROC           float64 `json:"roc"`
	Liquidity     float64 `json:"liquidity"`
	Composite     float64 `json:"composite"`
}

// TradeRecommendation is a candidate that survived filtering and selection,
// with its score and narrative.
type TradeRecommendation struct {
	Candidate Candidate      `json:"candidate"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Rank      int            `json:"rank"` // 1-based

	// Display fields, dollars per contract unless noted
	MaxLoss             float64 `json:"max_loss"`
	MaxProfit           float64 `json:"max_profit"`
	Breakeven           float64 `json:"breakeven"` // underlying price
	ProbabilityOfProfit float64 `json:"probability_of_profit"`
	ThetaPerDay         float64 `json:"theta_per_day"`
	AnnualizedTheta     float64 `json:"annualized_theta_pct"` // percent of max loss per year
	Margin              float64 `json:"margin"`               // one contract
	IVRank              float64 `json:"iv_rank"`

	WorstCase string `json:"worst_case"`
	ExitPlan  string `json:"exit_plan"`
	Rationale string `json:"rationale"`
}

// FilterError records a gate that failed unexpectedly while evaluating a
// candidate. The candidate is rejected and screening continues.
type FilterError struct {
	Gate      string          `json:"gate"`
	Reason    RejectionReason `json:"reason"`
	Candidate string          `json:"candidate"`
	Message   string          `json:"message"`
}

func (e FilterError) Error() string {
	return "filter " + e.Gate + " failed on " + e.Candidate + ": " + e.Message
}

// NearMiss is a rejected candidate that failed exactly one hard filter.
type NearMiss struct {
	Candidate string          `json:"candidate"`
	Gate      string          `json:"gate"`
	Reason    RejectionReason `json:"reason"`
	Score     float64         `json:"score"` // composite score had it passed
}

// ScreeningResult is the outcome of one screening call. It is built once and
// not modified afterwards.
type ScreeningResult struct {
	RunID           string                `json:"run_id"`
	Underlying      string                `json:"underlying,omitempty"`
	VIX             float64               `json:"vix"`
	Considered      int                   `json:"considered"`
	Passed          int                   `json:"passed"`
	Recommendations []TradeRecommendation `json:"recommendations"`
	Rejections      RejectionCounts       `json:"rejections"`
	FilterErrors    []FilterError         `json:"filter_errors,omitempty"`
	NearMisses      []NearMiss            `json:"near_misses,omitempty"`
	Elapsed         time.Duration         `json:"elapsed"`
}

// Empty reports whether no candidate survived. An empty result is a valid
// outcome, not a failure.
func (r ScreeningResult) Empty() bool {
	return len(r.Recommendations) == 0
}

// Rejected returns the number of candidates that failed a hard filter.
func (r ScreeningResult) Rejected() int {
	return r.Considered - r.Passed
}

// PassRate returns the percentage of considered candidates that passed.
func (r ScreeningResult) PassRate() float64 {
	if r.Considered == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Considered) * 100
}

// MultiResult aggregates the per-underlying results of a concurrent screen.
type MultiResult struct {
	RunID           string                     `json:"run_id"`
	VIX             float64                    `json:"vix"`
	Results         map[string]ScreeningResult `json:"results"`
	Underlyings     []string                   `json:"underlyings"` // sorted
	Considered      int                        `json:"considered"`
	Passed          int                        `json:"passed"`
	Rejections      RejectionCounts            `json:"rejections"`
	Recommendations []TradeRecommendation      `json:"recommendations"` // combined top-N
	ProviderErrors  map[string]string          `json:"provider_errors,omitempty"` // underlying -> fetch error
	Elapsed         time.Duration              `json:"elapsed"`
}

// Empty reports whether no underlying produced a recommendation.
func (m MultiResult) Empty() bool {
	return len(m.Recommendations) == 0
}

// PassRate returns the percentage of considered candidates that passed.
func (m MultiResult) PassRate() float64 {
	if m.Considered == 0 {
		return 0
	}
	return float64(m.Passed) / float64(m.Considered) * 100
}
