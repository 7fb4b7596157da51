package config

import (
	"errors"
	"fmt"
	"math"
)

// WeightTolerance is how far the composite weights may drift from 1.0.
const WeightTolerance = 0.01

// ConfigurationError reports an invalid screening configuration. It is the
// only error raised while constructing a ScreeningConfig.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Field + " " + e.Message
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Thresholds are the hard-filter limits.
type Thresholds struct {
	MinVIX             float64 `yaml:"min_vix"`
	MinVolume          int64   `yaml:"min_volume"`
	MinOpenInterest    int64   `yaml:"min_open_interest"`
	MaxBidAskPct       float64 `yaml:"max_bid_ask_pct"` // fraction of credit
	MinRiskReward      float64 `yaml:"min_risk_reward"` // credit / max loss
	MinIVPercentile    float64 `yaml:"min_iv_percentile"`
	MaxIVPercentile    float64 `yaml:"max_iv_percentile"`
	MaxAbsDelta        float64 `yaml:"max_abs_delta"`
	MaxGammaNearExpiry float64 `yaml:"max_gamma_near_expiry"`
	NearExpiryDays     int     `yaml:"near_expiry_days"`
	MinTheta           float64 `yaml:"min_theta"`
	MinDTE             int     `yaml:"min_dte"`
	MaxDTE             int     `yaml:"max_dte"`
	MaxRecommendations int     `yaml:"max_recommendations"`
}

// Weights are the composite-score factor weights. They must sum to 1.
type Weights struct {
	ExpectedValue float64 `yaml:"expected_value"`
	IVPercentile  float64 `yaml:"iv_percentile"`
	Theta         float64 `yaml:"theta"`
	SpreadQuality float64 `yaml:"spread_quality"`
	ROC           float64 `yaml:"roc"`
	Liquidity     float64 `yaml:"liquidity"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.ExpectedValue + w.IVPercentile + w.Theta + w.SpreadQuality + w.ROC + w.Liquidity
}

// Scoring holds the normalization constants that map raw metrics onto 0-100.
// The values are calibration guesses and need review by someone who trades
// these spreads.
type Scoring struct {
	EVRange             float64 `yaml:"ev_range"`              // +/- dollars mapped to 0..100
	IVBonusThreshold    float64 `yaml:"iv_bonus_threshold"`    // percentile above which IV earns a bonus
	IVBonusMultiplier   float64 `yaml:"iv_bonus_multiplier"`   //
	ThetaEfficiencyCap  float64 `yaml:"theta_efficiency_cap"`  // daily theta % scoring 100
	ROCCap              float64 `yaml:"roc_cap"`               // monthly ROC % scoring 100
	LiquidityCap        float64 `yaml:"liquidity_cap"`         // liquidity score scoring 100
	CostPctPenalty      float64 `yaml:"cost_pct_penalty"`      // points lost per 1% bid-ask cost
	UnknownQualityScore float64 `yaml:"unknown_quality_score"` //
}

// Narrative holds the thresholds behind recommendation text.
type Narrative struct {
	HoldPOP               float64 `yaml:"hold_pop"`
	ModeratePOP           float64 `yaml:"moderate_pop"`
	HoldProfitPct         float64 `yaml:"hold_profit_pct"`
	ModerateProfitPct     float64 `yaml:"moderate_profit_pct"`
	ConservativeProfitPct float64 `yaml:"conservative_profit_pct"`
	StopMultiple          float64 `yaml:"stop_multiple"`
	ConservativeStop      float64 `yaml:"conservative_stop_multiple"`
	RationaleIV           float64 `yaml:"rationale_iv_percentile"`
	RationaleEV           float64 `yaml:"rationale_expected_value"`
	RationaleTheta        float64 `yaml:"rationale_theta_efficiency"`
	RationaleROC          float64 `yaml:"rationale_roc"`
}

// ScreeningParams is the mutable form of a ScreeningConfig.
type ScreeningParams struct {
	Thresholds Thresholds
	Weights    Weights
	Scoring    Scoring
	Narrative  Narrative
}

// DefaultThresholds returns the standard hard-filter limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinVIX:             14,
		MinVolume:          100,
		MinOpenInterest:    1000,
		MaxBidAskPct:       0.05,
		MinRiskReward:      0.25,
		MinIVPercentile:    40,
		MaxIVPercentile:    100,
		MaxAbsDelta:        0.20,
		MaxGammaNearExpiry: 0.05,
		NearExpiryDays:     7,
		MinTheta:           0.01,
		MinDTE:             20,
		MaxDTE:             60,
		MaxRecommendations: 5,
	}
}

// DefaultWeights returns the standard composite weights.
func DefaultWeights() Weights {
	return Weights{
		ExpectedValue: 0.35,
		IVPercentile:  0.25,
		Theta:         0.20,
		SpreadQuality: 0.10,
		ROC:           0.10,
	}
}

// DefaultScoring returns the standard normalization constants.
func DefaultScoring() Scoring {
	return Scoring{
		EVRange:             50,
		IVBonusThreshold:    70,
		IVBonusMultiplier:   1.1,
		ThetaEfficiencyCap:  2,
		ROCCap:              20,
		LiquidityCap:        5000,
		CostPctPenalty:      10,
		UnknownQualityScore: 50,
	}
}

// DefaultNarrative returns the standard recommendation thresholds.
func DefaultNarrative() Narrative {
	return Narrative{
		HoldPOP:               0.80,
		ModeratePOP:           0.70,
		HoldProfitPct:         75,
		ModerateProfitPct:     50,
		ConservativeProfitPct: 30,
		StopMultiple:          2.0,
		ConservativeStop:      1.5,
		RationaleIV:           70,
		RationaleEV:           10,
		RationaleTheta:        1.0,
		RationaleROC:          10,
	}
}

// DefaultParams returns every default together.
func DefaultParams() ScreeningParams {
	return ScreeningParams{
		Thresholds: DefaultThresholds(),
		Weights:    DefaultWeights(),
		Scoring:    DefaultScoring(),
		Narrative:  DefaultNarrative(),
	}
}

// ScreeningConfig is the validated, read-only configuration of a screening
// run. It is safe to share between goroutines.
type ScreeningConfig struct {
	p ScreeningParams
}

// NewScreeningConfig validates p and freezes it.
func NewScreeningConfig(p ScreeningParams) (ScreeningConfig, error) {
	if err := p.validate(); err != nil {
		return ScreeningConfig{}, err
	}
	return ScreeningConfig{p: p}, nil
}

// DefaultScreeningConfig returns the default configuration.
func DefaultScreeningConfig() ScreeningConfig {
	return ScreeningConfig{p: DefaultParams()}
}

// Thresholds returns a copy of the hard-filter limits.
func (c ScreeningConfig) Thresholds() Thresholds { return c.p.Thresholds }

// Weights returns a copy of the composite weights.
func (c ScreeningConfig) Weights() Weights { return c.p.Weights }

// Scoring returns a copy of the normalization constants.
func (c ScreeningConfig) Scoring() Scoring { return c.p.Scoring }

// Narrative returns a copy of the recommendation thresholds.
func (c ScreeningConfig) Narrative() Narrative { return c.p.Narrative }

// Params returns a copy of all parameters.
func (c ScreeningConfig) Params() ScreeningParams { return c.p }

// With returns a new validated config with mutate applied to a copy of the
// parameters. The receiver is unchanged.
func (c ScreeningConfig) With(mutate func(*ScreeningParams)) (ScreeningConfig, error) {
	p := c.p
	mutate(&p)
	return NewScreeningConfig(p)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func (p ScreeningParams) validate() error {
	w := p.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"weights.expected_value", w.ExpectedValue},
		{"weights.iv_percentile", w.IVPercentile},
		{"weights.theta", w.Theta},
		{"weights.spread_quality", w.SpreadQuality},
		{"weights.roc", w.ROC},
		{"weights.liquidity", w.Liquidity},
	} {
		if !finite(f.v) || f.v < 0 {
			return configErr(f.name, "must be a non-negative number, got %v", f.v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightTolerance {
		return configErr("weights", "must sum to 1.0 (±%.2f), got %.4f", WeightTolerance, sum)
	}

	t := p.Thresholds
	switch {
	case !finite(t.MinVIX) || t.MinVIX < 0:
		return configErr("screening.min_vix", "must be >= 0")
	case t.MinVolume < 0:
		return configErr("screening.min_volume", "must be >= 0")
	case t.MinOpenInterest < 0:
		return configErr("screening.min_open_interest", "must be >= 0")
	case !finite(t.MaxBidAskPct) || t.MaxBidAskPct <= 0:
		return configErr("screening.max_bid_ask_pct", "must be > 0")
	case !finite(t.MinRiskReward) || t.MinRiskReward < 0:
		return configErr("screening.min_risk_reward", "must be >= 0")
	case !finite(t.MinIVPercentile) || t.MinIVPercentile < 0 || t.MinIVPercentile > 100:
		return configErr("screening.min_iv_percentile", "must be between 0 and 100")
	case !finite(t.MaxIVPercentile) || t.MaxIVPercentile < t.MinIVPercentile || t.MaxIVPercentile > 100:
		return configErr("screening.max_iv_percentile", "must be between min_iv_percentile (%.0f) and 100", t.MinIVPercentile)
	case !finite(t.MaxAbsDelta) || t.MaxAbsDelta <= 0 || t.MaxAbsDelta > 1:
		return configErr("screening.max_abs_delta", "must be in (0,1]")
	case !finite(t.MaxGammaNearExpiry) || t.MaxGammaNearExpiry < 0:
		return configErr("screening.max_gamma_near_expiry", "must be >= 0")
	case t.NearExpiryDays < 0:
		return configErr("screening.near_expiry_days", "must be >= 0")
	case !finite(t.MinTheta):
		return configErr("screening.min_theta", "must be a number")
	case t.MinDTE < 0 || t.MaxDTE < t.MinDTE:
		return configErr("screening.dte range", "must satisfy 0 <= min_dte (%d) <= max_dte (%d)", t.MinDTE, t.MaxDTE)
	case t.MaxRecommendations <= 0:
		return configErr("screening.max_recommendations", "must be > 0")
	}

	s := p.Scoring
	switch {
	case !finite(s.EVRange) || s.EVRange <= 0:
		return configErr("scoring.ev_range", "must be > 0")
	case !finite(s.IVBonusMultiplier) || s.IVBonusMultiplier < 1:
		return configErr("scoring.iv_bonus_multiplier", "must be >= 1")
	case !finite(s.IVBonusThreshold) || s.IVBonusThreshold < 0 || s.IVBonusThreshold > 100:
		return configErr("scoring.iv_bonus_threshold", "must be between 0 and 100")
	case !finite(s.ThetaEfficiencyCap) || s.ThetaEfficiencyCap <= 0:
		return configErr("scoring.theta_efficiency_cap", "must be > 0")
	case !finite(s.ROCCap) || s.ROCCap <= 0:
		return configErr("scoring.roc_cap", "must be > 0")
	case !finite(s.LiquidityCap) || s.LiquidityCap <= 0:
		return configErr("scoring.liquidity_cap", "must be > 0")
	case !finite(s.CostPctPenalty) || s.CostPctPenalty < 0:
		return configErr("scoring.cost_pct_penalty", "must be >= 0")
	case !finite(s.UnknownQualityScore) || s.UnknownQualityScore < 0 || s.UnknownQualityScore > 100:
		return configErr("scoring.unknown_quality_score", "must be between 0 and 100")
	}

	n := p.Narrative
	switch {
	case !(n.ModeratePOP > 0) || !(n.HoldPOP > n.ModeratePOP) || n.HoldPOP > 1:
		return configErr("narrative", "pop bands must satisfy 0 < moderate_pop (%.2f) < hold_pop (%.2f) <= 1", n.ModeratePOP, n.HoldPOP)
	case !(n.StopMultiple > 0) || !(n.ConservativeStop > 0):
		return configErr("narrative", "stop multiples must be > 0")
	case !finite(n.HoldProfitPct) || !finite(n.ModerateProfitPct) || !finite(n.ConservativeProfitPct):
		return configErr("narrative", "profit targets must be numbers")
	case !finite(n.RationaleIV) || !finite(n.RationaleEV) || !finite(n.RationaleTheta) || !finite(n.RationaleROC):
		return configErr("narrative", "rationale thresholds must be numbers")
	}
	return nil
}
