package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bullPut() Candidate {
	return Candidate{
		Underlying:       "SPY",
		Expiry:           "2025-03-21",
		ShortStrike:      100,
		LongStrike:       95,
		Credit:           1.65,
		MaxLoss:          335,
		Delta:            0.15,
		Theta:            7.5,
		BidAskCost:       0.08,
		DaysToExpiration: 35,
	}
}

func TestCandidate_DerivedFields(t *testing.T) {
	t.Run("bull put", func(t *testing.T) {
		c := bullPut()
		assert.Equal(t, SpreadBullPut, c.Type())
		assert.InDelta(t, 5.0, c.Width(), 1e-9)
		assert.InDelta(t, 98.35, c.Breakeven(), 1e-9)
		assert.InDelta(t, 1.57, c.MaxProfitPerShare(), 1e-9)
	})

	t.Run("bear call", func(t *testing.T) {
		c := bullPut()
		c.ShortStrike, c.LongStrike = 105, 110
		assert.Equal(t, SpreadBearCall, c.Type())
		assert.InDelta(t, 5.0, c.Width(), 1e-9)
		assert.InDelta(t, 106.65, c.Breakeven(), 1e-9)
	})

	t.Run("near expiry is strict", func(t *testing.T) {
		c := bullPut()
		c.DaysToExpiration = 7
		assert.False(t, c.NearExpiry(7))
		c.DaysToExpiration = 6
		assert.True(t, c.NearExpiry(7))
	})

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "SPY $100/$95 Bull Put 2025-03-21 (DTE: 35)", bullPut().String())
	})
}

func TestSpreadQuality(t *testing.T) {
	t.Run("ordinal ranking", func(t *testing.T) {
		order := []SpreadQuality{QualityAvoid, QualityPoor, QualityAcceptable, QualityGood, QualityExcellent}
		for i := 1; i < len(order); i++ {
			assert.Greater(t, order[i].Rank(), order[i-1].Rank(), "%s should outrank %s", order[i], order[i-1])
		}
		assert.Equal(t, -1, QualityUnknown.Rank())
	})

	t.Run("parse", func(t *testing.T) {
		assert.Equal(t, QualityExcellent, ParseSpreadQuality(" Excellent "))
		assert.Equal(t, QualityUnknown, ParseSpreadQuality("superb"))
		assert.False(t, SpreadQuality("superb").Valid())
	})

	t.Run("from cost percent", func(t *testing.T) {
		tests := []struct {
			pct  float64
			want SpreadQuality
		}{
			{1, QualityExcellent},
			{4.8, QualityGood},
			{10, QualityAcceptable},
			{15, QualityPoor},
			{50, QualityAvoid},
			{-1, QualityUnknown},
			{math.NaN(), QualityUnknown},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, QualityFromCostPct(tt.pct), "pct=%v", tt.pct)
		}
	})
}

func TestRejectionCounts(t *testing.T) {
	t.Run("canonical order covers every reason once", func(t *testing.T) {
		reasons := RejectionReasons()
		require.Len(t, reasons, 9)
		seen := map[RejectionReason]bool{}
		for i, r := range reasons {
			assert.True(t, r.Valid())
			assert.Equal(t, i, r.Ordinal())
			assert.False(t, seen[r])
			seen[r] = true
		}
		assert.Equal(t, RejectLowVIX, reasons[0])
		assert.Equal(t, RejectNegativeEV, reasons[8])
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		reasons := RejectionReasons()
		reasons[0] = "mutated"
		assert.Equal(t, RejectLowVIX, RejectionReasons()[0])
	})

	t.Run("merge and total", func(t *testing.T) {
		a := NewRejectionCounts()
		a.Add(RejectDelta)
		a.Add(RejectDelta)
		b := NewRejectionCounts()
		b.Add(RejectDelta)
		b.Add(RejectLowVIX)

		a.Merge(b)
		assert.Equal(t, 3, a[RejectDelta])
		assert.Equal(t, 1, a[RejectLowVIX])
		assert.Equal(t, 4, a.Total())
		assert.Equal(t, 1, b[RejectDelta], "merge must not modify its argument")
	})

	t.Run("sorted follows filter order", func(t *testing.T) {
		rc := RejectionCounts{RejectNegativeEV: 2, RejectLowVIX: 1, RejectTheta: 0}
		assert.Equal(t, []ReasonCount{
			{Reason: RejectLowVIX, Count: 1},
			{Reason: RejectNegativeEV, Count: 2},
		}, rc.Sorted())
	})

	t.Run("clone is independent", func(t *testing.T) {
		rc := RejectionCounts{RejectIlliquid: 1}
		c := rc.Clone()
		c.Add(RejectIlliquid)
		assert.Equal(t, 1, rc[RejectIlliquid])
	})
}

func TestScreeningResult(t *testing.T) {
	r := ScreeningResult{Considered: 8, Passed: 2}
	assert.True(t, r.Empty())
	assert.Equal(t, 6, r.Rejected())
	assert.InDelta(t, 25.0, r.PassRate(), 1e-9)
	assert.Equal(t, 0.0, ScreeningResult{}.PassRate())
}
