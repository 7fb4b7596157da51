package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2025, 2, 14, 15, 0, 0, 0, time.UTC)
}

func seededMock(seed int64) *MockProvider {
	return NewMockProvider(MockOptions{
		Seed:       seed,
		Widths:     []float64{5},
		BasePrices: map[string]float64{"SPY": 450},
		MinDTE:     30,
		MaxDTE:     45,
		Now:        fixedNow,
	})
}

func TestMockProvider_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, err := seededMock(42).SpreadQuotes(ctx, "SPY")
	require.NoError(t, err)
	b, err := seededMock(42).SpreadQuotes(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	va, err := seededMock(42).VolatilityIndex(ctx)
	require.NoError(t, err)
	vb, err := seededMock(42).VolatilityIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestMockProvider_Quotes(t *testing.T) {
	m := seededMock(7)
	quotes, err := m.SpreadQuotes(context.Background(), "SPY")
	require.NoError(t, err)

	// 3 expiries, 2 sides, 6 strike steps, 1 width
	require.Len(t, quotes, 36)

	sides := map[models.SpreadType]int{}
	for _, q := range quotes {
		require.NoError(t, q.Validate(), "quote %+v", q)
		assert.Equal(t, "SPY", q.Underlying)
		assert.InDelta(t, 5.0, math.Abs(q.ShortStrike-q.LongStrike), 1e-9)
		assert.Contains(t, []int{30, 37, 45}, q.DTE)
		assert.Len(t, q.IVHistory, ivHistoryDays)
		assert.GreaterOrEqual(t, q.Volume, int64(50))
		assert.GreaterOrEqual(t, q.OpenInterest, int64(500))
		assert.LessOrEqual(t, q.BidAskCost, q.Credit)

		c, err := analyzer.BuildCandidate(q)
		require.NoError(t, err)
		sides[c.Type()]++
		if c.Type() == models.SpreadBullPut {
			assert.Less(t, q.ShortDelta, 0.0)
		} else {
			assert.Greater(t, q.ShortDelta, 0.0)
		}
	}
	assert.Equal(t, 18, sides[models.SpreadBullPut])
	assert.Equal(t, 18, sides[models.SpreadBearCall])
}

func TestMockProvider_VIXRangeAndStability(t *testing.T) {
	m := NewMockProvider(MockOptions{})
	v1, err := m.VolatilityIndex(context.Background())
	require.NoError(t, err)
	v2, err := m.VolatilityIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.GreaterOrEqual(t, v1, 12.0)
	assert.LessOrEqual(t, v1, 30.0)
}

func TestMockProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seededMock(1).SpreadQuotes(ctx, "SPY")
	assert.ErrorIs(t, err, context.Canceled)
}
