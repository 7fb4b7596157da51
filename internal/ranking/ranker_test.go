package ranking

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/scoring"
)

func scored(id string, score float64) Scored {
	return Scored{Candidate: models.Candidate{Underlying: id}, Score: score}
}

func ids(items []Scored) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.Candidate.Underlying
	}
	return out
}

func TestRank_StableDescending(t *testing.T) {
	in := []Scored{
		scored("a", 50),
		scored("b", 70),
		scored("c", 50),
		scored("d", 90),
		scored("e", 70),
		scored("f", 50),
	}
	got := Rank(in, 0)
	assert.Equal(t, []string{"d", "b", "e", "a", "c", "f"}, ids(got))
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, ids(in), "input must not be reordered")
}

func TestRank_AllTied(t *testing.T) {
	in := []Scored{scored("x", 10), scored("y", 10), scored("z", 10)}
	assert.Equal(t, []string{"x", "y"}, ids(Rank(in, 2)))
}

func TestRank_Length(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for n := 0; n < 12; n++ {
		items := make([]Scored, n)
		for i := range items {
			items[i] = scored(string(rune('a'+i)), float64(r.Intn(5)))
		}
		for _, limit := range []int{1, 3, 5, 20} {
			got := Rank(items, limit)
			want := limit
			if n < limit {
				want = n
			}
			require.Len(t, got, want, "n=%d limit=%d", n, limit)
			assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Score > got[j].Score }))
		}
	}
}

func TestRank_TiesPreserveInputOrderUnderRandomInput(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	items := make([]Scored, 200)
	for i := range items {
		items[i] = Scored{Candidate: models.Candidate{DaysToExpiration: i}, Score: float64(r.Intn(4))}
	}
	got := Rank(items, 0)
	for i := 1; i < len(got); i++ {
		if got[i].Score == got[i-1].Score {
			assert.Less(t, got[i-1].Candidate.DaysToExpiration, got[i].Candidate.DaysToExpiration)
		}
	}
}

func TestRanker_ScoresAndSelects(t *testing.T) {
	cfg := config.DefaultScreeningConfig()
	r := New(scoring.New(cfg), 2)

	mk := func(id string, ev float64) models.Candidate {
		return models.Candidate{Underlying: id, ExpectedValue: ev, Credit: 1, MaxLoss: 400, IVPercentile: 50}
	}
	got := r.Rank([]models.Candidate{mk("low", 1), mk("high", 30), mk("mid", 10)})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"high", "mid"}, ids(got))
	assert.Equal(t, got[0].Breakdown.Composite, got[0].Score)
	assert.Empty(t, r.Rank(nil))
}

func TestRecommendationsBy_Metrics(t *testing.T) {
	recs := []models.TradeRecommendation{
		{Candidate: models.Candidate{Underlying: "a", ExpectedValue: 5, ProbabilityOfProfit: 0.9, ReturnOnCapital: 1}, Score: 80},
		{Candidate: models.Candidate{Underlying: "b", ExpectedValue: 20, ProbabilityOfProfit: 0.7, ReturnOnCapital: 8}, Score: 60},
		{Candidate: models.Candidate{Underlying: "c", ExpectedValue: 20, ProbabilityOfProfit: 0.8, ReturnOnCapital: 4, Theta: 10, MaxLoss: 100}, Score: 70},
	}
	order := func(m Metric) []string {
		var out []string
		for _, r := range RecommendationsBy(recs, m) {
			out = append(out, r.Candidate.Underlying)
		}
		return out
	}
	assert.Equal(t, []string{"a", "c", "b"}, order(ByScore))
	assert.Equal(t, []string{"b", "c", "a"}, order(ByExpectedValue))
	assert.Equal(t, []string{"b", "c", "a"}, order(ByROC))
	assert.Equal(t, []string{"a", "c", "b"}, order(ByPOP))
	assert.Equal(t, []string{"c", "a", "b"}, order(ByTheta))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("ROC")
	require.NoError(t, err)
	assert.Equal(t, ByROC, m)

	m, err = ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, ByScore, m)

	_, err = ParseMetric("vega")
	assert.Error(t, err)
}

func TestRecommendationsBy(t *testing.T) {
	recs := []models.TradeRecommendation{
		{Candidate: models.Candidate{Underlying: "a", ExpectedValue: 5}, Score: 80, Rank: 1},
		{Candidate: models.Candidate{Underlying: "b", ExpectedValue: 20}, Score: 60, Rank: 2},
	}
	got := RecommendationsBy(recs, ByExpectedValue)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Candidate.Underlying)
	assert.Equal(t, 2, got[0].Rank, "display order keeps the score rank")
	assert.Equal(t, "a", recs[0].Candidate.Underlying)
}
