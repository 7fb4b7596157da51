package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/marketdata"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/metrics"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/screener"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/storage"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	return newTestServerWithStore(t, token, nil)
}

func newTestServerWithStore(t *testing.T, token string, store storage.Interface) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	provider := marketdata.WithVIX(marketdata.NewMockProvider(marketdata.MockOptions{
		Seed:       5,
		BasePrices: map[string]float64{"SPY": 450, "QQQ": 380},
		MinDTE:     30,
		MaxDTE:     45,
	}), 20)
	sc := screener.New(config.DefaultScreeningConfig(), screener.WithLogger(logger), screener.WithRecorder(rec))

	return NewServer(Config{AuthToken: token, Symbols: []string{"SPY"}}, sc, provider, store, reg, logger)
}

func do(s *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret")
	rr := do(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	rr := do(s, http.MethodGet, "/api/results/latest", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(s, http.MethodGet, "/api/results/latest", map[string]string{"X-Auth-Token": "secret"})
	assert.Equal(t, http.StatusNotFound, rr.Code, "authorized but nothing screened yet")

	rr = do(s, http.MethodGet, "/api/results/latest?token=secret", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScreenAndLatest(t *testing.T) {
	s := newTestServer(t, "")

	rr := do(s, http.MethodPost, "/api/screen?symbols=spy,qqq&sort=ev", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got models.MultiResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, []string{"QQQ", "SPY"}, got.Underlyings)
	assert.Equal(t, 20.0, got.VIX)
	assert.Equal(t, got.Considered-got.Passed, got.Rejections.Total())
	for i := 1; i < len(got.Recommendations); i++ {
		assert.GreaterOrEqual(t, got.Recommendations[i-1].Candidate.ExpectedValue, got.Recommendations[i].Candidate.ExpectedValue)
	}

	rr = do(s, http.MethodGet, "/api/results/latest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var latest models.MultiResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
	assert.Equal(t, got.RunID, latest.RunID)

	rr = do(s, http.MethodGet, "/api/results/latest/spy", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var spy models.ScreeningResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &spy))
	assert.Equal(t, "SPY", spy.Underlying)

	rr = do(s, http.MethodGet, "/api/results/latest/TSLA", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(s, http.MethodGet, "/api/rejections", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var views []RejectionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	total := 0
	for i, v := range views {
		total += v.Count
		assert.NotEmpty(t, v.Description)
		if i > 0 {
			assert.Less(t, views[i-1].Reason.Ordinal(), v.Reason.Ordinal())
		}
	}
	assert.Equal(t, latest.Rejections.Total(), total)

	rr = do(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cso_candidates_considered_total")
}

func TestScreen_DefaultSymbolsAndBadSort(t *testing.T) {
	s := newTestServer(t, "")

	rr := do(s, http.MethodPost, "/api/screen?sort=vega", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(s, http.MethodPost, "/api/screen", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got models.MultiResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, []string{"SPY"}, got.Underlyings)
}

func TestRunArchive(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	s := newTestServerWithStore(t, "", store)

	rr := do(s, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	var ids []string
	for i := 0; i < 2; i++ {
		rr = do(s, http.MethodPost, "/api/screen?symbols=SPY", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var got models.MultiResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		ids = append(ids, got.RunID)
	}

	rr = do(s, http.MethodGet, "/api/runs?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []storage.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, ids[1], runs[0].ID)

	rr = do(s, http.MethodGet, "/api/runs/"+ids[0], nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var run storage.StoredRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, ids[0], run.Result.RunID)

	rr = do(s, http.MethodGet, "/api/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(s, http.MethodGet, "/api/runs?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats storage.Statistics
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalRuns)
}

func TestScreen_ArchiveFailureIsNotFatal(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	store.SaveErr = errors.New("disk full")
	s := newTestServerWithStore(t, "", store)

	rr := do(s, http.MethodPost, "/api/screen", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, store.Runs(0))

	rr = do(s, http.MethodGet, "/api/results/latest", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"SPY", "QQQ"}, parseSymbols(" spy, ,qqq "))
	assert.Empty(t, parseSymbols(""))
}
