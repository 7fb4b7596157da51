// Package dashboard serves screening runs and their latest results over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/marketdata"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/ranking"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/screener"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/storage"
)

// Server exposes the screener as a small JSON API.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	screener *screener.Screener
	provider marketdata.Provider
	store    storage.Interface
	gatherer prometheus.Gatherer
	logger   *logrus.Logger
	cfg      Config

	mu     sync.RWMutex
	latest *models.MultiResult
}

const (
	defaultMemoryRuns = 100
	defaultRunsLimit  = 20
)

// Config configures the server.
type Config struct {
	Addr           string
	AuthToken      string
	Symbols        []string // screened when a request names none
	RequestTimeout time.Duration
}

// RejectionView is one row of the rejection breakdown.
type RejectionView struct {
	Reason      models.RejectionReason `json:"reason"`
	Description string                 `json:"description"`
	Count       int                    `json:"count"`
	Share       float64                `json:"share_pct"`
}

// NewServer wires routes. A nil store keeps runs in memory; a nil gatherer
// disables /metrics.
func NewServer(cfg Config, sc *screener.Screener, provider marketdata.Provider, store storage.Interface, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if store == nil {
		store = storage.NewMemoryStorage(defaultMemoryRuns)
	}
	s := &Server{
		router:   chi.NewRouter(),
		screener: sc,
		provider: provider,
		store:    store,
		gatherer: gatherer,
		logger:   logger,
		cfg:      cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))

	if s.cfg.AuthToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Post("/api/screen", s.handleScreen)
	s.router.Get("/api/results/latest", s.handleLatest)
	s.router.Get("/api/results/latest/{symbol}", s.handleLatestUnderlying)
	s.router.Get("/api/rejections", s.handleRejections)
	s.router.Get("/api/runs", s.handleRuns)
	s.router.Get("/api/runs/{id}", s.handleRun)
	s.router.Get("/api/stats", s.handleStats)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.cfg.AuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting screening server on %s", s.cfg.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	s.writeJSON(w, http.StatusOK, health)
}

// handleScreen runs a screen. Query parameters: symbols (comma separated)
// and sort (score, ev, roc, theta, pop).
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	metric, err := ranking.ParseMetric(r.URL.Query().Get("sort"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	symbols := parseSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		symbols = s.cfg.Symbols
	}
	if len(symbols) == 0 {
		http.Error(w, "no symbols requested", http.StatusBadRequest)
		return
	}

	result, err := s.screener.ScreenProvider(r.Context(), s.provider, symbols)
	if err != nil {
		s.logger.WithError(err).Error("Screening request failed")
		http.Error(w, "Screening failed", http.StatusBadGateway)
		return
	}

	stored := result
	s.mu.Lock()
	s.latest = &stored
	s.mu.Unlock()

	// The response does not depend on the archive
	if err := s.store.SaveRun(stored); err != nil {
		s.logger.WithError(err).WithField("run_id", stored.RunID).Warn("Failed to archive screening run")
	}

	result.Recommendations = ranking.RecommendationsBy(result.Recommendations, metric)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.latestResult()
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleLatestUnderlying(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	latest, ok := s.latestResult()
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	res, found := latest.Results[symbol]
	if !found {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRejections(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.latestResult()
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	total := latest.Rejections.Total()
	views := make([]RejectionView, 0, len(latest.Rejections))
	for _, rc := range latest.Rejections.Sorted() {
		views = append(views, RejectionView{
			Reason:      rc.Reason,
			Description: rc.Reason.Description(),
			Count:       rc.Count,
			Share:       float64(rc.Count) / float64(total) * 100,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.store.Runs(limit))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Run(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to read run")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Statistics())
}

func (s *Server) latestResult() (models.MultiResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return models.MultiResult{}, false
	}
	return *s.latest, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func parseSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
