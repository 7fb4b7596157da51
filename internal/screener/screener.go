// Package screener runs candidates through filtering, scoring, ranking and
// recommendation building, for one batch or many underlyings at once.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/filter"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/marketdata"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/metrics"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/ranking"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/recommend"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/scoring"
)

const defaultWorkers = 4

// Screener wires the pipeline stages together. It holds only read-only
// configuration, so one Screener may serve concurrent calls.
type Screener struct {
	cfg      config.ScreeningConfig
	pipeline *filter.Pipeline
	ranker   *ranking.Ranker
	builder  *recommend.Builder
	logger   logrus.FieldLogger
	recorder metrics.Recorder
	workers  int
	gates    []filter.Gate
	scorer   *scoring.Scorer

	nearMisses int
}

// Option customizes a Screener.
type Option func(*Screener)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Screener) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Screener) { s.recorder = r }
}

// WithWorkers bounds how many underlyings ScreenMany processes at once.
func WithWorkers(n int) Option {
	return func(s *Screener) { s.workers = n }
}

// WithNearMisses keeps up to n rejected candidates per batch that failed
// exactly one filter, ranked by the score they would have had.
func WithNearMisses(n int) Option {
	return func(s *Screener) { s.nearMisses = n }
}

// WithGates replaces the canonical gate sequence.
func WithGates(gates []filter.Gate) Option {
	return func(s *Screener) { s.gates = gates }
}

// New returns a Screener for cfg.
func New(cfg config.ScreeningConfig, opts ...Option) *Screener {
	s := &Screener{
		cfg:      cfg,
		logger:   logrus.StandardLogger(),
		recorder: metrics.Noop{},
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.gates != nil {
		s.pipeline = filter.NewWithGates(cfg, s.gates)
	} else {
		s.pipeline = filter.New(cfg)
	}
	s.scorer = scoring.New(cfg)
	s.ranker = ranking.New(s.scorer, cfg.Thresholds().MaxRecommendations)
	s.builder = recommend.New(cfg)
	return s
}

// Screen filters, scores and ranks one batch of candidates. An empty result
// is not an error; the only error is cancellation of ctx.
func (s *Screener) Screen(ctx context.Context, candidates []models.Candidate, vix float64) (models.ScreeningResult, error) {
	return s.screen(ctx, uuid.NewString(), "", candidates, vix)
}

func (s *Screener) screen(ctx context.Context, runID, underlying string, candidates []models.Candidate, vix float64) (models.ScreeningResult, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{"run_id": runID, "underlying": underlying})

	rejections := models.NewRejectionCounts()
	var (
		passed   []models.Candidate
		rejected []models.Candidate
		errored  []models.FilterError
	)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return models.ScreeningResult{}, fmt.Errorf("screening canceled: %w", err)
		}
		v := s.pipeline.Evaluate(c, vix)
		if v.Passed() {
			passed = append(passed, c)
			continue
		}
		rejections.Add(v.Reason())
		if v.Err() == nil && s.nearMisses > 0 {
			rejected = append(rejected, c)
		}
		if v.Err() != nil {
			fe := models.FilterError{
				Gate:      v.Gate(),
				Reason:    v.Reason(),
				Candidate: c.String(),
				Message:   v.Err().Error(),
			}
			errored = append(errored, fe)
			log.WithField("gate", fe.Gate).Warnf("Filter failed, candidate rejected: %v", v.Err())
		}
	}

	result := models.ScreeningResult{
		RunID:           runID,
		Underlying:      underlying,
		VIX:             vix,
		Considered:      len(candidates),
		Passed:          len(passed),
		Recommendations: s.builder.BuildAll(s.ranker.Rank(passed)),
		Rejections:      rejections,
		FilterErrors:    errored,
		NearMisses:      s.findNearMisses(rejected, vix),
		Elapsed:         time.Since(start),
	}
	s.recorder.ObserveScreen(result)

	log.WithFields(logrus.Fields{
		"considered":      result.Considered,
		"passed":          result.Passed,
		"recommendations": len(result.Recommendations),
	}).Info("Screening complete")
	return result, nil
}

// findNearMisses traces every gate for the rejected candidates and keeps the
// best-scoring ones that failed a single gate.
func (s *Screener) findNearMisses(rejected []models.Candidate, vix float64) []models.NearMiss {
	if s.nearMisses <= 0 {
		return nil
	}
	var out []models.NearMiss
	for _, c := range rejected {
		var failed []filter.GateResult
		for _, r := range s.pipeline.Trace(c, vix) {
			if !r.Passed {
				failed = append(failed, r)
			}
		}
		if len(failed) != 1 || failed[0].Err != nil {
			continue
		}
		out = append(out, models.NearMiss{
			Candidate: c.String(),
			Gate:      failed[0].Gate,
			Reason:    failed[0].Reason,
			Score:     s.scorer.Score(c),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > s.nearMisses {
		out = out[:s.nearMisses]
	}
	return out
}

// ScreenMany screens each underlying's batch concurrently. Every batch keeps
// its own rejection counts; they are merged only after all batches finish.
// Recommendations holds the combined top list across underlyings.
func (s *Screener) ScreenMany(ctx context.Context, batches map[string][]models.Candidate, vix float64) (models.MultiResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	symbols := make([]string, 0, len(batches))
	for sym := range batches {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	results := make([]models.ScreeningResult, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			r, err := s.screen(gctx, runID, sym, batches[sym], vix)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.MultiResult{}, err
	}

	multi := models.MultiResult{
		RunID:       runID,
		VIX:         vix,
		Results:     make(map[string]models.ScreeningResult, len(symbols)),
		Underlyings: symbols,
		Rejections:  models.NewRejectionCounts(),
	}
	var recs []models.TradeRecommendation
	for i, sym := range symbols {
		r := results[i]
		multi.Results[sym] = r
		multi.Considered += r.Considered
		multi.Passed += r.Passed
		multi.Rejections.Merge(r.Rejections)
		recs = append(recs, r.Recommendations...)
	}
	multi.Recommendations = recommend.Combine(recs, s.cfg.Thresholds().MaxRecommendations)
	multi.Elapsed = time.Since(start)

	s.logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"underlyings": len(symbols),
		"considered":  multi.Considered,
		"passed":      multi.Passed,
	}).Info("Multi-underlying screening complete")
	return multi, nil
}

// ScreenProvider fetches the volatility index and quotes for symbols from p,
// builds candidates and screens them. Quotes that cannot form a valid
// candidate are logged and skipped. A symbol whose quotes cannot be fetched
// is skipped and recorded in ProviderErrors; symbols the provider does not
// know are skipped silently. Only a missing volatility index or a done ctx
// fails the run.
func (s *Screener) ScreenProvider(ctx context.Context, p marketdata.Provider, symbols []string) (models.MultiResult, error) {
	vix, err := p.VolatilityIndex(ctx)
	if err != nil {
		return models.MultiResult{}, fmt.Errorf("fetching volatility index: %w", err)
	}

	batches := make([][]models.Candidate, len(symbols))
	fetchErrs := make([]error, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			log := s.logger.WithField("underlying", sym)
			quotes, err := p.SpreadQuotes(gctx, sym)
			if errors.Is(err, marketdata.ErrUnknownUnderlying) {
				log.Warn("No market data for underlying, skipping")
				return nil
			}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return fmt.Errorf("fetching quotes for %s: %w", sym, ctxErr)
				}
				log.WithError(err).Error("Failed to fetch quotes, skipping underlying")
				fetchErrs[i] = err
				return nil
			}
			candidates, err := analyzer.BuildCandidates(quotes)
			if err != nil {
				log.Warnf("Skipped invalid quotes: %v", err)
			}
			batches[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.MultiResult{}, err
	}

	byUnderlying := make(map[string][]models.Candidate, len(symbols))
	var failed map[string]string
	for i, sym := range symbols {
		if fetchErrs[i] != nil {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[sym] = fetchErrs[i].Error()
			continue
		}
		if batches[i] != nil {
			byUnderlying[sym] = batches[i]
		}
	}
	multi, err := s.ScreenMany(ctx, byUnderlying, vix)
	if err != nil {
		return models.MultiResult{}, err
	}
	multi.ProviderErrors = failed
	return multi, nil
}
