package marketdata

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/metrics"
)

// RetryConfig controls retries of transient provider failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// BreakerSettings configures circuit breaker behavior
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// ResilienceSettings groups the retry, breaker and rate limit settings.
type ResilienceSettings struct {
	Retry             RetryConfig
	Breaker           BreakerSettings
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
}

// DefaultResilienceSettings returns the settings used when none are configured.
func DefaultResilienceSettings() ResilienceSettings {
	return ResilienceSettings{
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		Breaker: BreakerSettings{
			MaxRequests:  3,                // Allow 3 requests when half-open
			Interval:     60 * time.Second, // Reset counts every minute
			Timeout:      30 * time.Second, // Open circuit for 30 seconds
			MinRequests:  5,                // Minimum requests before tripping
			FailureRatio: 0.6,              // Trip if 60% failure rate
		},
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// ResilientProvider wraps a Provider with rate limiting, retries with
// jittered backoff, and a circuit breaker.
type ResilientProvider struct {
	inner    Provider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	retry    RetryConfig
	logger   logrus.FieldLogger
	recorder metrics.Recorder
}

// NewResilientProvider wraps inner. A nil recorder disables call metrics.
func NewResilientProvider(inner Provider, settings ResilienceSettings, logger logrus.FieldLogger, recorder metrics.Recorder) *ResilientProvider {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	log := logger.WithField("component", "market_data")

	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.Breaker.MaxRequests,
		Interval:    settings.Breaker.Interval,
		Timeout:     settings.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.Breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.Breaker.FailureRatio
		},
		// Missing symbols and the caller giving up say nothing about provider health
		IsSuccessful: func(err error) bool {
			var done *callerDoneError
			return err == nil ||
				errors.Is(err, ErrUnknownUnderlying) ||
				errors.Is(err, context.Canceled) ||
				errors.As(err, &done)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("Circuit breaker state changed")
		},
	}

	p := &ResilientProvider{
		inner:    inner,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
		retry:    settings.Retry,
		logger:   log,
		recorder: recorder,
	}
	if settings.RequestsPerSecond > 0 {
		burst := settings.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), burst)
	}
	return p
}

// VolatilityIndex fetches the VIX through the resilience chain.
func (p *ResilientProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	return execResilient(ctx, p, "volatility_index", func(ctx context.Context) (float64, error) {
		return p.inner.VolatilityIndex(ctx)
	})
}

// SpreadQuotes fetches quotes for underlying through the resilience chain.
func (p *ResilientProvider) SpreadQuotes(ctx context.Context, underlying string) ([]analyzer.SpreadQuote, error) {
	return execResilient(ctx, p, "spread_quotes", func(ctx context.Context) ([]analyzer.SpreadQuote, error) {
		return p.inner.SpreadQuotes(ctx, underlying)
	})
}

// BreakerState reports the current circuit breaker state.
func (p *ResilientProvider) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// execResilient runs fn behind the limiter and breaker, retrying transient
// failures.
func execResilient[T any](ctx context.Context, p *ResilientProvider, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	var lastErr error
	backoff := p.retry.InitialBackoff
	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			p.recorder.ObserveProviderCall(op, time.Since(start), err)
			return zero, fmt.Errorf("operation canceled: %w", err)
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.recorder.ObserveProviderCall(op, time.Since(start), err)
				return zero, fmt.Errorf("rate limiter: %w", err)
			}
		}

		v, err := execBreaker(ctx, p.breaker, fn)
		if err == nil {
			p.recorder.ObserveProviderCall(op, time.Since(start), nil)
			return v, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == p.retry.MaxRetries {
			break
		}
		p.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warnf("Transient error detected, retrying: %v", err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
			backoff = p.retry.nextBackoff(backoff)
		case <-ctx.Done():
			timer.Stop()
			p.recorder.ObserveProviderCall(op, time.Since(start), ctx.Err())
			return zero, fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
		}
	}

	p.recorder.ObserveProviderCall(op, time.Since(start), lastErr)
	return zero, fmt.Errorf("%s failed: %w", op, lastErr)
}

// callerDoneError marks a failure that happened after the caller's context
// was canceled or hit its deadline.
type callerDoneError struct {
	err error
}

func (e *callerDoneError) Error() string { return e.err.Error() }

func (e *callerDoneError) Unwrap() error { return e.err }

// execBreaker is a generic helper around gobreaker's untyped Execute.
func execBreaker[T any](ctx context.Context, breaker *gobreaker.CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) {
		v, err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return v, &callerDoneError{err: err}
		}
		return v, err
	})
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

func (c RetryConfig) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err == nil {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

var transientPatterns = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"temporary failure",
	"server error",
	"rate limit",
	"429", // HTTP 429 Too Many Requests
	"502", // HTTP 502 Bad Gateway
	"503", // HTTP 503 Service Unavailable
	"504", // HTTP 504 Gateway Timeout
	"network",
	"dns",
	"tcp",
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	// An open breaker fails fast until its timeout elapses
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrUnknownUnderlying) {
		return false
	}
	var done *callerDoneError
	if errors.As(err, &done) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
