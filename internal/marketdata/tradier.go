package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/util"
)

// StrikeMatchEpsilon is the tolerance used when pairing a short strike with
// its long leg.
const StrikeMatchEpsilon = 1e-3

const (
	tradierSandboxURL    = "https://sandbox.tradier.com/v1"
	tradierProductionURL = "https://api.tradier.com/v1"

	defaultTradierTimeout = 10 * time.Second
	defaultMaxShortDelta  = 0.30
	defaultHVWindow       = 20
	tradingDaysPerYear    = 252
	historyLookback       = 365 * 24 * time.Hour
)

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// TradierOptions configures the Tradier market-data provider.
type TradierOptions struct {
	APIKey  string
	Sandbox bool
	BaseURL string // overrides the sandbox/production default
	Timeout time.Duration

	Widths        []float64
	MinDTE        int
	MaxDTE        int
	MaxShortDelta float64 // short legs further in the money are skipped
	HVWindow      int     // trading days per realized volatility sample

	Client *http.Client
	Now    func() time.Time
}

// TradierProvider builds spread quotes from Tradier option chains. It only
// reads market data; it never places orders.
type TradierProvider struct {
	client  *http.Client
	apiKey  string
	baseURL string
	opts    TradierOptions
	logger  logrus.FieldLogger
}

// NewTradierProvider returns a provider configured by opts.
func NewTradierProvider(opts TradierOptions, logger logrus.FieldLogger) *TradierProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		if opts.Sandbox {
			baseURL = tradierSandboxURL
		} else {
			baseURL = tradierProductionURL
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTradierTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if len(opts.Widths) == 0 {
		opts.Widths = []float64{2, 5, 7}
	}
	if opts.MaxDTE <= 0 {
		opts.MinDTE, opts.MaxDTE = 20, 60
	}
	if opts.MaxShortDelta <= 0 {
		opts.MaxShortDelta = defaultMaxShortDelta
	}
	if opts.HVWindow < 2 {
		opts.HVWindow = defaultHVWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TradierProvider{
		client:  client,
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		logger:  logger.WithField("component", "tradier"),
	}
}

// Handle single-object vs array responses from Tradier
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

type optionChainResponse struct {
	Options struct {
		Option singleOrArray[chainOption] `json:"option"`
	} `json:"options"`
}

type chainOption struct {
	Greeks       *optionGreeks `json:"greeks,omitempty"`
	Symbol       string        `json:"symbol"`
	OptionType   string        `json:"option_type"`
	Bid          float64       `json:"bid"`
	Ask          float64       `json:"ask"`
	Volume       int64         `json:"volume"`
	OpenInterest int64         `json:"open_interest"`
	Strike       float64       `json:"strike"`
}

func (o chainOption) mid() float64 {
	return (o.Bid + o.Ask) / 2
}

type optionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	MidIV float64 `json:"mid_iv"`
}

type quotesResponse struct {
	Quotes struct {
		Quote singleOrArray[quoteItem] `json:"quote"`
	} `json:"quotes"`
}

type quoteItem struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	PrevClose float64 `json:"prevclose"`
}

// price prefers the last trade, then the mid, then the previous close.
func (q quoteItem) price() float64 {
	switch {
	case q.Last > 0:
		return q.Last
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	default:
		return q.PrevClose
	}
}

type expirationsResponse struct {
	Expirations struct {
		Date singleOrArray[string] `json:"date"`
	} `json:"expirations"`
}

type historyResponse struct {
	History struct {
		Day singleOrArray[struct {
			Date  string  `json:"date"`
			Close float64 `json:"close"`
		}] `json:"day"`
	} `json:"history"`
}

// VolatilityIndex returns the last VIX print.
func (p *TradierProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	q, err := p.quote(ctx, "VIX")
	if err != nil {
		return 0, err
	}
	if q == nil || q.price() <= 0 {
		return 0, errors.New("no VIX quote available")
	}
	return q.price(), nil
}

// SpreadQuotes pairs strikes from every expiration inside the DTE range into
// bull put and bear call spreads of the configured widths.
func (p *TradierProvider) SpreadQuotes(ctx context.Context, underlying string) ([]analyzer.SpreadQuote, error) {
	symbol := strings.ToUpper(strings.TrimSpace(underlying))
	q, err := p.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if q == nil || q.price() <= 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownUnderlying)
	}
	spot := q.price()

	expirations, err := p.expirations(ctx, symbol)
	if err != nil {
		return nil, err
	}

	history, err := p.volatilityHistory(ctx, symbol)
	if err != nil {
		// Percentiles fall back to neutral without history
		p.logger.WithError(err).WithField("underlying", symbol).Warn("Failed to load volatility history")
	}

	today := truncateDay(p.opts.Now())
	var quotes []analyzer.SpreadQuote
	for _, exp := range expirations {
		expDate, err := time.Parse("2006-01-02", exp)
		if err != nil {
			p.logger.WithField("expiration", exp).Debug("Skipping unparseable expiration")
			continue
		}
		dte := int(expDate.Sub(today).Hours() / 24)
		if dte < p.opts.MinDTE || dte > p.opts.MaxDTE {
			continue
		}
		chain, err := p.chain(ctx, symbol, exp)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, pairSpreads(chain, spreadContext{
			underlying:    symbol,
			expiry:        exp,
			dte:           dte,
			spot:          spot,
			widths:        p.opts.Widths,
			maxShortDelta: p.opts.MaxShortDelta,
			ivHistory:     history,
		})...)
	}

	p.logger.WithFields(logrus.Fields{
		"underlying": symbol,
		"spot":       spot,
		"quotes":     len(quotes),
	}).Debug("Built spread quotes")
	return quotes, nil
}

type spreadContext struct {
	underlying    string
	expiry        string
	dte           int
	spot          float64
	widths        []float64
	maxShortDelta float64
	ivHistory     []float64
}

// pairSpreads builds every out-of-the-money credit spread the chain can
// fill. Legs without Greeks or two-sided markets are skipped.
func pairSpreads(chain []chainOption, sc spreadContext) []analyzer.SpreadQuote {
	bySide := map[string][]chainOption{}
	for _, o := range chain {
		if o.Greeks == nil || o.Bid <= 0 || o.Ask <= 0 {
			continue
		}
		bySide[o.OptionType] = append(bySide[o.OptionType], o)
	}

	var out []analyzer.SpreadQuote
	for _, side := range []string{"put", "call"} {
		legs := bySide[side]
		sort.Slice(legs, func(i, j int) bool { return legs[i].Strike < legs[j].Strike })
		for _, short := range legs {
			if math.Abs(short.Greeks.Delta) > sc.maxShortDelta {
				continue
			}
			if side == "put" && short.Strike >= sc.spot {
				continue
			}
			if side == "call" && short.Strike <= sc.spot {
				continue
			}
			for _, width := range sc.widths {
				target := short.Strike - width
				if side == "call" {
					target = short.Strike + width
				}
				long, ok := findStrike(legs, target)
				if !ok {
					continue
				}
				if q, ok := buildSpread(short, long, width, sc); ok {
					out = append(out, q)
				}
			}
		}
	}
	return out
}

func findStrike(legs []chainOption, strike float64) (chainOption, bool) {
	for _, o := range legs {
		if math.Abs(o.Strike-strike) < StrikeMatchEpsilon {
			return o, true
		}
	}
	return chainOption{}, false
}

// buildSpread nets a short and long leg into one quote. Leg Greeks are per
// share for a long position; theta is scaled to dollars per contract.
func buildSpread(short, long chainOption, width float64, sc spreadContext) (analyzer.SpreadQuote, bool) {
	credit := util.RoundToTick(short.mid()-long.mid(), 0.01)
	if credit <= 0 || credit >= width {
		return analyzer.SpreadQuote{}, false
	}
	// Crossing half of each leg's market
	slippage := ((short.Ask - short.Bid) + (long.Ask - long.Bid)) / 2
	cost := util.RoundToTick(slippage, 0.01)

	return analyzer.SpreadQuote{
		Underlying:   sc.underlying,
		Expiry:       sc.expiry,
		ShortStrike:  short.Strike,
		LongStrike:   long.Strike,
		Credit:       credit,
		BidAskCost:   cost,
		ShortDelta:   short.Greeks.Delta,
		Theta:        util.RoundToTick((long.Greeks.Theta-short.Greeks.Theta)*100, 0.01),
		Gamma:        math.Abs(long.Greeks.Gamma - short.Greeks.Gamma),
		Vega:         long.Greeks.Vega - short.Greeks.Vega,
		IV:           short.Greeks.MidIV,
		Quality:      models.QualityFromCostPct(analyzer.SlippagePct(cost, credit)),
		IVHistory:    sc.ivHistory,
		Volume:       min(short.Volume, long.Volume),
		OpenInterest: min(short.OpenInterest, long.OpenInterest),
		DTE:          sc.dte,
	}, true
}

func (p *TradierProvider) quote(ctx context.Context, symbol string) (*quoteItem, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("greeks", "false")

	var response quotesResponse
	if err := p.get(ctx, "/markets/quotes", params, &response); err != nil {
		return nil, err
	}
	if len(response.Quotes.Quote) == 0 {
		return nil, nil
	}
	first := response.Quotes.Quote[0]
	return &first, nil
}

func (p *TradierProvider) expirations(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("includeAllRoots", "true")
	params.Set("strikes", "false")

	var response expirationsResponse
	if err := p.get(ctx, "/markets/options/expirations", params, &response); err != nil {
		return nil, err
	}
	return []string(response.Expirations.Date), nil
}

func (p *TradierProvider) chain(ctx context.Context, symbol, expiration string) ([]chainOption, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", "true")

	var response optionChainResponse
	if err := p.get(ctx, "/markets/options/chains", params, &response); err != nil {
		return nil, err
	}
	return []chainOption(response.Options.Option), nil
}

// volatilityHistory returns a year of rolling realized volatility, used as
// the reference distribution for implied volatility percentiles.
func (p *TradierProvider) volatilityHistory(ctx context.Context, symbol string) ([]float64, error) {
	end := p.opts.Now()
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("start", end.Add(-historyLookback).Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))

	var response historyResponse
	if err := p.get(ctx, "/markets/history", params, &response); err != nil {
		return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}
	closes := make([]float64, 0, len(response.History.Day))
	for _, d := range response.History.Day {
		if d.Close > 0 {
			closes = append(closes, d.Close)
		}
	}
	return RealizedVolatility(closes, p.opts.HVWindow), nil
}

// RealizedVolatility returns annualized rolling volatility of daily log
// returns over window-day samples. Too few closes yields nil.
func RealizedVolatility(closes []float64, window int) []float64 {
	if window < 2 || len(closes) <= window {
		return nil
	}
	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns[i-1] = math.Log(closes[i] / closes[i-1])
	}
	out := make([]float64, 0, len(returns)-window+1)
	for i := window; i <= len(returns); i++ {
		sd, err := stats.StandardDeviationSample(returns[i-window : i])
		if err != nil {
			continue
		}
		out = append(out, sd*math.Sqrt(tradingDaysPerYear))
	}
	return out
}

// get issues an authenticated GET and decodes the JSON body into response.
func (p *TradierProvider) get(ctx context.Context, path string, params url.Values, response interface{}) error {
	endpoint := p.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+p.apiKey)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "credit-spread-optimizer/1.0 (+tradier)")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.WithError(err).Debug("Failed to close response body")
		}
	}()

	if remaining := resp.Header.Get("X-Ratelimit-Available"); remaining != "" {
		p.logger.WithField("remaining", remaining).Debug("Rate limit")
	}

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> failed to read error body", path)}
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> %s (retry-after: %s)", path, string(body), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> %s", path, string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
