package marketdata

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// QuoteRow is one spread in a quotes CSV file.
type QuoteRow struct {
	Underlying   string  `csv:"underlying" validate:"required"`
	Expiry       string  `csv:"expiry" validate:"required,datetime=2006-01-02"`
	ShortStrike  float64 `csv:"short_strike" validate:"gt=0"`
	LongStrike   float64 `csv:"long_strike" validate:"gt=0,nefield=ShortStrike"`
	Credit       float64 `csv:"credit" validate:"gt=0"`
	BidAskCost   float64 `csv:"bid_ask_cost" validate:"gte=0"`
	ShortDelta   float64 `csv:"short_delta" validate:"gte=-1,lte=1"`
	Theta        float64 `csv:"theta"`
	Gamma        float64 `csv:"gamma"`
	Vega         float64 `csv:"vega"`
	IV           float64 `csv:"iv" validate:"gte=0"`
	IVPercentile string  `csv:"iv_percentile" validate:"omitempty,numeric"`
	Volume       int64   `csv:"volume" validate:"gte=0"`
	OpenInterest int64   `csv:"open_interest" validate:"gte=0"`
	DTE          int     `csv:"dte" validate:"gte=0"`
	Quality      string  `csv:"quality" validate:"omitempty,oneof=excellent good acceptable poor avoid"`
}

// IVRow is one historical implied volatility reading.
type IVRow struct {
	Symbol string  `csv:"symbol" validate:"required"`
	Date   string  `csv:"date" validate:"required,datetime=2006-01-02"`
	IV     float64 `csv:"iv" validate:"gt=0"`
}

// CSVProvider serves quotes loaded from CSV files. Rows that fail
// validation are skipped and logged.
type CSVProvider struct {
	quotes  map[string][]analyzer.SpreadQuote
	skipped int
}

// LoadCSVProvider reads the quotes file and, when ivHistoryPath is not
// empty, the IV history file.
func LoadCSVProvider(quotesPath, ivHistoryPath string, logger logrus.FieldLogger) (*CSVProvider, error) {
	qf, err := os.Open(quotesPath) // #nosec G304 -- path comes from the user's config
	if err != nil {
		return nil, fmt.Errorf("opening quotes file: %w", err)
	}
	defer qf.Close()

	var ivr io.Reader
	if ivHistoryPath != "" {
		hf, err := os.Open(ivHistoryPath) // #nosec G304 -- path comes from the user's config
		if err != nil {
			return nil, fmt.Errorf("opening iv history file: %w", err)
		}
		defer hf.Close()
		ivr = hf
	}
	return NewCSVProvider(qf, ivr, logger)
}

// NewCSVProvider parses quotes and optional IV history from readers.
func NewCSVProvider(quotes io.Reader, ivHistory io.Reader, logger logrus.FieldLogger) (*CSVProvider, error) {
	validate := validator.New()

	history := map[string][]float64{}
	if ivHistory != nil {
		var rows []IVRow
		if err := gocsv.Unmarshal(ivHistory, &rows); err != nil {
			return nil, fmt.Errorf("parsing iv history: %w", err)
		}
		history = groupHistory(rows, validate, logger)
	}

	var rows []QuoteRow
	if err := gocsv.Unmarshal(quotes, &rows); err != nil {
		return nil, fmt.Errorf("parsing quotes: %w", err)
	}

	p := &CSVProvider{quotes: make(map[string][]analyzer.SpreadQuote)}
	for i, row := range rows {
		if err := validate.Struct(row); err != nil {
			p.skipped++
			// header is line 1
			logger.WithFields(logrus.Fields{"line": i + 2, "underlying": row.Underlying}).
				Warnf("Skipping invalid quote row: %v", err)
			continue
		}
		q := row.toQuote()
		q.IVHistory = history[q.Underlying]
		p.quotes[q.Underlying] = append(p.quotes[q.Underlying], q)
	}
	return p, nil
}

// groupHistory orders readings by date per symbol.
func groupHistory(rows []IVRow, validate *validator.Validate, logger logrus.FieldLogger) map[string][]float64 {
	valid := make([]IVRow, 0, len(rows))
	for i, r := range rows {
		if err := validate.Struct(r); err != nil {
			logger.WithField("line", i+2).Warnf("Skipping invalid iv history row: %v", err)
			continue
		}
		r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
		valid = append(valid, r)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Date < valid[j].Date })

	out := make(map[string][]float64)
	for _, r := range valid {
		out[r.Symbol] = append(out[r.Symbol], r.IV)
	}
	return out
}

func (r QuoteRow) toQuote() analyzer.SpreadQuote {
	q := analyzer.SpreadQuote{
		Underlying:   strings.ToUpper(strings.TrimSpace(r.Underlying)),
		Expiry:       r.Expiry,
		ShortStrike:  r.ShortStrike,
		LongStrike:   r.LongStrike,
		Credit:       r.Credit,
		BidAskCost:   r.BidAskCost,
		ShortDelta:   r.ShortDelta,
		Theta:        r.Theta,
		Gamma:        r.Gamma,
		Vega:         r.Vega,
		IV:           r.IV,
		Volume:       r.Volume,
		OpenInterest: r.OpenInterest,
		DTE:          r.DTE,
		Quality:      models.ParseSpreadQuality(r.Quality),
	}
	if r.IVPercentile != "" {
		if v, err := strconv.ParseFloat(r.IVPercentile, 64); err == nil {
			q.IVPercentile = &v
		}
	}
	return q
}

// VolatilityIndex is not available from a quotes file; wrap the provider
// with WithVIX.
func (p *CSVProvider) VolatilityIndex(context.Context) (float64, error) {
	return 0, fmt.Errorf("csv provider has no volatility index: set market_data.vix")
}

// SpreadQuotes returns the quotes loaded for underlying.
func (p *CSVProvider) SpreadQuotes(ctx context.Context, underlying string) ([]analyzer.SpreadQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qs, ok := p.quotes[strings.ToUpper(underlying)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", underlying, ErrUnknownUnderlying)
	}
	out := make([]analyzer.SpreadQuote, len(qs))
	copy(out, qs)
	return out, nil
}

// Underlyings returns the symbols present in the file, sorted.
func (p *CSVProvider) Underlyings() []string {
	out := make([]string, 0, len(p.quotes))
	for u := range p.quotes {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Skipped returns the number of quote rows rejected during loading.
func (p *CSVProvider) Skipped() int {
	return p.skipped
}

// WriteQuotesCSV writes quotes in the format NewCSVProvider reads.
func WriteQuotesCSV(w io.Writer, quotes []analyzer.SpreadQuote) error {
	rows := make([]QuoteRow, len(quotes))
	for i, q := range quotes {
		rows[i] = QuoteRow{
			Underlying:   q.Underlying,
			Expiry:       q.Expiry,
			ShortStrike:  q.ShortStrike,
			LongStrike:   q.LongStrike,
			Credit:       q.Credit,
			BidAskCost:   q.BidAskCost,
			ShortDelta:   q.ShortDelta,
			Theta:        q.Theta,
			Gamma:        q.Gamma,
			Vega:         q.Vega,
			IV:           q.IV,
			Volume:       q.Volume,
			OpenInterest: q.OpenInterest,
			DTE:          q.DTE,
			Quality:      string(q.Quality),
		}
		if q.IVPercentile != nil {
			rows[i].IVPercentile = strconv.FormatFloat(*q.IVPercentile, 'f', -1, 64)
		} else if len(q.IVHistory) > 0 {
			rows[i].IVPercentile = strconv.FormatFloat(analyzer.IVPercentile(q.IV, q.IVHistory), 'f', 2, 64)
		}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing quotes csv: %w", err)
	}
	return nil
}
