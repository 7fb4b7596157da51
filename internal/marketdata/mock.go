package marketdata

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	mrand "math/rand"
	"sort"
	"sync"
	"time"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/analyzer"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/util"
)

const (
	ivHistoryDays   = 252
	strikeSteps     = 6
	strikeStepPct   = 0.02
	deltaDecayScale = 12.0
)

// randSource is the subset of math/rand used by the generator.
type randSource interface {
	Float64() float64
	Int63n(n int64) int64
}

// cryptoSource draws from crypto/rand.
type cryptoSource struct{}

// Float64 generates a cryptographically secure random float64 in [0,1)
func (cryptoSource) Float64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// Int63n generates a cryptographically secure random int64 in [0,n)
func (cryptoSource) Int63n(n int64) int64 {
	r, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return n / 2
	}
	return r.Int64()
}

// MockOptions configures synthetic chain generation.
type MockOptions struct {
	Seed       int64 // 0 draws from crypto/rand
	Widths     []float64
	BasePrices map[string]float64
	MinDTE     int
	MaxDTE     int
	Now        func() time.Time
}

// MockProvider generates bull put and bear call chains around a spot price.
// With a non-zero seed its output is reproducible.
type MockProvider struct {
	mu     sync.Mutex
	rng    randSource
	opts   MockOptions
	spots  map[string]float64
	ivLvl  map[string]float64
	vix    float64
	hasVIX bool
}

// NewMockProvider returns a generator configured by opts.
func NewMockProvider(opts MockOptions) *MockProvider {
	var rng randSource = cryptoSource{}
	if opts.Seed != 0 {
		rng = mrand.New(mrand.NewSource(opts.Seed))
	}
	if len(opts.Widths) == 0 {
		opts.Widths = []float64{2, 5, 7}
	}
	if opts.MaxDTE <= 0 {
		opts.MinDTE, opts.MaxDTE = 20, 60
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MockProvider{
		rng:   rng,
		opts:  opts,
		spots: make(map[string]float64),
		ivLvl: make(map[string]float64),
	}
}

// VolatilityIndex returns a VIX level between 12 and 30, stable for the
// lifetime of the provider.
func (m *MockProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasVIX {
		m.vix = util.RoundToTick(12+m.rng.Float64()*18, 0.01)
		m.hasVIX = true
	}
	return m.vix, nil
}

// SpreadQuotes generates quotes for every width, expiry and strike distance,
// on both sides of the market.
func (m *MockProvider) SpreadQuotes(ctx context.Context, underlying string) ([]analyzer.SpreadQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	spot := m.spot(underlying)
	level := m.ivLevel(underlying)
	history := make([]float64, ivHistoryDays)
	for i := range history {
		history[i] = level * (0.6 + m.rng.Float64()*0.8)
	}
	currentIV := level * (0.8 + m.rng.Float64()*0.6)

	var quotes []analyzer.SpreadQuote
	for _, dte := range m.expiries() {
		expiry := m.opts.Now().AddDate(0, 0, dte).Format("2006-01-02")
		for _, typ := range []models.SpreadType{models.SpreadBullPut, models.SpreadBearCall} {
			for i := 1; i <= strikeSteps; i++ {
				for _, width := range m.opts.Widths {
					quotes = append(quotes, m.quote(underlying, expiry, typ, spot, width, float64(i)*strikeStepPct, dte, currentIV, history))
				}
			}
		}
	}
	return quotes, nil
}

func (m *MockProvider) quote(underlying, expiry string, typ models.SpreadType, spot, width, distPct float64, dte int, iv float64, history []float64) analyzer.SpreadQuote {
	short := util.RoundToTick(spot*(1-distPct), 1)
	long := short - width
	if typ == models.SpreadBearCall {
		short = util.RoundToTick(spot*(1+distPct), 1)
		long = short + width
	}

	// Delta decays exponentially with distance from spot
	distance := math.Abs(short-spot) / spot
	delta := 0.5 * math.Exp(-distance*deltaDecayScale)
	if typ == models.SpreadBullPut {
		delta = -delta
	}

	creditFrac := util.Clamp(math.Abs(delta)*1.1+(m.rng.Float64()-0.5)*0.08, 0.05, 0.6)
	credit := util.RoundToTick(width*creditFrac, 0.01)
	if credit <= 0 {
		credit = 0.01
	}
	slippage := util.RoundToTick(credit*(0.01+m.rng.Float64()*0.07), 0.01)

	theta := credit * models.ContractMultiplier / float64(max(dte, 1)) * (0.6 + m.rng.Float64()*0.6)
	gamma := 0.005 + m.rng.Float64()*0.03
	if dte < 7 {
		gamma *= 4
	}

	return analyzer.SpreadQuote{
		Underlying:   underlying,
		Expiry:       expiry,
		ShortStrike:  short,
		LongStrike:   long,
		Credit:       credit,
		BidAskCost:   slippage,
		ShortDelta:   delta,
		Theta:        util.RoundToTick(theta, 0.01),
		Gamma:        gamma,
		Vega:         -(0.05 + m.rng.Float64()*0.1),
		IV:           iv,
		IVHistory:    history,
		Volume:       50 + m.rng.Int63n(2000),
		OpenInterest: 500 + m.rng.Int63n(10000),
		DTE:          dte,
	}
}

// expiries spreads three expirations across the configured DTE range.
func (m *MockProvider) expiries() []int {
	lo, hi := m.opts.MinDTE, m.opts.MaxDTE
	set := map[int]struct{}{lo: {}, (lo + hi) / 2: {}, hi: {}}
	out := make([]int, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func (m *MockProvider) spot(underlying string) float64 {
	if s, ok := m.spots[underlying]; ok {
		return s
	}
	s, ok := m.opts.BasePrices[underlying]
	if !ok || s <= 0 {
		s = 50 + m.rng.Float64()*400
	}
	// Simulate a small move off the base price
	s = util.RoundToTick(s*(1+(m.rng.Float64()-0.5)*0.02), 0.01)
	m.spots[underlying] = s
	return s
}

func (m *MockProvider) ivLevel(underlying string) float64 {
	if l, ok := m.ivLvl[underlying]; ok {
		return l
	}
	l := 0.15 + m.rng.Float64()*0.25
	m.ivLvl[underlying] = l
	return l
}
