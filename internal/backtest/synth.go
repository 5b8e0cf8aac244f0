package backtest

import (
	"math"
	"math/rand"
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// Tick is one synchronized pair of quotes.
type Tick struct {
	ON domain.Quote
	PN domain.Quote
}

// ScenarioConfig shapes the generated series.
type ScenarioConfig struct {
	ONSymbol string
	PNSymbol string

	Ticks     int
	Seed      int64
	BasePrice float64

	// Volatility is the per-tick stddev of the common price factor, as a
	// fraction of price.
	Volatility float64

	// PremiumAmplitude is the peak PN premium over ON, in percent. The premium
	// follows a slow sine wave plus noise, so a full run sweeps through entry,
	// swap, and exit regimes.
	PremiumAmplitude float64

	// PremiumPeriod is the premium wave length in ticks.
	PremiumPeriod int

	// HalfSpreadPct is each side's half bid/ask spread in percent.
	HalfSpreadPct float64

	// Volume is the quoted volume per side.
	Volume int64

	Start    time.Time
	Interval time.Duration
}

// DefaultScenario returns a configuration that exercises the full decision
// cycle several times over 5000 ticks.
func DefaultScenario(onSymbol, pnSymbol string) ScenarioConfig {
	return ScenarioConfig{
		ONSymbol:         onSymbol,
		PNSymbol:         pnSymbol,
		Ticks:            5000,
		Seed:             42,
		BasePrice:        35.0,
		Volatility:       0.0008,
		PremiumAmplitude: 1.2,
		PremiumPeriod:    800,
		HalfSpreadPct:    0.01,
		Volume:           50000,
		Start:            time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		Interval:         30 * time.Second,
	}
}

// GenerateTicks produces a deterministic series for the given config. The ON
// leg follows a random walk; the PN leg carries the ON price times a premium
// that oscillates through positive and negative regimes.
func GenerateTicks(cfg ScenarioConfig) []Tick {
	rng := rand.New(rand.NewSource(cfg.Seed))

	ticks := make([]Tick, 0, cfg.Ticks)
	price := cfg.BasePrice
	ts := cfg.Start

	for i := 0; i < cfg.Ticks; i++ {
		price *= 1 + rng.NormFloat64()*cfg.Volatility
		if price < cfg.BasePrice*0.5 {
			price = cfg.BasePrice * 0.5
		}

		phase := 2 * math.Pi * float64(i) / float64(cfg.PremiumPeriod)
		premiumPct := cfg.PremiumAmplitude*math.Sin(phase) + rng.NormFloat64()*0.05
		pnPrice := price * (1 + premiumPct/100)

		ticks = append(ticks, Tick{
			ON: quoteAt(cfg.ONSymbol, price, cfg.HalfSpreadPct, cfg.Volume, ts),
			PN: quoteAt(cfg.PNSymbol, pnPrice, cfg.HalfSpreadPct, cfg.Volume, ts),
		})
		ts = ts.Add(cfg.Interval)
	}

	return ticks
}

func quoteAt(symbol string, mid, halfSpreadPct float64, volume int64, ts time.Time) domain.Quote {
	half := mid * halfSpreadPct / 100
	return domain.Quote{
		Symbol:    symbol,
		Bid:       mid - half,
		Ask:       mid + half,
		Last:      mid,
		Volume:    volume,
		Timestamp: ts,
	}
}
