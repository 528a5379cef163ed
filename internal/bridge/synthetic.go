package bridge

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"mt5-signal-engine/internal/marketdata"
)

// SymbolProfile parameterizes synthetic data for one symbol: a realistic base
// price, per-bar volatility and a mild directional drift.
type SymbolProfile struct {
	BasePrice  float64
	Volatility float64 // fraction of price per bar, e.g. 0.002
	TrendBias  float64 // -1..1, drift applied to each bar
	Spread     float64 // typical spread in price units
}

// defaultProfiles covers the majors plus metals and a couple of indices.
// Unknown symbols get a generic profile.
var defaultProfiles = map[string]SymbolProfile{
	"EURUSD": {BasePrice: 1.0850, Volatility: 0.0008, TrendBias: 0.05, Spread: 0.00012},
	"GBPUSD": {BasePrice: 1.2650, Volatility: 0.0010, TrendBias: 0.0, Spread: 0.00015},
	"USDJPY": {BasePrice: 149.50, Volatility: 0.0009, TrendBias: 0.1, Spread: 0.014},
	"USDCHF": {BasePrice: 0.8800, Volatility: 0.0007, TrendBias: -0.05, Spread: 0.00014},
	"AUDUSD": {BasePrice: 0.6550, Volatility: 0.0009, TrendBias: 0.0, Spread: 0.00014},
	"USDCAD": {BasePrice: 1.3600, Volatility: 0.0008, TrendBias: 0.0, Spread: 0.00016},
	"NZDUSD": {BasePrice: 0.6100, Volatility: 0.0010, TrendBias: 0.0, Spread: 0.00018},
	"EURJPY": {BasePrice: 162.20, Volatility: 0.0011, TrendBias: 0.05, Spread: 0.016},
	"GBPJPY": {BasePrice: 189.10, Volatility: 0.0014, TrendBias: 0.0, Spread: 0.022},
	"XAUUSD": {BasePrice: 2350.0, Volatility: 0.0015, TrendBias: 0.15, Spread: 0.30},
	"XAGUSD": {BasePrice: 28.50, Volatility: 0.0020, TrendBias: 0.1, Spread: 0.025},
	"US30":   {BasePrice: 39500.0, Volatility: 0.0012, TrendBias: 0.1, Spread: 2.5},
	"NAS100": {BasePrice: 18200.0, Volatility: 0.0016, TrendBias: 0.15, Spread: 1.8},
	"BTCUSD": {BasePrice: 68000.0, Volatility: 0.0040, TrendBias: 0.1, Spread: 25.0},
}

// ProfileFor returns the synthetic profile for a symbol, stripping common
// broker suffixes before lookup.
func ProfileFor(symbol string) SymbolProfile {
	base := strings.ToUpper(symbol)
	base = strings.TrimPrefix(base, "#")
	for _, suffix := range []string{"M", ".R", "_I", "-ECN", "PRO", ".A"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if p, ok := defaultProfiles[base]; ok {
		return p
	}
	return SymbolProfile{BasePrice: 100.0, Volatility: 0.0015, TrendBias: 0.0, Spread: 0.05}
}

// Synthesizer generates fallback candles when the bridge is unreachable. It
// holds only a seed; every Candles call derives its own generator from the
// seed, the symbol and the timeframe, so concurrent per-timeframe fetches
// never share a rand.Rand and a fixed seed always yields the same series for
// a given symbol and timeframe.
type Synthesizer struct {
	seed int64
}

// NewSynthesizer creates a synthesizer. The source is drawn once for the base
// seed so tests can pin it; a nil source gets a time seed.
func NewSynthesizer(src rand.Source) *Synthesizer {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Synthesizer{seed: src.Int63()}
}

// seriesSeed mixes the base seed with the symbol and bar duration so each
// (symbol, timeframe) pair gets an independent deterministic stream.
func (s *Synthesizer) seriesSeed(symbol string, tf marketdata.Timeframe) int64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	return s.seed ^ int64(h.Sum64()) ^ tf.Duration().Nanoseconds()
}

// Candles generates count bars for symbol at the given timeframe, ending at
// now. OHLC ordering invariants hold by construction: the high is lifted to
// at least max(open, close) and the low pushed to at most min(open, close).
func (s *Synthesizer) Candles(symbol string, tf marketdata.Timeframe, count int, now time.Time) []marketdata.Candle {
	profile := ProfileFor(symbol)
	barDur := tf.Duration()
	rng := rand.New(rand.NewSource(s.seriesSeed(symbol, tf)))

	candles := make([]marketdata.Candle, count)
	price := profile.BasePrice

	for i := 0; i < count; i++ {
		openTime := now.Add(-time.Duration(count-i) * barDur)

		open := price
		drift := profile.TrendBias * profile.Volatility * 0.5
		change := (rng.Float64()-0.5)*2*profile.Volatility + drift
		close := open * (1 + change)

		high := math.Max(open, close) * (1 + rng.Float64()*profile.Volatility*0.5)
		low := math.Min(open, close) * (1 - rng.Float64()*profile.Volatility*0.5)

		volume := 500 + rng.Float64()*2000

		candles[i] = marketdata.Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: openTime.Add(barDur).UnixMilli(),
		}
		price = close
	}

	return candles
}

// Quote derives a synthetic bid/ask around the last generated close.
func (s *Synthesizer) Quote(symbol string, lastClose float64) (bid, ask float64) {
	profile := ProfileFor(symbol)
	half := profile.Spread / 2
	return lastClose - half, lastClose + half
}
