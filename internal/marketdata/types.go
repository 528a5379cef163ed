package marketdata

import (
	"time"
)

// Timeframe represents a chart timeframe
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
)

// DefaultTimeframes is the standard set the engine analyzes, lowest first.
var DefaultTimeframes = []Timeframe{TF5m, TF15m, TF30m, TF1h, TF4h}

// Duration returns the bar duration for the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF30m:
		return 30 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	default:
		return time.Minute
	}
}

// Candle represents a single OHLCV bar.
// Invariant: High >= max(Open, Close), Low <= min(Open, Close).
type Candle struct {
	OpenTime  int64   `json:"openTime"` // Unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"`
}

// Body returns the absolute candle body size.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the full high-low range.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// Indicators holds the derived indicator values for one timeframe.
type Indicators struct {
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macdSignal"`
	MACDHistogram float64 `json:"macdHistogram"`
	ATR           float64 `json:"atr"`
	EMA20         float64 `json:"ema20"`
	EMA50         float64 `json:"ema50"`
}

// DataSource marks where a timeframe's candles came from.
type DataSource string

const (
	SourceLive      DataSource = "LIVE"
	SourceSynthetic DataSource = "SYNTHETIC"
)

// TimeframeData is the validated per-timeframe record handed to analyzers:
// candles (oldest first) plus derived indicators.
type TimeframeData struct {
	Timeframe  Timeframe  `json:"timeframe"`
	Candles    []Candle   `json:"candles"`
	Indicators Indicators `json:"indicators"`
	Source     DataSource `json:"source"`
}

// Last returns the most recent candle. Callers must check len(Candles) > 0.
func (td *TimeframeData) Last() Candle {
	return td.Candles[len(td.Candles)-1]
}

// DataQuality grades a snapshot for the response envelope.
type DataQuality string

const (
	QualityGood DataQuality = "GOOD"
	QualityFair DataQuality = "FAIR"
	QualityPoor DataQuality = "POOR"
)

// Snapshot is one request's complete, immutable view of the market.
// All downstream analysis is a pure function of a Snapshot.
type Snapshot struct {
	Symbol       string                       `json:"symbol"`
	ResolvedName string                       `json:"resolvedName"`
	FetchedAt    time.Time                    `json:"fetchedAt"`
	Frames       map[Timeframe]*TimeframeData `json:"frames"`
	CurrentPrice float64                      `json:"currentPrice"`
	Spread       float64                      `json:"spread"`
	Quality      DataQuality                  `json:"quality"`
	Degraded     bool                         `json:"degraded"`
}

// Frame returns the data for a timeframe, or nil when absent.
func (s *Snapshot) Frame(tf Timeframe) *TimeframeData {
	return s.Frames[tf]
}
