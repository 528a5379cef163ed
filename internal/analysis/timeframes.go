// Package analysis provides multi-timeframe trend confluence and volume
// analysis over market snapshots. Everything here is a pure function of the
// snapshot passed in.
package analysis

import (
	"math"

	"mt5-signal-engine/internal/marketdata"
	"mt5-signal-engine/internal/structure"
)

// timeframeWeights biases confluence toward higher timeframes. Must sum to 1.
var timeframeWeights = map[marketdata.Timeframe]float64{
	marketdata.TF5m:  0.10,
	marketdata.TF15m: 0.15,
	marketdata.TF30m: 0.15,
	marketdata.TF1h:  0.25,
	marketdata.TF4h:  0.35,
}

// TrendReading is one timeframe's trend verdict.
type TrendReading struct {
	Timeframe marketdata.Timeframe `json:"timeframe"`
	Trend     structure.Trend      `json:"trend"`
	Direction structure.Direction  `json:"direction"`
	Strength  float64              `json:"strength"` // 0..1
}

// MTFResult is the cross-timeframe confluence summary.
type MTFResult struct {
	PerTimeframe map[marketdata.Timeframe]TrendReading `json:"perTimeframe"`
	Direction    structure.Direction                   `json:"direction"`
	Confluence   float64                               `json:"confluence"` // 0..1 weighted agreement
	TrendStrength float64                              `json:"trendStrength"`
}

// TimeframeAnalyzer computes per-timeframe trend and the overall confluence.
type TimeframeAnalyzer struct{}

// NewTimeframeAnalyzer creates the analyzer.
func NewTimeframeAnalyzer() *TimeframeAnalyzer {
	return &TimeframeAnalyzer{}
}

// Analyze reads trend per timeframe and aggregates a weighted confluence
// score for the dominant direction.
func (ta *TimeframeAnalyzer) Analyze(snap *marketdata.Snapshot) *MTFResult {
	result := &MTFResult{
		PerTimeframe: make(map[marketdata.Timeframe]TrendReading),
		Direction:    structure.Neutral,
	}

	bullWeight := 0.0
	bearWeight := 0.0
	weightedStrength := 0.0
	totalWeight := 0.0

	for tf, frame := range snap.Frames {
		reading := readTrend(frame)
		result.PerTimeframe[tf] = reading

		weight, ok := timeframeWeights[tf]
		if !ok {
			weight = 0.1
		}
		totalWeight += weight
		weightedStrength += reading.Strength * weight

		switch reading.Direction {
		case structure.Bullish:
			bullWeight += weight * reading.Strength
		case structure.Bearish:
			bearWeight += weight * reading.Strength
		}
	}

	if totalWeight > 0 {
		result.TrendStrength = weightedStrength / totalWeight

		if bullWeight > bearWeight {
			result.Direction = structure.Bullish
			result.Confluence = bullWeight / totalWeight
		} else if bearWeight > bullWeight {
			result.Direction = structure.Bearish
			result.Confluence = bearWeight / totalWeight
		}
	}

	return result
}

// readTrend classifies one timeframe from its EMAs and recent closes.
func readTrend(frame *marketdata.TimeframeData) TrendReading {
	reading := TrendReading{
		Timeframe: frame.Timeframe,
		Trend:     structure.Ranging,
		Direction: structure.Neutral,
	}
	if len(frame.Candles) < 50 {
		return reading
	}

	fast := frame.Indicators.EMA20
	slow := frame.Indicators.EMA50
	if slow == 0 {
		return reading
	}

	// EMAs within 0.1% of each other read as sideways.
	separation := math.Abs(fast-slow) / slow
	if separation < 0.001 {
		reading.Strength = 0.3
		return reading
	}

	if fast > slow {
		reading.Trend = structure.Uptrend
		reading.Direction = structure.Bullish
	} else {
		reading.Trend = structure.Downtrend
		reading.Direction = structure.Bearish
	}

	reading.Strength = trendStrength(frame.Candles, reading.Direction)
	return reading
}

// trendStrength is the fraction of the last 20 closes agreeing with the
// trend direction, blended with EMA separation so flat grinds score lower.
func trendStrength(candles []marketdata.Candle, dir structure.Direction) float64 {
	window := candles[len(candles)-20:]

	agree := 0
	for i := 1; i < len(window); i++ {
		up := window[i].Close > window[i-1].Close
		if (dir == structure.Bullish && up) || (dir == structure.Bearish && !up) {
			agree++
		}
	}

	return math.Min(float64(agree)/float64(len(window)-1)*1.3, 1.0)
}
