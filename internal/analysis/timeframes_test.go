package analysis

import (
	"math"
	"testing"

	"mt5-signal-engine/internal/marketdata"
	"mt5-signal-engine/internal/structure"
)

// trendFrame builds a 60-bar frame whose closes drift by step per bar, with
// indicators computed from the candles.
func trendFrame(tf marketdata.Timeframe, start, step float64) *marketdata.TimeframeData {
	candles := make([]marketdata.Candle, 60)
	for i := range candles {
		p := start + step*float64(i)
		candles[i] = marketdata.Candle{
			Open: p, High: p + 0.1, Low: p - 0.1, Close: p,
			Volume: 1000, OpenTime: int64(i) * 1000,
		}
	}
	return &marketdata.TimeframeData{
		Timeframe:  tf,
		Candles:    candles,
		Indicators: marketdata.ComputeIndicators(candles),
		Source:     marketdata.SourceSynthetic,
	}
}

func snapshotOf(frames map[marketdata.Timeframe]*marketdata.TimeframeData) *marketdata.Snapshot {
	return &marketdata.Snapshot{Symbol: "EURUSD", Frames: frames}
}

// TestMTFAllBullish verifies full agreement yields a bullish direction with
// high confluence.
func TestMTFAllBullish(t *testing.T) {
	analyzer := NewTimeframeAnalyzer()
	frames := make(map[marketdata.Timeframe]*marketdata.TimeframeData)
	for _, tf := range marketdata.DefaultTimeframes {
		frames[tf] = trendFrame(tf, 100, 0.5)
	}

	result := analyzer.Analyze(snapshotOf(frames))

	if result.Direction != structure.Bullish {
		t.Fatalf("Expected BULLISH, got %s", result.Direction)
	}
	if result.Confluence < 0.9 {
		t.Errorf("Expected near-total confluence, got %f", result.Confluence)
	}
	if result.TrendStrength < 0.9 {
		t.Errorf("Expected high trend strength, got %f", result.TrendStrength)
	}
	for tf, reading := range result.PerTimeframe {
		if reading.Trend != structure.Uptrend {
			t.Errorf("Timeframe %s: expected UPTREND, got %s", tf, reading.Trend)
		}
	}
}

// TestMTFHigherTimeframesDominate verifies the 1h+4h weight outvotes the
// three lower frames.
func TestMTFHigherTimeframesDominate(t *testing.T) {
	analyzer := NewTimeframeAnalyzer()
	frames := map[marketdata.Timeframe]*marketdata.TimeframeData{
		marketdata.TF5m:  trendFrame(marketdata.TF5m, 100, 0.5),
		marketdata.TF15m: trendFrame(marketdata.TF15m, 100, 0.5),
		marketdata.TF30m: trendFrame(marketdata.TF30m, 100, 0.5),
		marketdata.TF1h:  trendFrame(marketdata.TF1h, 100, -0.5),
		marketdata.TF4h:  trendFrame(marketdata.TF4h, 100, -0.5),
	}

	result := analyzer.Analyze(snapshotOf(frames))

	if result.Direction != structure.Bearish {
		t.Errorf("Expected the 0.60 combined weight of 1h+4h to win, got %s", result.Direction)
	}
	if result.Confluence >= 0.9 {
		t.Errorf("Split frames should not read near-total confluence, got %f", result.Confluence)
	}
}

// TestMTFSidewaysFrame verifies near-equal EMAs read as ranging with reduced
// strength.
func TestMTFSidewaysFrame(t *testing.T) {
	frame := trendFrame(marketdata.TF1h, 100, 0)

	reading := readTrend(frame)

	if reading.Trend != structure.Ranging {
		t.Errorf("Expected RANGING on flat EMAs, got %s", reading.Trend)
	}
	if reading.Direction != structure.Neutral {
		t.Errorf("Expected NEUTRAL direction, got %s", reading.Direction)
	}
	if math.Abs(reading.Strength-0.3) > 1e-9 {
		t.Errorf("Expected the reduced sideways strength 0.3, got %f", reading.Strength)
	}
}

// TestMTFShortFrameNeutral verifies frames under 50 bars contribute nothing.
func TestMTFShortFrameNeutral(t *testing.T) {
	frame := trendFrame(marketdata.TF1h, 100, 0.5)
	frame.Candles = frame.Candles[:30]

	reading := readTrend(frame)

	if reading.Direction != structure.Neutral {
		t.Errorf("Expected NEUTRAL under 50 bars, got %s", reading.Direction)
	}
	if reading.Strength != 0 {
		t.Errorf("Expected zero strength under 50 bars, got %f", reading.Strength)
	}
}

// TestMTFEmptySnapshot verifies the neutral zero-value result.
func TestMTFEmptySnapshot(t *testing.T) {
	analyzer := NewTimeframeAnalyzer()

	result := analyzer.Analyze(snapshotOf(map[marketdata.Timeframe]*marketdata.TimeframeData{}))

	if result.Direction != structure.Neutral {
		t.Errorf("Expected NEUTRAL on an empty snapshot, got %s", result.Direction)
	}
	if result.Confluence != 0 || result.TrendStrength != 0 {
		t.Errorf("Expected zero scores, got confluence %f strength %f", result.Confluence, result.TrendStrength)
	}
}
