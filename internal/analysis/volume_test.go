package analysis

import (
	"testing"

	"mt5-signal-engine/internal/marketdata"
)

func volCandles(n int, price, volume float64) []marketdata.Candle {
	candles := make([]marketdata.Candle, n)
	for i := range candles {
		candles[i] = marketdata.Candle{
			Open: price, High: price + 0.5, Low: price - 0.5, Close: price,
			Volume: volume, OpenTime: int64(i) * 1000,
		}
	}
	return candles
}

// TestVolumeSpikeBreakout verifies a spike with a strong directional body
// classifies as a breakout.
func TestVolumeSpikeBreakout(t *testing.T) {
	analyzer := NewVolumeAnalyzer(20)
	candles := volCandles(40, 100, 1000)

	last := len(candles) - 1
	candles[last] = marketdata.Candle{
		Open: 100, High: 103.2, Low: 99.8, Close: 103, // body 3 over range 3.4
		Volume: 3000, OpenTime: candles[last].OpenTime,
	}

	profile := analyzer.Analyze(candles)

	if !profile.SpikePresent {
		t.Error("Expected a spike at 3x average volume")
	}
	if profile.Class != VolumeBreakout {
		t.Errorf("Expected BREAKOUT, got %s", profile.Class)
	}
	if profile.Pressure != PressureBuying {
		t.Errorf("Expected BUYING pressure on a full-bodied bullish bar, got %s", profile.Pressure)
	}
}

// TestVolumeAccumulation verifies rising OBV against a flat price with active
// volume reads as accumulation.
func TestVolumeAccumulation(t *testing.T) {
	analyzer := NewVolumeAnalyzer(20)
	candles := volCandles(40, 100, 1000)

	// Flat 20-bar window with alternating ticks: up-moves carry heavy volume,
	// down-moves light, so OBV climbs while price goes nowhere. The window
	// ends on a heavy up-tick so current volume runs above average.
	for i := 20; i < 40; i++ {
		if i%2 == 1 {
			candles[i].Close = 100.2
			candles[i].High = 100.7
			candles[i].Volume = 2000
		} else {
			candles[i].Close = 100.0
			candles[i].Volume = 500
		}
	}

	profile := analyzer.Analyze(candles)

	if profile.Class != VolumeAccumulation {
		t.Errorf("Expected ACCUMULATION, got %s", profile.Class)
	}
}

// TestVolumeNeutralOnQuietTape verifies flat price and flat volume stay
// neutral.
func TestVolumeNeutralOnQuietTape(t *testing.T) {
	analyzer := NewVolumeAnalyzer(20)

	profile := analyzer.Analyze(volCandles(40, 100, 1000))

	if profile.Class != VolumeNeutral {
		t.Errorf("Expected NEUTRAL, got %s", profile.Class)
	}
	if profile.SpikePresent {
		t.Error("Flat tape should not flag a spike")
	}
	if profile.VolumeRatio != 1.0 {
		t.Errorf("Expected volume ratio 1.0, got %f", profile.VolumeRatio)
	}
}

// TestVolumeDryUp verifies the second-half fade detection.
func TestVolumeDryUp(t *testing.T) {
	analyzer := NewVolumeAnalyzer(20)
	candles := volCandles(40, 100, 2000)

	for i := 30; i < 40; i++ {
		candles[i].Volume = 500 // 0.25x of the first half
	}

	profile := analyzer.Analyze(candles)

	if !profile.DryUp {
		t.Error("Expected dry-up with the second half at a quarter of the first")
	}
}

// TestVolumeEmptyWindow verifies the nil guard.
func TestVolumeEmptyWindow(t *testing.T) {
	analyzer := NewVolumeAnalyzer(20)

	if profile := analyzer.Analyze(nil); profile != nil {
		t.Errorf("Expected nil profile on empty input, got %+v", profile)
	}
}
