package analysis

import (
	"math"

	"mt5-signal-engine/internal/marketdata"
)

// VolumeClass categorizes the current volume regime.
type VolumeClass string

const (
	VolumeAccumulation VolumeClass = "ACCUMULATION"
	VolumeDistribution VolumeClass = "DISTRIBUTION"
	VolumeBreakout     VolumeClass = "BREAKOUT"
	VolumeNeutral      VolumeClass = "NEUTRAL"
)

// Pressure is the buy/sell pressure read from candle geometry.
type Pressure string

const (
	PressureBuying  Pressure = "BUYING"
	PressureSelling Pressure = "SELLING"
	PressureNeutral Pressure = "NEUTRAL"
)

// VolumeProfile holds the volume analysis results for one window.
type VolumeProfile struct {
	CurrentVolume float64     `json:"currentVolume"`
	AverageVolume float64     `json:"averageVolume"`
	VolumeRatio   float64     `json:"volumeRatio"`
	Class         VolumeClass `json:"class"`
	Pressure      Pressure    `json:"pressure"`
	SpikePresent  bool        `json:"spikePresent"`
	DryUp         bool        `json:"dryUp"`
	OBV           float64     `json:"obv"`
}

// VolumeAnalyzer classifies volume behavior over a candle window.
type VolumeAnalyzer struct {
	avgPeriod int
}

// NewVolumeAnalyzer creates a volume analyzer; period <= 0 defaults to 20.
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20
	}
	return &VolumeAnalyzer{avgPeriod: avgPeriod}
}

// Analyze produces the volume profile for the window's latest bar.
func (va *VolumeAnalyzer) Analyze(candles []marketdata.Candle) *VolumeProfile {
	if len(candles) == 0 {
		return nil
	}

	last := candles[len(candles)-1]
	avg := marketdata.AverageVolume(candles[:len(candles)-1], va.avgPeriod)

	ratio := 1.0
	if avg > 0 {
		ratio = last.Volume / avg
	}

	profile := &VolumeProfile{
		CurrentVolume: last.Volume,
		AverageVolume: avg,
		VolumeRatio:   ratio,
		Pressure:      pressureOf(last),
		SpikePresent:  ratio > 2.0,
		DryUp:         va.dryUp(candles),
		OBV:           obv(candles),
	}
	profile.Class = va.classify(candles, profile)
	return profile
}

// classify maps the profile to a regime: breakout on a spike with a strong
// directional body, accumulation/distribution on diverging OBV against a flat
// price, otherwise neutral.
func (va *VolumeAnalyzer) classify(candles []marketdata.Candle, profile *VolumeProfile) VolumeClass {
	last := candles[len(candles)-1]

	if profile.SpikePresent && last.Range() > 0 && last.Body()/last.Range() > 0.6 {
		return VolumeBreakout
	}

	if len(candles) >= 21 {
		window := candles[len(candles)-20:]
		priceMove := 0.0
		if window[0].Close > 0 {
			priceMove = math.Abs(window[len(window)-1].Close-window[0].Close) / window[0].Close
		}

		if priceMove < 0.01 {
			half := len(window) / 2
			firstOBV := obv(window[:half])
			fullOBV := obv(window)
			if fullOBV > firstOBV && profile.VolumeRatio > 1.0 {
				return VolumeAccumulation
			}
			if fullOBV < firstOBV && profile.VolumeRatio > 1.0 {
				return VolumeDistribution
			}
		}
	}

	return VolumeNeutral
}

// dryUp reports whether the second half of the window carries notably less
// volume than the first half.
func (va *VolumeAnalyzer) dryUp(candles []marketdata.Candle) bool {
	period := va.avgPeriod
	if len(candles) < period {
		return false
	}

	window := candles[len(candles)-period:]
	mid := period / 2

	firstHalf := 0.0
	secondHalf := 0.0
	for i := 0; i < mid; i++ {
		firstHalf += window[i].Volume
	}
	for i := mid; i < period; i++ {
		secondHalf += window[i].Volume
	}
	firstHalf /= float64(mid)
	secondHalf /= float64(period - mid)

	return secondHalf < firstHalf*0.7
}

// pressureOf reads buy/sell pressure from a single candle's body and wicks.
func pressureOf(c marketdata.Candle) Pressure {
	body := c.Body()
	upperWick := c.High - math.Max(c.Open, c.Close)
	lowerWick := math.Min(c.Open, c.Close) - c.Low

	if c.IsBullish() {
		if upperWick < body*0.2 {
			return PressureBuying
		}
		return PressureNeutral
	}
	if c.Close < c.Open {
		if lowerWick < body*0.2 {
			return PressureSelling
		}
		return PressureNeutral
	}
	return PressureNeutral
}

// obv computes On-Balance Volume over the window.
func obv(candles []marketdata.Candle) float64 {
	total := 0.0
	for i := 1; i < len(candles); i++ {
		if candles[i].Close > candles[i-1].Close {
			total += candles[i].Volume
		} else if candles[i].Close < candles[i-1].Close {
			total -= candles[i].Volume
		}
	}
	return total
}
