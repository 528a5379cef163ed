package marketdata

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average of closes over the last period bars.
func SMA(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average of closes, seeded with the
// SMA of the first period bars.
func EMA(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	ema := SMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// emaOf runs an EMA over a plain value series, seeded with the mean of the
// first period values.
func emaOf(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	ema := seed / float64(period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// ============================================================================
// RSI
// ============================================================================

// RSI calculates the Wilder Relative Strength Index. With no losses in the
// window the result floors to 100; with insufficient data it returns the
// neutral 50.
func RSI(candles []Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDResult holds MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line as EMA(fast)-EMA(slow) and the signal line as
// an EMA of the MACD series itself, built bar by bar across the window.
func MACD(candles []Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	// Build the MACD series from slowPeriod onward so the signal line is a
	// real EMA over MACD values, not an approximation.
	macdSeries := make([]float64, 0, len(candles)-slowPeriod+1)
	for i := slowPeriod; i <= len(candles); i++ {
		window := candles[:i]
		macdSeries = append(macdSeries, EMA(window, fastPeriod)-EMA(window, slowPeriod))
	}

	macdLine := macdSeries[len(macdSeries)-1]
	signalLine := emaOf(macdSeries, signalPeriod)

	return MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// ============================================================================
// ATR
// ============================================================================

// ATR calculates the Wilder Average True Range. With fewer than 26 bars the
// window is too short for a stable average and the last bar's plain range is
// used instead.
func ATR(candles []Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < 26 || len(candles) < period+1 {
		last := candles[len(candles)-1]
		return last.High - last.Low
	}

	trSum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}
	return trSum / float64(period)
}

// ============================================================================
// VOLUME
// ============================================================================

// AverageVolume calculates the mean volume over the last period bars,
// shrinking the window when fewer bars exist.
func AverageVolume(candles []Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// ComputeIndicators derives the standard indicator set for a candle window.
func ComputeIndicators(candles []Candle) Indicators {
	macd := MACD(candles, 12, 26, 9)
	return Indicators{
		RSI:           RSI(candles, 14),
		MACD:          macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		ATR:           ATR(candles, 14),
		EMA20:         EMA(candles, 20),
		EMA50:         EMA(candles, 50),
	}
}
