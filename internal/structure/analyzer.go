package structure

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/marketdata"
)

// Analyzer detects market structure over a candle window. It is stateless
// apart from its configuration; a single instance may serve concurrent calls.
type Analyzer struct {
	swingLookback int
	logger        zerolog.Logger
}

// NewAnalyzer creates a structural analyzer. lookback is the symmetric swing
// window; values <= 0 fall back to the default of 5 bars.
func NewAnalyzer(lookback int, logger zerolog.Logger) *Analyzer {
	if lookback <= 0 {
		lookback = 5
	}
	return &Analyzer{
		swingLookback: lookback,
		logger:        logger.With().Str("component", "structure").Logger(),
	}
}

// Analyze runs the full structural pass over one timeframe's candles.
func (a *Analyzer) Analyze(candles []marketdata.Candle, tf marketdata.Timeframe, currentPrice float64) *Analysis {
	analysis := &Analysis{
		Timeframe: tf,
		Structure: MarketStructure{Trend: Ranging, Bias: Neutral},
	}
	if len(candles) < a.swingLookback*2+1 {
		return analysis
	}

	analysis.SwingPoints = a.FindSwingPoints(candles)
	analysis.Structure.Points = buildStructureSequence(analysis.SwingPoints)
	analysis.Breaks = detectBreaks(analysis.Structure.Points)

	for i := range analysis.Breaks {
		b := &analysis.Breaks[i]
		switch b.Type {
		case BreakBOS:
			analysis.Structure.LastBOS = b
		case BreakCHOCH:
			analysis.Structure.LastCHOCH = b
		}
	}

	analysis.Structure.Trend, analysis.Structure.Bias = classifyTrend(analysis.Structure.Points)
	analysis.Structure.KeyLevels = keyLevels(analysis.Structure.Points)

	analysis.OrderBlocks = a.DetectOrderBlocks(candles, tf, currentPrice)
	analysis.FVGs = a.DetectFVGs(candles, tf)
	analysis.Zones = a.DetectZones(candles, currentPrice)

	return analysis
}

// FindSwingPoints returns swing highs and lows merged into timestamp order.
// A candle is a swing high iff its high exceeds the high of every other
// candle within the symmetric lookback window; mirror rule for lows.
func (a *Analyzer) FindSwingPoints(candles []marketdata.Candle) []SwingPoint {
	var points []SwingPoint
	lb := a.swingLookback

	for i := lb; i < len(candles)-lb; i++ {
		isHigh := true
		isLow := true
		for j := i - lb; j <= i+lb; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			points = append(points, SwingPoint{Price: candles[i].High, Timestamp: candles[i].OpenTime, IsHigh: true})
		}
		if isLow {
			points = append(points, SwingPoint{Price: candles[i].Low, Timestamp: candles[i].OpenTime, IsHigh: false})
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points
}

// buildStructureSequence keeps only alternating extrema and labels each kept
// point relative to the prior point of the same side.
func buildStructureSequence(swings []SwingPoint) []StructurePoint {
	var seq []StructurePoint
	var lastHigh, lastLow *float64

	for _, sp := range swings {
		// Skip a same-type point following a kept one so the sequence
		// strictly alternates high/low.
		if len(seq) > 0 && seq[len(seq)-1].Type.IsHigh() == sp.IsHigh {
			continue
		}

		var label StructureType
		if sp.IsHigh {
			if lastHigh != nil && sp.Price < *lastHigh {
				label = LowerHigh
			} else {
				label = HigherHigh
			}
			price := sp.Price
			lastHigh = &price
		} else {
			if lastLow != nil && sp.Price > *lastLow {
				label = HigherLow
			} else {
				label = LowerLow
			}
			price := sp.Price
			lastLow = &price
		}

		seq = append(seq, StructurePoint{Type: label, Price: sp.Price, Timestamp: sp.Timestamp})
	}
	return seq
}

// detectBreaks walks the structure sequence tracking the last labeled high
// and low. Breaking the tracked high is bullish: a BOS when that high was an
// HH (continuation), a CHOCH when it was an LH (reversal). Mirror for lows.
// Each breaking point yields at most one record, so a point is never both a
// BOS and a CHOCH.
func detectBreaks(points []StructurePoint) []StructureBreak {
	var breaks []StructureBreak
	var lastHigh, lastLow *StructurePoint

	for i := range points {
		p := points[i]

		if lastHigh != nil && p.Price > lastHigh.Price {
			bt := BreakCHOCH
			if lastHigh.Type == HigherHigh {
				bt = BreakBOS
			}
			breaks = append(breaks, StructureBreak{
				Type:      bt,
				Direction: Bullish,
				Price:     p.Price,
				Timestamp: p.Timestamp,
			})
		} else if lastLow != nil && p.Price < lastLow.Price {
			bt := BreakCHOCH
			if lastLow.Type == LowerLow {
				bt = BreakBOS
			}
			breaks = append(breaks, StructureBreak{
				Type:      bt,
				Direction: Bearish,
				Price:     p.Price,
				Timestamp: p.Timestamp,
			})
		}

		if p.Type.IsHigh() {
			lastHigh = &points[i]
		} else {
			lastLow = &points[i]
		}
	}
	return breaks
}

// classifyTrend inspects the last three structure points. The canonical
// ladders HL,HH,HL(higher) and HH,HL,HH(higher) read as an uptrend; their
// mirrors as a downtrend. Anything else is ranging with the bias taken from
// the most recent point alone.
func classifyTrend(points []StructurePoint) (Trend, Direction) {
	if len(points) == 0 {
		return Ranging, Neutral
	}
	if len(points) >= 3 {
		p0 := points[len(points)-3]
		p1 := points[len(points)-2]
		p2 := points[len(points)-1]

		upA := p0.Type == HigherLow && p1.Type == HigherHigh && p2.Type == HigherLow && p2.Price > p0.Price
		upB := p0.Type == HigherHigh && p1.Type == HigherLow && p2.Type == HigherHigh && p2.Price > p0.Price
		if upA || upB {
			return Uptrend, Bullish
		}

		downA := p0.Type == LowerHigh && p1.Type == LowerLow && p2.Type == LowerHigh && p2.Price < p0.Price
		downB := p0.Type == LowerLow && p1.Type == LowerHigh && p2.Type == LowerLow && p2.Price < p0.Price
		if downA || downB {
			return Downtrend, Bearish
		}
	}

	switch points[len(points)-1].Type {
	case HigherHigh, HigherLow:
		return Ranging, Bullish
	default:
		return Ranging, Bearish
	}
}

// keyLevels clusters structure point prices within 0.1% and returns the
// deduplicated set sorted ascending.
func keyLevels(points []StructurePoint) []float64 {
	const tolerance = 0.001

	var levels []float64
	for _, p := range points {
		merged := false
		for i, lvl := range levels {
			if lvl > 0 && math.Abs(p.Price-lvl)/lvl < tolerance {
				levels[i] = (lvl + p.Price) / 2
				merged = true
				break
			}
		}
		if !merged {
			levels = append(levels, p.Price)
		}
	}

	sort.Float64s(levels)
	return levels
}
