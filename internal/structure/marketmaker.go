package structure

import (
	"math"

	"mt5-signal-engine/internal/marketdata"
)

// Phase labels the inferred market-maker trading phase.
type Phase string

const (
	PhaseAccumulation Phase = "ACCUMULATION"
	PhaseManipulation Phase = "MANIPULATION"
	PhaseDistribution Phase = "DISTRIBUTION"
)

// FlowDirection is the inferred institutional-flow direction.
type FlowDirection string

const (
	FlowLong     FlowDirection = "LONG"
	FlowShort    FlowDirection = "SHORT"
	FlowSideways FlowDirection = "SIDEWAYS"
)

// MarketMakerRead is the heuristic market-maker model output.
type MarketMakerRead struct {
	Phase            Phase         `json:"phase"`
	Confidence       float64       `json:"confidence"`       // 0-100
	SweepProbability float64       `json:"sweepProbability"` // 0-100
	Direction        FlowDirection `json:"direction"`
}

// MarketMakerModel classifies trading phase, institutional-flow direction and
// liquidity-sweep probability from a candle window and the structural read of
// the same window.
type MarketMakerModel struct{}

// NewMarketMakerModel creates the model.
func NewMarketMakerModel() *MarketMakerModel {
	return &MarketMakerModel{}
}

// Read produces the market-maker classification. With fewer than 50 candles
// there is not enough context and a low-confidence accumulation default is
// returned.
func (m *MarketMakerModel) Read(candles []marketdata.Candle, analysis *Analysis) MarketMakerRead {
	if len(candles) < 50 {
		return MarketMakerRead{
			Phase:            PhaseAccumulation,
			Confidence:       30,
			SweepProbability: 20,
			Direction:        FlowSideways,
		}
	}

	read := MarketMakerRead{
		Phase:            m.classifyPhase(candles),
		Confidence:       m.confidence(candles, analysis),
		SweepProbability: m.sweepProbability(candles),
		Direction:        m.flowDirection(analysis),
	}
	return read
}

// classifyPhase reads the net move over the last 20 candles: a quiet window
// is accumulation, a large push either way is distribution, the in-between
// chop is manipulation.
func (m *MarketMakerModel) classifyPhase(candles []marketdata.Candle) Phase {
	window := candles[len(candles)-20:]
	start := window[0].Close
	end := window[len(window)-1].Close
	if start == 0 {
		return PhaseAccumulation
	}

	move := math.Abs(end-start) / start
	switch {
	case move < 0.02:
		return PhaseAccumulation
	case move > 0.05:
		return PhaseDistribution
	default:
		return PhaseManipulation
	}
}

// confidence starts at 50 and is boosted by structural evidence: order-block
// count (up to 25), FVG count (up to 15) and a recent volume expansion (+10).
func (m *MarketMakerModel) confidence(candles []marketdata.Candle, analysis *Analysis) float64 {
	confidence := 50.0

	if analysis != nil {
		confidence += math.Min(float64(len(analysis.OrderBlocks))*5, 25)
		confidence += math.Min(float64(len(analysis.FVGs))*3, 15)
	}

	avgVol := marketdata.AverageVolume(candles[:len(candles)-1], 20)
	if avgVol > 0 && candles[len(candles)-1].Volume/avgVol > 1.2 {
		confidence += 10
	}

	return math.Min(confidence, 100)
}

// sweepProbability starts at 20 and adds 15 per false-breakout-with-reversal
// pattern in the last 10 candles, capped at 90. A false breakout is a bar
// taking out the prior 5-bar extreme and closing back inside it.
func (m *MarketMakerModel) sweepProbability(candles []marketdata.Candle) float64 {
	probability := 20.0

	start := len(candles) - 10
	for i := start; i < len(candles); i++ {
		if i < 5 {
			continue
		}

		priorHigh := candles[i-5].High
		priorLow := candles[i-5].Low
		for j := i - 4; j < i; j++ {
			priorHigh = math.Max(priorHigh, candles[j].High)
			priorLow = math.Min(priorLow, candles[j].Low)
		}

		sweptHighs := candles[i].High > priorHigh && candles[i].Close < priorHigh
		sweptLows := candles[i].Low < priorLow && candles[i].Close > priorLow
		if sweptHighs || sweptLows {
			probability += 15
		}
	}

	return math.Min(probability, 90)
}

// flowDirection compares bullish vs bearish order-block and FVG counts,
// requiring a margin greater than 1 before committing to a side.
func (m *MarketMakerModel) flowDirection(analysis *Analysis) FlowDirection {
	if analysis == nil {
		return FlowSideways
	}

	bullish := 0
	bearish := 0
	for _, ob := range analysis.OrderBlocks {
		if ob.Type == Bullish {
			bullish++
		} else {
			bearish++
		}
	}
	for _, fvg := range analysis.FVGs {
		if fvg.Type == Bullish {
			bullish++
		} else {
			bearish++
		}
	}

	if bullish-bearish > 1 {
		return FlowLong
	}
	if bearish-bullish > 1 {
		return FlowShort
	}
	return FlowSideways
}
