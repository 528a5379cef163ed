package signal

import (
	"fmt"
	"math"
	"time"

	"mt5-signal-engine/internal/analysis"
	"mt5-signal-engine/internal/structure"
)

// Weights configures the composite blend. They must sum to 1.0 within 0.01.
type Weights struct {
	SmartMoney  float64 `json:"smartMoney"`
	PriceAction float64 `json:"priceAction"`
	Volume      float64 `json:"volume"`
	Neural      float64 `json:"neural"`
	News        float64 `json:"news"`
}

// DefaultWeights mirrors the production blend.
func DefaultWeights() Weights {
	return Weights{
		SmartMoney:  0.30,
		PriceAction: 0.25,
		Volume:      0.20,
		Neural:      0.15,
		News:        0.10,
	}
}

// Validate checks the weights sum to 1.0 within tolerance.
func (w Weights) Validate() error {
	total := w.SmartMoney + w.PriceAction + w.Volume + w.Neural + w.News
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("signal weights must sum to 1.0, got %.2f", total)
	}
	return nil
}

// Inputs gathers every sub-analysis the scorer fuses.
type Inputs struct {
	Structural *structure.Analysis
	MarketMaker structure.MarketMakerRead
	MTF        *analysis.MTFResult
	Volume     *analysis.VolumeProfile

	NeuralScore     float64
	NeuralDirection structure.Direction
	NewsScore       float64
	NewsSentiment   structure.Direction
	NewsHighImpact  bool

	SessionActive bool // inside a London/New York kill zone
}

// SubScores are the per-factor [0,100] components of the composite.
type SubScores struct {
	SmartMoney  float64 `json:"smartMoney"`
	PriceAction float64 `json:"priceAction"`
	Volume      float64 `json:"volume"`
	Neural      float64 `json:"neural"`
	News        float64 `json:"news"`
}

// Verdict is the scorer output for one request. A nil Verdict from Score
// means no directional consensus, which is a normal outcome, not an error.
type Verdict struct {
	Direction    Direction `json:"direction"`
	Confidence   int       `json:"confidence"` // 0..95
	Composite    float64   `json:"composite"`
	SubScores    SubScores `json:"subScores"`
	BullishCount int       `json:"bullishCount"`
	BearishCount int       `json:"bearishCount"`
	Factors      []string  `json:"factors"`
	Warnings     []string  `json:"warnings"`
}

// Scorer blends sub-scores into one bounded confidence and resolves the
// direction by factor-count majority.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer; invalid weights are rejected.
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Score fuses the inputs. It returns nil when neither side outnumbers the
// other by more than one contributing factor.
func (s *Scorer) Score(in Inputs) *Verdict {
	sub := SubScores{
		SmartMoney:  s.smartMoneyScore(in),
		PriceAction: s.priceActionScore(in),
		Volume:      s.volumeScore(in),
		Neural:      clampScore(in.NeuralScore),
		News:        clampScore(in.NewsScore),
	}

	composite := sub.SmartMoney*s.weights.SmartMoney +
		sub.PriceAction*s.weights.PriceAction +
		sub.Volume*s.weights.Volume +
		sub.Neural*s.weights.Neural +
		sub.News*s.weights.News

	direction, bull, bear, factors := s.resolveDirection(in)
	if direction == "" {
		return nil
	}

	confidence := composite
	var warnings []string

	if in.Volume != nil && in.Volume.VolumeRatio < 0.8 {
		confidence *= 0.9
		warnings = append(warnings, "low liquidity: volume below 80% of average")
	}

	if in.NewsHighImpact && opposes(in.NewsSentiment, direction) {
		confidence *= 0.8
		warnings = append(warnings, "high-impact news against signal direction")
	}

	if smartMoneyAligned(in.MarketMaker.Direction, direction) {
		confidence *= 1.05
		factors = append(factors, "smart money flow aligned")
	}

	if in.MTF != nil && in.MTF.Confluence > 0.7 {
		confidence *= 1.03
		factors = append(factors, fmt.Sprintf("strong timeframe confluence (%.2f)", in.MTF.Confluence))
	}

	rounded := int(math.Round(confidence))
	if rounded > ConfidenceCap {
		rounded = ConfidenceCap
	}
	if rounded < 0 {
		rounded = 0
	}

	return &Verdict{
		Direction:    direction,
		Confidence:   rounded,
		Composite:    composite,
		SubScores:    sub,
		BullishCount: bull,
		BearishCount: bear,
		Factors:      factors,
		Warnings:     warnings,
	}
}

// smartMoneyScore builds the institutional-evidence score: order-block and
// FVG counts, the market-maker model's confidence, and a session bonus when
// a kill zone is active.
func (s *Scorer) smartMoneyScore(in Inputs) float64 {
	score := 30.0

	if in.Structural != nil {
		score += math.Min(float64(len(in.Structural.OrderBlocks))*4, 20)
		score += math.Min(float64(len(in.Structural.FVGs))*2.5, 12)
	}

	score += in.MarketMaker.Confidence * 0.3

	if in.SessionActive {
		score += 8
	}

	return clampScore(score)
}

// priceActionScore bases at 50 and adds confluence and trend strength.
func (s *Scorer) priceActionScore(in Inputs) float64 {
	score := 50.0
	if in.MTF != nil {
		score += in.MTF.Confluence * 30
		score += in.MTF.TrendStrength * 20
	}
	return clampScore(score)
}

// volumeScore bases at 50 with spike and regime bonuses and a thin-tape
// penalty.
func (s *Scorer) volumeScore(in Inputs) float64 {
	score := 50.0
	if in.Volume == nil {
		return score
	}

	if in.Volume.SpikePresent {
		score += 20
	}
	switch in.Volume.Class {
	case analysis.VolumeBreakout:
		score += 15
	case analysis.VolumeAccumulation, analysis.VolumeDistribution:
		score += 10
	}
	if in.Volume.VolumeRatio < 0.8 {
		score -= 10
	}

	return clampScore(score)
}

// resolveDirection counts bullish vs bearish reads across the six factor
// sources. A side must outnumber the other by MORE than one factor to be
// emitted; anything tighter is a hold.
func (s *Scorer) resolveDirection(in Inputs) (Direction, int, int, []string) {
	bull := 0
	bear := 0
	var bullF, bearF []string

	switch in.MarketMaker.Direction {
	case structure.FlowLong:
		bull++
		bullF = append(bullF, "institutional flow LONG")
	case structure.FlowShort:
		bear++
		bearF = append(bearF, "institutional flow SHORT")
	}

	if in.Structural != nil {
		switch in.Structural.Structure.Bias {
		case structure.Bullish:
			bull++
			bullF = append(bullF, "bullish market structure")
		case structure.Bearish:
			bear++
			bearF = append(bearF, "bearish market structure")
		}
	}

	if in.MTF != nil {
		switch in.MTF.Direction {
		case structure.Bullish:
			bull++
			bullF = append(bullF, "multi-timeframe uptrend")
		case structure.Bearish:
			bear++
			bearF = append(bearF, "multi-timeframe downtrend")
		}
	}

	if in.Volume != nil {
		switch in.Volume.Class {
		case analysis.VolumeAccumulation:
			bull++
			bullF = append(bullF, "volume accumulation")
		case analysis.VolumeDistribution:
			bear++
			bearF = append(bearF, "volume distribution")
		}
	}

	switch in.NeuralDirection {
	case structure.Bullish:
		bull++
		bullF = append(bullF, "model lean bullish")
	case structure.Bearish:
		bear++
		bearF = append(bearF, "model lean bearish")
	}

	switch in.NewsSentiment {
	case structure.Bullish:
		bull++
		bullF = append(bullF, "positive news sentiment")
	case structure.Bearish:
		bear++
		bearF = append(bearF, "negative news sentiment")
	}

	if bull-bear > 1 {
		return DirectionBuy, bull, bear, bullF
	}
	if bear-bull > 1 {
		return DirectionSell, bull, bear, bearF
	}
	return "", bull, bear, nil
}

func opposes(sentiment structure.Direction, dir Direction) bool {
	return (sentiment == structure.Bearish && dir == DirectionBuy) ||
		(sentiment == structure.Bullish && dir == DirectionSell)
}

func smartMoneyAligned(flow structure.FlowDirection, dir Direction) bool {
	return (flow == structure.FlowLong && dir == DirectionBuy) ||
		(flow == structure.FlowShort && dir == DirectionSell)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// InKillZone reports whether t falls inside the London (07:00-10:00 UTC) or
// New York (12:00-15:00 UTC) kill zone.
func InKillZone(t time.Time) bool {
	hour := t.UTC().Hour()
	return (hour >= 7 && hour < 10) || (hour >= 12 && hour < 15)
}
