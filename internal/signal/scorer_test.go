package signal

import (
	"testing"

	"mt5-signal-engine/internal/analysis"
	"mt5-signal-engine/internal/structure"
)

func mustScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights())
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	return s
}

// bullishInputs builds inputs where three factor sources lean bullish.
func bullishInputs() Inputs {
	return Inputs{
		Structural: &structure.Analysis{
			Structure: structure.MarketStructure{Trend: structure.Uptrend, Bias: structure.Bullish},
			OrderBlocks: []structure.OrderBlock{{Type: structure.Bullish}, {Type: structure.Bullish}},
			FVGs:       []structure.FairValueGap{{Type: structure.Bullish}},
		},
		MarketMaker: structure.MarketMakerRead{
			Phase:      structure.PhaseAccumulation,
			Confidence: 70,
			Direction:  structure.FlowLong,
		},
		MTF: &analysis.MTFResult{
			Direction:     structure.Bullish,
			Confluence:    0.8,
			TrendStrength: 0.7,
		},
		Volume: &analysis.VolumeProfile{
			Class:       analysis.VolumeNeutral,
			VolumeRatio: 1.1,
		},
		NeuralScore:     60,
		NeuralDirection: structure.Neutral,
		NewsScore:       50,
		NewsSentiment:   structure.Neutral,
	}
}

// TestWeightsValidation verifies the sum-to-one tolerance.
func TestWeightsValidation(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("Default weights should validate: %v", err)
	}

	bad := Weights{SmartMoney: 0.5, PriceAction: 0.5, Volume: 0.5}
	if err := bad.Validate(); err == nil {
		t.Error("Expected validation failure for weights summing to 1.5")
	}
	if _, err := NewScorer(bad); err == nil {
		t.Error("NewScorer should reject invalid weights")
	}

	// Within the 0.01 tolerance.
	near := Weights{SmartMoney: 0.30, PriceAction: 0.25, Volume: 0.20, Neural: 0.15, News: 0.095}
	if err := near.Validate(); err != nil {
		t.Errorf("Weights within tolerance should validate: %v", err)
	}
}

// TestScoreBullishConsensus verifies a clear majority emits a BUY with
// bounded integer confidence.
func TestScoreBullishConsensus(t *testing.T) {
	scorer := mustScorer(t)

	verdict := scorer.Score(bullishInputs())

	if verdict == nil {
		t.Fatal("Expected a verdict with three bullish factors")
	}
	if verdict.Direction != DirectionBuy {
		t.Errorf("Expected BUY, got %s", verdict.Direction)
	}
	if verdict.Confidence < 0 || verdict.Confidence > ConfidenceCap {
		t.Errorf("Confidence %d outside [0, %d]", verdict.Confidence, ConfidenceCap)
	}
	if verdict.BullishCount-verdict.BearishCount <= 1 {
		t.Errorf("Emitted signal without a margin: %d bull vs %d bear",
			verdict.BullishCount, verdict.BearishCount)
	}
}

// TestScoreNoConsensusReturnsNil verifies balanced factors are a hold, not an
// error.
func TestScoreNoConsensusReturnsNil(t *testing.T) {
	scorer := mustScorer(t)

	neutral := Inputs{
		MarketMaker: structure.MarketMakerRead{Direction: structure.FlowSideways},
		MTF:         &analysis.MTFResult{Direction: structure.Neutral},
		Volume:      &analysis.VolumeProfile{Class: analysis.VolumeNeutral, VolumeRatio: 1.0},
	}

	if verdict := scorer.Score(neutral); verdict != nil {
		t.Errorf("Expected nil verdict on balanced factors, got %+v", verdict)
	}
}

// TestScoreMarginOfOneIsHold verifies a single-factor edge does not emit.
func TestScoreMarginOfOneIsHold(t *testing.T) {
	scorer := mustScorer(t)

	in := Inputs{
		MarketMaker: structure.MarketMakerRead{Direction: structure.FlowLong},
		MTF:         &analysis.MTFResult{Direction: structure.Neutral},
		Volume:      &analysis.VolumeProfile{Class: analysis.VolumeNeutral, VolumeRatio: 1.0},
	}

	if verdict := scorer.Score(in); verdict != nil {
		t.Errorf("Margin of one should hold, got %+v", verdict)
	}
}

// TestScoreLowVolumePenalty verifies thin tape shaves confidence and warns.
func TestScoreLowVolumePenalty(t *testing.T) {
	scorer := mustScorer(t)

	normal := scorer.Score(bullishInputs())

	thin := bullishInputs()
	thin.Volume.VolumeRatio = 0.5
	penalized := scorer.Score(thin)

	if normal == nil || penalized == nil {
		t.Fatal("Both variants should produce a verdict")
	}
	if penalized.Confidence >= normal.Confidence {
		t.Errorf("Low volume should reduce confidence: %d vs %d",
			penalized.Confidence, normal.Confidence)
	}
	if len(penalized.Warnings) == 0 {
		t.Error("Expected a liquidity warning")
	}
}

// TestScoreOpposingNewsPenalty verifies high-impact news against the signal
// direction cuts confidence.
func TestScoreOpposingNewsPenalty(t *testing.T) {
	scorer := mustScorer(t)

	against := bullishInputs()
	against.NewsHighImpact = true
	against.NewsSentiment = structure.Bearish

	baseline := bullishInputs()
	// Keep the factor count identical: bearish sentiment adds one bearish
	// factor in both runs, only the high-impact flag differs.
	baseline.NewsSentiment = structure.Bearish

	withNews := scorer.Score(against)
	without := scorer.Score(baseline)

	if withNews == nil || without == nil {
		t.Fatal("Both variants should produce a verdict")
	}
	if withNews.Confidence >= without.Confidence {
		t.Errorf("Opposing high-impact news should reduce confidence: %d vs %d",
			withNews.Confidence, without.Confidence)
	}
}

// TestScoreSmartMoneyAlignmentBoost verifies flow alignment lifts confidence.
func TestScoreSmartMoneyAlignmentBoost(t *testing.T) {
	scorer := mustScorer(t)

	aligned := scorer.Score(bullishInputs())

	unaligned := bullishInputs()
	unaligned.MarketMaker.Direction = structure.FlowSideways
	// Keep BUY viable: structure, MTF and neural lean bullish.
	unaligned.NeuralDirection = structure.Bullish
	base := scorer.Score(unaligned)

	if aligned == nil || base == nil {
		t.Fatal("Both variants should produce a verdict")
	}
	found := false
	for _, f := range aligned.Factors {
		if f == "smart money flow aligned" {
			found = true
		}
	}
	if !found {
		t.Error("Expected the alignment factor on the aligned run")
	}
}

// TestScoreConfidenceCap verifies maximal inputs never exceed the cap.
func TestScoreConfidenceCap(t *testing.T) {
	scorer := mustScorer(t)

	in := Inputs{
		Structural: &structure.Analysis{
			Structure:   structure.MarketStructure{Bias: structure.Bullish},
			OrderBlocks: make([]structure.OrderBlock, 8),
			FVGs:        make([]structure.FairValueGap, 10),
		},
		MarketMaker: structure.MarketMakerRead{Confidence: 100, Direction: structure.FlowLong},
		MTF:         &analysis.MTFResult{Direction: structure.Bullish, Confluence: 1.0, TrendStrength: 1.0},
		Volume: &analysis.VolumeProfile{
			Class: analysis.VolumeBreakout, SpikePresent: true, VolumeRatio: 3.0,
		},
		NeuralScore:     100,
		NeuralDirection: structure.Bullish,
		NewsScore:       100,
		NewsSentiment:   structure.Bullish,
		SessionActive:   true,
	}
	for i := range in.Structural.OrderBlocks {
		in.Structural.OrderBlocks[i].Type = structure.Bullish
	}
	for i := range in.Structural.FVGs {
		in.Structural.FVGs[i].Type = structure.Bullish
	}

	verdict := scorer.Score(in)

	if verdict == nil {
		t.Fatal("Expected a verdict on maximal bullish inputs")
	}
	if verdict.Confidence != ConfidenceCap {
		t.Errorf("Expected confidence capped at %d, got %d", ConfidenceCap, verdict.Confidence)
	}
}
