package signal

import (
	"mt5-signal-engine/internal/marketdata"
	"mt5-signal-engine/internal/structure"
)

// NeuralScorer is the pluggable neural sub-score input: a score in [0,100]
// and a directional lean.
type NeuralScorer interface {
	Score(snap *marketdata.Snapshot) (float64, structure.Direction)
}

// NewsScorer is the pluggable news-sentiment input: a score in [0,100], a
// sentiment lean and whether a high-impact event is in play.
type NewsScorer interface {
	Score(symbol string) (float64, structure.Direction, bool)
}

// HeuristicNeural is the stand-in neural scorer: a deterministic blend of
// RSI positioning and MACD histogram sign on the hourly frame. It honors the
// numeric contract without any model behind it.
type HeuristicNeural struct{}

// Score implements NeuralScorer.
func (HeuristicNeural) Score(snap *marketdata.Snapshot) (float64, structure.Direction) {
	frame := snap.Frame(marketdata.TF1h)
	if frame == nil {
		return 50, structure.Neutral
	}

	ind := frame.Indicators
	score := 50.0
	dir := structure.Neutral

	switch {
	case ind.RSI < 30:
		score += 15
		dir = structure.Bullish
	case ind.RSI > 70:
		score += 15
		dir = structure.Bearish
	case ind.RSI > 55:
		score += 5
		dir = structure.Bullish
	case ind.RSI < 45:
		score += 5
		dir = structure.Bearish
	}

	if ind.MACDHistogram > 0 {
		score += 10
		if dir == structure.Neutral {
			dir = structure.Bullish
		}
	} else if ind.MACDHistogram < 0 {
		score += 10
		if dir == structure.Neutral {
			dir = structure.Bearish
		}
	}

	if score > 100 {
		score = 100
	}
	return score, dir
}

// NeutralNews is the stand-in news scorer: no feed wired, so it always
// reports a neutral 50 with no high-impact events.
type NeutralNews struct{}

// Score implements NewsScorer.
func (NeutralNews) Score(string) (float64, structure.Direction, bool) {
	return 50, structure.Neutral, false
}
