// Package risk turns account balance and stop distance into a bounded
// position size.
package risk

import (
	"math"

	"mt5-signal-engine/internal/strategy"
)

// Sizer computes risk-based position sizes. It is stateless.
type Sizer struct{}

// NewSizer creates a sizer.
func NewSizer() *Sizer {
	return &Sizer{}
}

// PositionSize returns min(riskAmount / stopDistance, profile max lot),
// rounded to 2 decimals, where riskAmount = balance * riskPercent / 100.
// A zero stop distance cannot be sized against, so the profile's max lot is
// returned as the conservative ceiling.
func (s *Sizer) PositionSize(accountBalance, riskPercent, entryPrice, stopLoss float64, p strategy.Profile) float64 {
	riskDistance := math.Abs(entryPrice - stopLoss)
	if riskDistance == 0 {
		return p.MaxLotSize
	}
	if accountBalance <= 0 || riskPercent <= 0 {
		return 0
	}

	riskAmount := accountBalance * riskPercent / 100
	size := riskAmount / riskDistance
	if size > p.MaxLotSize {
		size = p.MaxLotSize
	}

	return math.Round(size*100) / 100
}

// Kelly estimates the Kelly criterion fraction from the profile's backtest
// stats: (winRate*avgWin - (1-winRate)*avgLoss) / avgWin. Negative edges
// clamp to zero.
func (s *Sizer) Kelly(p strategy.Profile) float64 {
	if p.AvgWin == 0 {
		return 0
	}

	kelly := (p.WinRate*p.AvgWin - (1-p.WinRate)*p.AvgLoss) / p.AvgWin
	if kelly < 0 {
		return 0
	}
	return kelly
}
