// Package strategy selects a trading strategy profile for current market
// conditions and computes entry, stop, target and expiry for a signal.
package strategy

import (
	"strings"

	"mt5-signal-engine/internal/marketdata"
)

// Profile is an immutable strategy configuration.
type Profile struct {
	Name                 string
	Timeframes           []marketdata.Timeframe
	RiskRewardRatio      float64
	StopLossMultiplier   float64
	TakeProfitMultiplier float64
	MaxHoldingHours      float64
	MinConfidence        float64
	MaxLotSize           float64
	VolatilityThreshold  float64 // ATR as a fraction of price the profile is tuned for
	TrendStrengthMin     float64
	IntradayClass        bool // expiry clamped to the New York close

	// Backtest-derived stats feeding the Kelly estimate.
	WinRate float64
	AvgWin  float64
	AvgLoss float64

	// riskRank orders profiles for tie-breaking; lower is more conservative.
	riskRank int
}

const (
	StrategyScalping = "SCALPING"
	StrategyIntraday = "INTRADAY"
	StrategySwing    = "SWING"
)

// profiles is the fixed strategy table.
var profiles = map[string]Profile{
	StrategyScalping: {
		Name:                 StrategyScalping,
		Timeframes:           []marketdata.Timeframe{marketdata.TF5m, marketdata.TF15m},
		RiskRewardRatio:      1.5,
		StopLossMultiplier:   1.0,
		TakeProfitMultiplier: 1.5,
		MaxHoldingHours:      2,
		MinConfidence:        65,
		MaxLotSize:           0.5,
		VolatilityThreshold:  0.0012,
		TrendStrengthMin:     0.3,
		IntradayClass:        true,
		WinRate:              0.58,
		AvgWin:               1.5,
		AvgLoss:              1.0,
		riskRank:             2,
	},
	StrategyIntraday: {
		Name:                 StrategyIntraday,
		Timeframes:           []marketdata.Timeframe{marketdata.TF15m, marketdata.TF30m, marketdata.TF1h},
		RiskRewardRatio:      2.0,
		StopLossMultiplier:   1.5,
		TakeProfitMultiplier: 3.0,
		MaxHoldingHours:      8,
		MinConfidence:        60,
		MaxLotSize:           1.0,
		VolatilityThreshold:  0.0020,
		TrendStrengthMin:     0.4,
		IntradayClass:        true,
		WinRate:              0.52,
		AvgWin:               2.0,
		AvgLoss:              1.0,
		riskRank:             1,
	},
	StrategySwing: {
		Name:                 StrategySwing,
		Timeframes:           []marketdata.Timeframe{marketdata.TF1h, marketdata.TF4h},
		RiskRewardRatio:      3.0,
		StopLossMultiplier:   2.0,
		TakeProfitMultiplier: 6.0,
		MaxHoldingHours:      72,
		MinConfidence:        55,
		MaxLotSize:           2.0,
		VolatilityThreshold:  0.0035,
		TrendStrengthMin:     0.55,
		IntradayClass:        false,
		WinRate:              0.45,
		AvgWin:               3.0,
		AvgLoss:              1.0,
		riskRank:             0,
	},
}

// ProfileByName looks up a profile, case-insensitively.
func ProfileByName(name string) (Profile, bool) {
	p, ok := profiles[strings.ToUpper(name)]
	return p, ok
}

// AllProfiles returns a copy of the strategy table values.
func AllProfiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	return out
}

// SymbolSpec carries per-symbol execution parameters.
type SymbolSpec struct {
	VolatilityMultiplier float64 // scales ATR into a stop distance
	MinTickMove          float64 // smallest meaningful stop/target distance
	Digits               int
}

// symbolSpecs covers the instruments the engine is tuned for; unknown
// symbols fall back to a generic FX spec.
var symbolSpecs = map[string]SymbolSpec{
	"EURUSD": {VolatilityMultiplier: 1.0, MinTickMove: 0.0005, Digits: 5},
	"GBPUSD": {VolatilityMultiplier: 1.1, MinTickMove: 0.0005, Digits: 5},
	"USDJPY": {VolatilityMultiplier: 1.0, MinTickMove: 0.05, Digits: 3},
	"USDCHF": {VolatilityMultiplier: 0.9, MinTickMove: 0.0005, Digits: 5},
	"AUDUSD": {VolatilityMultiplier: 1.0, MinTickMove: 0.0005, Digits: 5},
	"USDCAD": {VolatilityMultiplier: 1.0, MinTickMove: 0.0005, Digits: 5},
	"NZDUSD": {VolatilityMultiplier: 1.1, MinTickMove: 0.0005, Digits: 5},
	"EURJPY": {VolatilityMultiplier: 1.1, MinTickMove: 0.05, Digits: 3},
	"GBPJPY": {VolatilityMultiplier: 1.3, MinTickMove: 0.08, Digits: 3},
	"XAUUSD": {VolatilityMultiplier: 1.2, MinTickMove: 1.0, Digits: 2},
	"XAGUSD": {VolatilityMultiplier: 1.3, MinTickMove: 0.03, Digits: 3},
	"US30":   {VolatilityMultiplier: 1.2, MinTickMove: 10.0, Digits: 1},
	"NAS100": {VolatilityMultiplier: 1.3, MinTickMove: 8.0, Digits: 1},
	"BTCUSD": {VolatilityMultiplier: 1.5, MinTickMove: 50.0, Digits: 1},
}

// SpecFor returns the execution spec for a symbol.
func SpecFor(symbol string) SymbolSpec {
	if spec, ok := symbolSpecs[strings.ToUpper(symbol)]; ok {
		return spec
	}
	return SymbolSpec{VolatilityMultiplier: 1.0, MinTickMove: 0.0005, Digits: 5}
}
