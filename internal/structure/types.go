// Package structure implements smart-money market structure analysis: swing
// points, HH/HL/LH/LL sequences, break-of-structure and change-of-character
// detection, order blocks, fair value gaps and supply/demand zones.
package structure

import (
	"mt5-signal-engine/internal/marketdata"
)

// Direction is a bullish/bearish/neutral classification.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// Trend labels the structural trend state.
type Trend string

const (
	Uptrend   Trend = "UPTREND"
	Downtrend Trend = "DOWNTREND"
	Ranging   Trend = "RANGING"
)

// Strength buckets a normalized [0,1] score.
type Strength string

const (
	StrengthWeak     Strength = "WEAK"
	StrengthModerate Strength = "MODERATE"
	StrengthStrong   Strength = "STRONG"
	StrengthExtreme  Strength = "EXTREME"
)

// strengthBucket maps a [0,1] score to a bucket at the 0.8/0.6/0.4 cutoffs.
func strengthBucket(score float64) Strength {
	switch {
	case score >= 0.8:
		return StrengthExtreme
	case score >= 0.6:
		return StrengthStrong
	case score >= 0.4:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// SwingPoint is a local extremum of the candle window.
type SwingPoint struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	IsHigh    bool    `json:"isHigh"`
}

// StructureType labels a structure point relative to the prior same-side point.
type StructureType string

const (
	HigherHigh StructureType = "HH"
	HigherLow  StructureType = "HL"
	LowerHigh  StructureType = "LH"
	LowerLow   StructureType = "LL"
)

// IsHigh reports whether the label belongs to a swing high.
func (st StructureType) IsHigh() bool {
	return st == HigherHigh || st == LowerHigh
}

// StructurePoint is a labeled entry of the alternating structure sequence.
type StructurePoint struct {
	Type      StructureType `json:"type"`
	Price     float64       `json:"price"`
	Timestamp int64         `json:"timestamp"`
}

// BreakType distinguishes continuation breaks from reversal breaks.
type BreakType string

const (
	BreakBOS   BreakType = "BOS"   // break of structure, trend continuation
	BreakCHOCH BreakType = "CHOCH" // change of character, possible reversal
)

// StructureBreak records a BOS or CHOCH event.
type StructureBreak struct {
	Type      BreakType `json:"type"`
	Direction Direction `json:"direction"`
	Price     float64   `json:"price"`
	Timestamp int64     `json:"timestamp"`
}

// ZoneStatus tracks whether a derived zone is still actionable.
type ZoneStatus string

const (
	StatusOpen      ZoneStatus = "OPEN"
	StatusTested    ZoneStatus = "TESTED"
	StatusFilled    ZoneStatus = "FILLED"
	StatusInvalided ZoneStatus = "INVALIDATED"
)

// OrderBlock marks a strong, high-volume directional push candle.
type OrderBlock struct {
	ID        string               `json:"id"`
	Type      Direction            `json:"type"`
	Timeframe marketdata.Timeframe `json:"timeframe"`
	High      float64              `json:"high"`
	Low       float64              `json:"low"`
	Volume    float64              `json:"volume"`
	Timestamp int64                `json:"timestamp"`
	Strength  Strength             `json:"strength"`
	Status    ZoneStatus           `json:"status"`
	Distance  float64              `json:"distance"` // to current price, price units
	Rank      float64              `json:"rank"`     // strength-weighted proximity
}

// FairValueGap is a 3-candle price imbalance. Invariant: Top > Bottom.
type FairValueGap struct {
	ID        string               `json:"id"`
	Type      Direction            `json:"type"`
	Timeframe marketdata.Timeframe `json:"timeframe"`
	Top       float64              `json:"top"`
	Bottom    float64              `json:"bottom"`
	Timestamp int64                `json:"timestamp"`
	Status    ZoneStatus           `json:"status"`
	Strength  Strength             `json:"strength"`
}

// ZoneType distinguishes supply from demand zones.
type ZoneType string

const (
	ZoneSupply ZoneType = "SUPPLY"
	ZoneDemand ZoneType = "DEMAND"
)

// SupplyDemandZone is a consolidation base preceding a strong directional move.
type SupplyDemandZone struct {
	ID       string     `json:"id"`
	Type     ZoneType   `json:"type"`
	Top      float64    `json:"top"`
	Bottom   float64    `json:"bottom"`
	Volume   float64    `json:"volume"`
	Strength Strength   `json:"strength"`
	Status   ZoneStatus `json:"status"`
	Rank     float64    `json:"rank"`
}

// MarketStructure summarizes the structural read of one candle window.
type MarketStructure struct {
	Trend     Trend            `json:"trend"`
	Bias      Direction        `json:"bias"`
	LastBOS   *StructureBreak  `json:"lastBos,omitempty"`
	LastCHOCH *StructureBreak  `json:"lastChoch,omitempty"`
	Points    []StructurePoint `json:"points"`
	KeyLevels []float64        `json:"keyLevels"`
}

// Analysis is the full structural output for one timeframe's window. It is
// recomputed from scratch on every call; nothing here is cached or shared.
type Analysis struct {
	Timeframe   marketdata.Timeframe `json:"timeframe"`
	Structure   MarketStructure      `json:"structure"`
	SwingPoints []SwingPoint         `json:"swingPoints"`
	Breaks      []StructureBreak     `json:"breaks"`
	OrderBlocks []OrderBlock         `json:"orderBlocks"`
	FVGs        []FairValueGap       `json:"fvgs"`
	Zones       []SupplyDemandZone   `json:"zones"`
}
