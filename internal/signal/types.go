// Package signal fuses the analytic subsystems into one scored, risk-bounded
// trade signal.
package signal

import (
	"encoding/json"
	"time"

	"mt5-signal-engine/internal/analysis"
	"mt5-signal-engine/internal/structure"
)

// Direction of an emitted signal.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// ConfidenceCap bounds the final confidence of any signal.
const ConfidenceCap = 95

// TradingSignal is the final, immutable output of the pipeline. Ownership
// passes to the caller; the engine never reads a signal back.
type TradingSignal struct {
	ID                  string    `json:"id"`
	Symbol              string    `json:"symbol"`
	Direction           Direction `json:"direction"`
	Strategy            string    `json:"strategy"`
	EntryPrice          float64   `json:"entryPrice"`
	StopLoss            float64   `json:"stopLoss"`
	TakeProfit          float64   `json:"takeProfit"`
	RiskRewardRatio     float64   `json:"riskRewardRatio"`
	Confidence          int       `json:"confidence"` // 0..95
	PositionSize        float64   `json:"positionSize"`
	KellyFraction       float64   `json:"kellyFraction"`
	ValidUntil          time.Time `json:"validUntil"`
	ContributingFactors []string  `json:"contributingFactors"`
	Warnings            []string  `json:"warnings,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Request is the external request contract.
type Request struct {
	Symbol            string  `json:"symbol" binding:"required"`
	AccountBalance    float64 `json:"accountBalance" binding:"required,gt=0"`
	RiskPercentage    float64 `json:"riskPercentage,omitempty"`
	PreferredStrategy string  `json:"preferredStrategy,omitempty"`
	RequireRealData   bool    `json:"requireRealData,omitempty"`
}

// MarketConditions summarizes the analyzed market state for the response.
type MarketConditions struct {
	Trend         structure.Trend         `json:"trend"`
	Bias          structure.Direction     `json:"bias"`
	Phase         structure.Phase         `json:"phase"`
	VolumeClass   analysis.VolumeClass    `json:"volumeClass"`
	Volatility    float64                 `json:"volatility"`
	Confluence    float64                 `json:"confluence"`
	FlowDirection structure.FlowDirection `json:"flowDirection"`
}

// AnalysisReport carries the explanation alongside the signal. Enrichment is
// the raw payload from the external context source, absent when none is
// configured or the fetch failed.
type AnalysisReport struct {
	MarketConditions MarketConditions `json:"marketConditions"`
	Reasoning        []string         `json:"reasoning"`
	Alternatives     []string         `json:"alternatives"`
	Enrichment       json.RawMessage  `json:"enrichment,omitempty"`
}

// SystemStatus reports pipeline health for the response envelope.
type SystemStatus struct {
	DataQuality string `json:"dataQuality"`
	LatencyMs   int64  `json:"latencyMs"`
	Confidence  int    `json:"confidence"`
}

// Response is the external response contract. Signal is nil both for
// no-consensus outcomes and degraded failures; the reasoning tells them apart.
type Response struct {
	Signal       *TradingSignal `json:"signal"`
	Analysis     AnalysisReport `json:"analysis"`
	SystemStatus SystemStatus   `json:"systemStatus"`
}
