package signal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/events"
	"mt5-signal-engine/internal/marketdata"
	"mt5-signal-engine/internal/strategy"
)

// offlineFetcher simulates an unconfigured bridge.
type offlineFetcher struct{}

func (offlineFetcher) Configured() bool           { return false }
func (offlineFetcher) Ping(context.Context) error { return errors.New("offline") }
func (offlineFetcher) ResolveSymbol(context.Context, string) (string, error) {
	return "", errors.New("offline")
}
func (offlineFetcher) Quote(context.Context, string) (float64, float64, error) {
	return 0, 0, errors.New("offline")
}
func (offlineFetcher) FetchCandles(context.Context, string, marketdata.Timeframe, int) ([]marketdata.Candle, error) {
	return nil, errors.New("offline")
}

// zigzagFallback produces a deterministic rising zigzag: ten +2 steps then
// ten -1 steps per cycle, so structure, confluence and momentum all lean
// bullish.
type zigzagFallback struct{}

func (zigzagFallback) Candles(_ string, tf marketdata.Timeframe, count int, now time.Time) []marketdata.Candle {
	candles := make([]marketdata.Candle, count)
	barMs := tf.Duration().Milliseconds()
	end := now.UnixMilli()

	price := 100.0
	prev := price
	for i := 0; i < count; i++ {
		if phase := i % 20; phase < 10 {
			price += 2
		} else {
			price -= 1
		}
		high := price
		low := prev
		if prev > price {
			high, low = prev, price
		}
		candles[i] = marketdata.Candle{
			OpenTime:  end - int64(count-i)*barMs,
			Open:      prev,
			High:      high + 0.5,
			Low:       low - 0.5,
			Close:     price,
			Volume:    1000,
			CloseTime: end - int64(count-i-1)*barMs,
		}
		prev = price
	}
	return candles
}

func (zigzagFallback) Quote(_ string, lastClose float64) (float64, float64) {
	return lastClose - 0.05, lastClose + 0.05
}

func testEngine(t *testing.T) *Engine {
	t.Helper()

	provider := marketdata.NewProvider(offlineFetcher{}, nil, zigzagFallback{}, zerolog.Nop())
	scorer, err := NewScorer(DefaultWeights())
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}

	clock := func() time.Time {
		// 09:00 UTC: inside the London kill zone, far from the NY close.
		return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	}

	return NewEngine(
		provider,
		strategy.NewSelectorAt(clock),
		scorer,
		events.NewEventBus(),
		zerolog.Nop(),
		EngineOptions{Now: clock},
	)
}

// TestGenerateBullishSignal runs the full pipeline on a rising synthetic
// market and checks the emitted signal end to end.
func TestGenerateBullishSignal(t *testing.T) {
	engine := testEngine(t)

	resp, err := engine.Generate(context.Background(), Request{
		Symbol:         "EURUSD",
		AccountBalance: 10000,
		RiskPercentage: 1.0,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Signal == nil {
		t.Fatalf("Expected a signal on a clean uptrend, reasoning: %v", resp.Analysis.Reasoning)
	}
	sig := resp.Signal

	if sig.Direction != DirectionBuy {
		t.Errorf("Expected BUY in an uptrend, got %s", sig.Direction)
	}
	if sig.Confidence < 0 || sig.Confidence > ConfidenceCap {
		t.Errorf("Confidence %d outside [0, %d]", sig.Confidence, ConfidenceCap)
	}
	if sig.StopLoss >= sig.EntryPrice {
		t.Errorf("BUY stop %f should sit below entry %f", sig.StopLoss, sig.EntryPrice)
	}
	if sig.TakeProfit <= sig.EntryPrice {
		t.Errorf("BUY target %f should sit above entry %f", sig.TakeProfit, sig.EntryPrice)
	}
	if sig.PositionSize <= 0 {
		t.Errorf("Expected a positive position size, got %f", sig.PositionSize)
	}
	if sig.ID == "" {
		t.Error("Expected a generated signal ID")
	}
	if !sig.ValidUntil.After(sig.CreatedAt) {
		t.Errorf("Expiry %s not after creation %s", sig.ValidUntil, sig.CreatedAt)
	}
	if len(sig.ContributingFactors) == 0 {
		t.Error("Expected contributing factors on an emitted signal")
	}

	if resp.SystemStatus.DataQuality != string(marketdata.QualityFair) {
		t.Errorf("Synthetic run should grade FAIR, got %s", resp.SystemStatus.DataQuality)
	}
}

// TestGenerateRequireRealPropagates verifies the typed data error reaches the
// caller instead of a degraded response.
func TestGenerateRequireRealPropagates(t *testing.T) {
	engine := testEngine(t)

	_, err := engine.Generate(context.Background(), Request{
		Symbol:          "EURUSD",
		AccountBalance:  10000,
		RequireRealData: true,
	})

	if !errors.Is(err, marketdata.ErrDataUnavailable) {
		t.Fatalf("Expected ErrDataUnavailable, got %v", err)
	}
}

// TestGenerateDefaultsRiskPercent verifies the 1% default kicks in.
func TestGenerateDefaultsRiskPercent(t *testing.T) {
	engine := testEngine(t)

	withDefault, err := engine.Generate(context.Background(), Request{
		Symbol:         "EURUSD",
		AccountBalance: 10000,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	explicit, err := engine.Generate(context.Background(), Request{
		Symbol:         "EURUSD",
		AccountBalance: 10000,
		RiskPercentage: 1.0,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if withDefault.Signal == nil || explicit.Signal == nil {
		t.Fatal("Both runs should emit a signal")
	}
	if withDefault.Signal.PositionSize != explicit.Signal.PositionSize {
		t.Errorf("Default risk should equal explicit 1%%: %f vs %f",
			withDefault.Signal.PositionSize, explicit.Signal.PositionSize)
	}
}

// staticEnrichment returns a fixed payload, standing in for the subprocess
// source.
type staticEnrichment struct {
	payload json.RawMessage
}

func (s staticEnrichment) Fetch(context.Context, time.Time, []string) (json.RawMessage, error) {
	return s.payload, nil
}

// TestGenerateAttachesEnrichment verifies the fetched enrichment payload
// lands in the analysis report.
func TestGenerateAttachesEnrichment(t *testing.T) {
	payload := json.RawMessage(`{"economicEvents":[{"name":"NFP","impact":"HIGH"}]}`)

	provider := marketdata.NewProvider(offlineFetcher{}, nil, zigzagFallback{}, zerolog.Nop())
	scorer, err := NewScorer(DefaultWeights())
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	clock := func() time.Time {
		return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	}
	engine := NewEngine(provider, strategy.NewSelectorAt(clock), scorer,
		events.NewEventBus(), zerolog.Nop(),
		EngineOptions{Now: clock, Enrich: staticEnrichment{payload: payload}})

	resp, err := engine.Generate(context.Background(), Request{
		Symbol:         "EURUSD",
		AccountBalance: 10000,
		RiskPercentage: 1.0,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if string(resp.Analysis.Enrichment) != string(payload) {
		t.Errorf("Expected enrichment payload in the report, got %q", resp.Analysis.Enrichment)
	}
}

// TestGenerateRecoversFromPanic verifies a pipeline panic degrades to an
// empty poor-quality response instead of crashing.
func TestGenerateRecoversFromPanic(t *testing.T) {
	scorer, _ := NewScorer(DefaultWeights())
	// A nil provider panics on first use; the engine must absorb it.
	engine := NewEngine(nil, strategy.NewSelectorAt(time.Now), scorer,
		events.NewEventBus(), zerolog.Nop(), EngineOptions{})

	resp, err := engine.Generate(context.Background(), Request{
		Symbol:         "EURUSD",
		AccountBalance: 10000,
	})

	if err != nil {
		t.Fatalf("Recovered path should not return an error, got %v", err)
	}
	if resp == nil {
		t.Fatal("Expected a degraded response")
	}
	if resp.Signal != nil {
		t.Error("Degraded response should carry no signal")
	}
	if resp.SystemStatus.DataQuality != string(marketdata.QualityPoor) {
		t.Errorf("Expected POOR quality, got %s", resp.SystemStatus.DataQuality)
	}
	if resp.SystemStatus.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %d", resp.SystemStatus.Confidence)
	}
}
