package structure

import (
	"testing"

	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/marketdata"
)

// TestDetectBullishFVG verifies the exact gap boundaries of a bullish
// imbalance: bottom at bar1's high, top at bar3's low.
func TestDetectBullishFVG(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	candles := []marketdata.Candle{
		{Open: 95, High: 100, Low: 94, Close: 98, OpenTime: 1_000_000, CloseTime: 1_900_000},
		// Strong bullish middle: body 6.5 over range 8.
		{Open: 98, High: 105, Low: 97, Close: 104.5, OpenTime: 2_000_000, CloseTime: 2_900_000},
		{Open: 104, High: 108, Low: 101, Close: 106, OpenTime: 3_000_000, CloseTime: 3_900_000},
	}

	fvgs := analyzer.DetectFVGs(candles, marketdata.TF1h)

	if len(fvgs) != 1 {
		t.Fatalf("Expected 1 FVG, got %d", len(fvgs))
	}
	fvg := fvgs[0]
	if fvg.Type != Bullish {
		t.Errorf("Expected bullish FVG, got %s", fvg.Type)
	}
	if fvg.Bottom != 100 {
		t.Errorf("Expected bottom 100 (bar1 high), got %f", fvg.Bottom)
	}
	if fvg.Top != 101 {
		t.Errorf("Expected top 101 (bar3 low), got %f", fvg.Top)
	}
	if fvg.Status != StatusOpen {
		t.Errorf("New FVG should be OPEN, got %s", fvg.Status)
	}
}

// TestDetectBearishFVG verifies the mirror gap: top at bar1's low, bottom at
// bar3's high.
func TestDetectBearishFVG(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	candles := []marketdata.Candle{
		{Open: 105, High: 106, Low: 100, Close: 102, OpenTime: 1_000_000, CloseTime: 1_900_000},
		{Open: 102, High: 103, Low: 95, Close: 95.5, OpenTime: 2_000_000, CloseTime: 2_900_000},
		{Open: 96, High: 99, Low: 92, Close: 94, OpenTime: 3_000_000, CloseTime: 3_900_000},
	}

	fvgs := analyzer.DetectFVGs(candles, marketdata.TF1h)

	if len(fvgs) != 1 {
		t.Fatalf("Expected 1 FVG, got %d", len(fvgs))
	}
	fvg := fvgs[0]
	if fvg.Type != Bearish {
		t.Errorf("Expected bearish FVG, got %s", fvg.Type)
	}
	if fvg.Top != 100 {
		t.Errorf("Expected top 100 (bar1 low), got %f", fvg.Top)
	}
	if fvg.Bottom != 99 {
		t.Errorf("Expected bottom 99 (bar3 high), got %f", fvg.Bottom)
	}
}

// TestFVGRequiresStrongBody verifies a weak middle candle produces no gap
// even when the neighbors leave one.
func TestFVGRequiresStrongBody(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	candles := []marketdata.Candle{
		{Open: 95, High: 100, Low: 94, Close: 98},
		// Wide range, tiny body: 1 over 8.
		{Open: 98, High: 105, Low: 97, Close: 99},
		{Open: 104, High: 108, Low: 101, Close: 106},
	}

	if fvgs := analyzer.DetectFVGs(candles, marketdata.TF1h); len(fvgs) != 0 {
		t.Errorf("Expected no FVG with a weak middle body, got %d", len(fvgs))
	}
}

// TestMarkFilledFVGs verifies later price action trading into the gap flags
// it filled.
func TestMarkFilledFVGs(t *testing.T) {
	fvgs := []FairValueGap{
		{Type: Bullish, Top: 101, Bottom: 100, Timestamp: 2_000_000, Status: StatusOpen},
	}
	candles := []marketdata.Candle{
		{OpenTime: 4_000_000, High: 107, Low: 100.5, Open: 106, Close: 101},
	}

	MarkFilledFVGs(fvgs, candles)

	if fvgs[0].Status != StatusFilled {
		t.Errorf("Expected FILLED after price traded into the gap, got %s", fvgs[0].Status)
	}
}

// obFixture builds a window with one qualifying bullish order block at index 2.
func obFixture() []marketdata.Candle {
	return []marketdata.Candle{
		{Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000, OpenTime: 1_000_000},
		{Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000, OpenTime: 2_000_000},
		// Push candle: body 10 over range 11.5, volume 1.5x the prior average.
		{Open: 100, High: 111, Low: 99.5, Close: 110, Volume: 1500, OpenTime: 3_000_000},
		{Open: 110, High: 111.5, Low: 109.5, Close: 111, Volume: 1100, OpenTime: 4_000_000},
		{Open: 111, High: 112.5, Low: 110.5, Close: 112, Volume: 1100, OpenTime: 5_000_000},
		{Open: 112, High: 112.5, Low: 111.5, Close: 112, Volume: 1000, OpenTime: 6_000_000},
	}
}

// TestDetectOrderBlock verifies the strong-body, high-volume, two-close
// continuation rule.
func TestDetectOrderBlock(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	blocks := analyzer.DetectOrderBlocks(obFixture(), marketdata.TF15m, 112)

	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}
	ob := blocks[0]
	if ob.Type != Bullish {
		t.Errorf("Expected bullish block, got %s", ob.Type)
	}
	if ob.High != 111 || ob.Low != 99.5 {
		t.Errorf("Expected block bounds [99.5, 111], got [%f, %f]", ob.Low, ob.High)
	}
	if ob.Strength == StrengthWeak {
		t.Error("A qualifying push should not grade WEAK")
	}
}

// TestOrderBlockRejectsWeakVolume verifies the 1.2x volume floor.
func TestOrderBlockRejectsWeakVolume(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	candles := obFixture()
	candles[2].Volume = 1100 // 1.1x, under the threshold

	if blocks := analyzer.DetectOrderBlocks(candles, marketdata.TF15m, 112); len(blocks) != 0 {
		t.Errorf("Expected no blocks below the volume threshold, got %d", len(blocks))
	}
}

// TestOrderBlockRejectsNoFollowThrough verifies both continuation closes are
// required.
func TestOrderBlockRejectsNoFollowThrough(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	candles := obFixture()
	candles[4].Close = 110.5 // second close fails to extend past the first

	if blocks := analyzer.DetectOrderBlocks(candles, marketdata.TF15m, 112); len(blocks) != 0 {
		t.Errorf("Expected no blocks without follow-through, got %d", len(blocks))
	}
}

// TestOrderBlockCapAndOrder verifies at most 8 blocks survive, sorted by rank.
func TestOrderBlockCapAndOrder(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	// Chain 12 push-plus-follow-through patterns at increasing prices.
	var candles []marketdata.Candle
	price := 100.0
	ts := int64(1_000_000)
	for p := 0; p < 12; p++ {
		candles = append(candles,
			marketdata.Candle{Open: price, High: price + 0.5, Low: price - 0.5, Close: price, Volume: 1000, OpenTime: ts},
			marketdata.Candle{Open: price, High: price + 0.5, Low: price - 0.5, Close: price, Volume: 1000, OpenTime: ts + 1},
			marketdata.Candle{Open: price, High: price + 11, Low: price - 0.5, Close: price + 10, Volume: 1500, OpenTime: ts + 2},
			marketdata.Candle{Open: price + 10, High: price + 11.5, Low: price + 9.5, Close: price + 11, Volume: 1100, OpenTime: ts + 3},
			marketdata.Candle{Open: price + 11, High: price + 12.5, Low: price + 10.5, Close: price + 12, Volume: 1100, OpenTime: ts + 4},
		)
		price += 12
		ts += 10
	}

	blocks := analyzer.DetectOrderBlocks(candles, marketdata.TF15m, price)

	if len(blocks) > 8 {
		t.Fatalf("Expected at most 8 blocks, got %d", len(blocks))
	}
	if len(blocks) < 8 {
		t.Fatalf("Expected the cap to be reached, got %d", len(blocks))
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Rank > blocks[i-1].Rank {
			t.Fatalf("Blocks not sorted by rank at %d: %f after %f", i, blocks[i].Rank, blocks[i-1].Rank)
		}
	}
}

// TestDetectDemandZone verifies a tight base with a strong upside reaction
// reads as demand.
func TestDetectDemandZone(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	var candles []marketdata.Candle
	// Six-bar consolidation around 100.
	for i := 0; i < 6; i++ {
		candles = append(candles, marketdata.Candle{
			Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000, OpenTime: int64(i) * 1000,
		})
	}
	// Reaction: +3% close breaks out, then drift.
	candles = append(candles, marketdata.Candle{Open: 100, High: 103.5, Low: 100, Close: 103, Volume: 2000, OpenTime: 6000})
	for i := 0; i < 9; i++ {
		candles = append(candles, marketdata.Candle{
			Open: 103, High: 103.5, Low: 102.5, Close: 103, Volume: 1000, OpenTime: int64(7+i) * 1000,
		})
	}

	zones := analyzer.DetectZones(candles, 103)

	if len(zones) == 0 {
		t.Fatal("Expected a demand zone")
	}
	zone := zones[0]
	if zone.Type != ZoneDemand {
		t.Errorf("Expected DEMAND, got %s", zone.Type)
	}
	if zone.Top != 100.5 || zone.Bottom != 99.5 {
		t.Errorf("Expected zone bounds [99.5, 100.5], got [%f, %f]", zone.Bottom, zone.Top)
	}
	if zone.Strength == StrengthWeak {
		t.Error("Zones below MODERATE should have been filtered")
	}
}

// TestZonesRequireImmediateReaction verifies a zone only forms when the
// candle right after the base closes displaced; a flat bar first, even with a
// breakout behind it, means the level was not defended.
func TestZonesRequireImmediateReaction(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	var candles []marketdata.Candle
	// Six-bar consolidation around 100.
	for i := 0; i < 6; i++ {
		candles = append(candles, marketdata.Candle{
			Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000, OpenTime: int64(i) * 1000,
		})
	}
	// Flat first reaction bar with a wide wick sweep, closing back at 100.
	candles = append(candles, marketdata.Candle{Open: 100, High: 103.2, Low: 96.8, Close: 100, Volume: 1500, OpenTime: 6000})
	// The breakout only arrives on the second bar after the base.
	candles = append(candles, marketdata.Candle{Open: 100, High: 103.5, Low: 100, Close: 103, Volume: 2000, OpenTime: 7000})
	for i := 0; i < 12; i++ {
		candles = append(candles, marketdata.Candle{
			Open: 103, High: 103.5, Low: 102.5, Close: 103, Volume: 1000, OpenTime: int64(8+i) * 1000,
		})
	}

	zones := analyzer.DetectZones(candles, 103)

	if len(zones) != 0 {
		t.Fatalf("Expected no zones when the first reaction bar is flat, got %d (%+v)", len(zones), zones[0])
	}
}

// TestZonesRejectSmallDisplacement verifies the 2% reaction floor.
func TestZonesRejectSmallDisplacement(t *testing.T) {
	analyzer := NewAnalyzer(5, zerolog.Nop())

	var candles []marketdata.Candle
	for i := 0; i < 16; i++ {
		level := 100.0
		if i >= 6 {
			level = 101 // +1%, under the displacement floor
		}
		candles = append(candles, marketdata.Candle{
			Open: level, High: level + 0.5, Low: level - 0.5, Close: level, Volume: 1000, OpenTime: int64(i) * 1000,
		})
	}

	if zones := analyzer.DetectZones(candles, 101); len(zones) != 0 {
		t.Errorf("Expected no zones below the displacement floor, got %d", len(zones))
	}
}
