package structure

import (
	"fmt"
	"math"
	"sort"

	"mt5-signal-engine/internal/marketdata"
)

const (
	strongBodyRatio   = 0.60 // body must exceed 60% of the bar's range
	obVolumeThreshold = 1.2  // vs the 2-bar average before the block
	maxOrderBlocks    = 8
	maxFVGs           = 10
	maxZones          = 6
)

// DetectOrderBlocks scans for strongly bodied, high-volume push candles with
// two bars of follow-through, and returns at most maxOrderBlocks results
// sorted descending by strength-weighted proximity to the current price.
func (a *Analyzer) DetectOrderBlocks(candles []marketdata.Candle, tf marketdata.Timeframe, currentPrice float64) []OrderBlock {
	if len(candles) < 6 {
		return nil
	}

	var blocks []OrderBlock

	for i := 2; i < len(candles)-2; i++ {
		c := candles[i]
		rng := c.Range()
		if rng <= 0 {
			continue
		}

		bodyRatio := c.Body() / rng
		if bodyRatio <= strongBodyRatio {
			continue
		}

		avgVol := (candles[i-1].Volume + candles[i-2].Volume) / 2
		if avgVol <= 0 {
			continue
		}
		volumeRatio := c.Volume / avgVol
		if volumeRatio < obVolumeThreshold {
			continue
		}

		var dir Direction
		if c.IsBullish() &&
			candles[i+1].Close > c.Close && candles[i+2].Close > candles[i+1].Close {
			dir = Bullish
		} else if !c.IsBullish() && c.Close < c.Open &&
			candles[i+1].Close < c.Close && candles[i+2].Close < candles[i+1].Close {
			dir = Bearish
		} else {
			continue
		}

		score := 0.4*bodyRatio + 0.6*math.Min(volumeRatio/2, 1)
		mid := (c.High + c.Low) / 2
		distance := math.Abs(currentPrice - mid)

		distanceRatio := 0.0
		if currentPrice > 0 {
			distanceRatio = distance / currentPrice
		}

		blocks = append(blocks, OrderBlock{
			ID:        fmt.Sprintf("ob_%s_%d", tf, c.OpenTime),
			Type:      dir,
			Timeframe: tf,
			High:      c.High,
			Low:       c.Low,
			Volume:    c.Volume,
			Timestamp: c.OpenTime,
			Strength:  strengthBucket(score),
			Status:    StatusOpen,
			Distance:  distance,
			Rank:      score / (1 + distanceRatio*100),
		})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Rank > blocks[j].Rank })
	if len(blocks) > maxOrderBlocks {
		blocks = blocks[:maxOrderBlocks]
	}
	return blocks
}

// DetectFVGs finds 3-candle imbalances: a strongly directional middle candle
// whose neighbors leave a gap (bar3 low above bar1 high for bullish, mirror
// for bearish). Gaps that fail top > bottom are discarded; the 10 most recent
// survive.
func (a *Analyzer) DetectFVGs(candles []marketdata.Candle, tf marketdata.Timeframe) []FairValueGap {
	if len(candles) < 3 {
		return nil
	}

	var fvgs []FairValueGap

	for i := 1; i < len(candles)-1; i++ {
		mid := candles[i]
		rng := mid.Range()
		if rng <= 0 || mid.Body()/rng <= strongBodyRatio {
			continue
		}

		prev := candles[i-1]
		next := candles[i+1]

		var gap FairValueGap
		if mid.IsBullish() && next.Low > prev.High {
			gap = FairValueGap{
				Type:   Bullish,
				Top:    next.Low,
				Bottom: prev.High,
			}
		} else if !mid.IsBullish() && next.High < prev.Low {
			gap = FairValueGap{
				Type:   Bearish,
				Top:    prev.Low,
				Bottom: next.High,
			}
		} else {
			continue
		}

		if gap.Top <= gap.Bottom {
			continue
		}

		gapRatio := 0.0
		if mid.Close > 0 {
			gapRatio = (gap.Top - gap.Bottom) / mid.Close
		}

		gap.ID = fmt.Sprintf("fvg_%s_%d", tf, mid.OpenTime)
		gap.Timeframe = tf
		gap.Timestamp = mid.OpenTime
		gap.Status = StatusOpen
		gap.Strength = strengthBucket(math.Min(gapRatio*400, 1))
		fvgs = append(fvgs, gap)
	}

	if len(fvgs) > maxFVGs {
		fvgs = fvgs[len(fvgs)-maxFVGs:]
	}
	return fvgs
}

// MarkFilledFVGs flags gaps that later price action traded back into.
func MarkFilledFVGs(fvgs []FairValueGap, candles []marketdata.Candle) {
	for i := range fvgs {
		gap := &fvgs[i]
		if gap.Status != StatusOpen {
			continue
		}
		for _, c := range candles {
			if c.OpenTime <= gap.Timestamp {
				continue
			}
			if gap.Type == Bullish && c.Low <= gap.Top && c.Low >= gap.Bottom {
				gap.Status = StatusFilled
				break
			}
			if gap.Type == Bearish && c.High >= gap.Bottom && c.High <= gap.Top {
				gap.Status = StatusFilled
				break
			}
		}
	}
}

const (
	zoneBaseBars     = 6
	zoneReactionBars = 10
	zoneDisplacement = 0.02 // a close within the reaction window must move 2% off the base
)

// DetectZones finds supply/demand zones: a 6-bar consolidation base followed
// by a strong directional reaction. WEAK zones are filtered out and the top 6
// by strength-weighted proximity survive.
func (a *Analyzer) DetectZones(candles []marketdata.Candle, currentPrice float64) []SupplyDemandZone {
	if len(candles) < zoneBaseBars+zoneReactionBars {
		return nil
	}

	var zones []SupplyDemandZone

	for i := 0; i+zoneBaseBars+zoneReactionBars <= len(candles); i++ {
		base := candles[i : i+zoneBaseBars]

		top := base[0].High
		bottom := base[0].Low
		avgRange := 0.0
		volume := 0.0
		for _, c := range base {
			top = math.Max(top, c.High)
			bottom = math.Min(bottom, c.Low)
			avgRange += c.Range()
			volume += c.Volume
		}
		avgRange /= float64(len(base))

		// Consolidation: the base's total range stays under 3x its average
		// per-candle range.
		if avgRange <= 0 || top-bottom >= 3*avgRange {
			continue
		}

		baseClose := base[len(base)-1].Close

		// The candle immediately after the base must close displaced; a flat
		// bar first means the level was not defended and no zone forms.
		reaction := candles[i+zoneBaseBars]

		var zt ZoneType
		var displacement float64
		switch {
		case reaction.Close <= baseClose*(1-zoneDisplacement):
			zt = ZoneSupply
			displacement = (baseClose - reaction.Close) / baseClose
		case reaction.Close >= baseClose*(1+zoneDisplacement):
			zt = ZoneDemand
			displacement = (reaction.Close - baseClose) / baseClose
		default:
			continue
		}

		score := math.Min(displacement/0.05, 1)
		strength := strengthBucket(score)
		if strength == StrengthWeak {
			continue
		}

		mid := (top + bottom) / 2
		distanceRatio := 0.0
		if currentPrice > 0 {
			distanceRatio = math.Abs(currentPrice-mid) / currentPrice
		}

		zones = append(zones, SupplyDemandZone{
			ID:       fmt.Sprintf("zone_%d", base[0].OpenTime),
			Type:     zt,
			Top:      top,
			Bottom:   bottom,
			Volume:   volume,
			Strength: strength,
			Status:   StatusOpen,
			Rank:     score / (1 + distanceRatio*100),
		})
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Rank > zones[j].Rank })
	if len(zones) > maxZones {
		zones = zones[:maxZones]
	}
	return zones
}
