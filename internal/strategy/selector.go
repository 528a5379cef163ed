package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/marketdata"
)

// nyCloseHour/nyCloseMinute mark the 21:30 UTC New York close used to clamp
// intraday expirations and to force short-hold strategies late in the session.
const (
	nyCloseHour   = 21
	nyCloseMinute = 30
)

// Conditions summarizes the market inputs strategy selection depends on.
type Conditions struct {
	Volatility    float64 // ATR as a fraction of price on the profile's primary timeframe
	TrendStrength float64 // 0..1
}

// Selection is the chosen profile plus its fit score.
type Selection struct {
	Profile Profile `json:"profile"`
	Score   float64 `json:"score"`
	Forced  bool    `json:"forced"` // session-close override applied
}

// Targets are the computed execution levels for a signal.
type Targets struct {
	EntryPrice float64   `json:"entryPrice"`
	StopLoss   float64   `json:"stopLoss"`
	TakeProfit float64   `json:"takeProfit"`
	ValidUntil time.Time `json:"validUntil"`
}

// Selector chooses a strategy profile and computes execution targets. The
// clock is injectable so session-close behavior is testable.
type Selector struct {
	now    func() time.Time
	logger zerolog.Logger
}

// NewSelector creates a selector using the real clock.
func NewSelector(logger zerolog.Logger) *Selector {
	return &Selector{
		now:    time.Now,
		logger: logger.With().Str("component", "strategy").Logger(),
	}
}

// NewSelectorAt creates a selector with a fixed clock, for tests.
func NewSelectorAt(now func() time.Time) *Selector {
	return &Selector{now: now}
}

// Select picks the strategy for the given conditions. A preferred strategy is
// honored when it tolerates current volatility (within 2x its threshold) and
// trend strength (at least 0.8x its requirement); otherwise every profile is
// scored and the best fit wins, with ties falling to the lower-risk profile.
// Under 2 hours to the New York close the shortest-holding profile is forced.
func (s *Selector) Select(cond Conditions, preferred string) Selection {
	if remaining := s.timeToNYClose(); remaining < 2*time.Hour {
		forced := shortestHold()
		s.logger.Info().Str("strategy", forced.Name).Dur("to_close", remaining).Msg("session close override")
		return Selection{Profile: forced, Score: scoreProfile(forced, cond), Forced: true}
	}

	if preferred != "" {
		if p, ok := ProfileByName(preferred); ok && validFor(p, cond) {
			return Selection{Profile: p, Score: scoreProfile(p, cond)}
		}
	}

	all := AllProfiles()
	sort.Slice(all, func(i, j int) bool { return all[i].riskRank < all[j].riskRank })

	best := all[0]
	bestScore := scoreProfile(best, cond)
	for _, p := range all[1:] {
		// Strictly greater keeps ties on the lower-risk profile, which
		// sorts first.
		if score := scoreProfile(p, cond); score > bestScore {
			best = p
			bestScore = score
		}
	}
	return Selection{Profile: best, Score: bestScore}
}

// validFor checks a preferred profile against current conditions.
func validFor(p Profile, cond Conditions) bool {
	return cond.Volatility <= p.VolatilityThreshold*2 &&
		cond.TrendStrength >= p.TrendStrengthMin*0.8
}

// scoreProfile rates a profile: 50 base, up to 30 for volatility fit and a
// bonus scaling with trend strength beyond the profile's requirement.
func scoreProfile(p Profile, cond Conditions) float64 {
	volatilityFit := 0.0
	if p.VolatilityThreshold > 0 {
		volatilityFit = 1 - math.Abs(cond.Volatility-p.VolatilityThreshold)/p.VolatilityThreshold
		if volatilityFit < 0 {
			volatilityFit = 0
		}
	}

	trendBonus := 0.0
	if cond.TrendStrength > p.TrendStrengthMin {
		trendBonus = (cond.TrendStrength - p.TrendStrengthMin) * 20
	}

	return 50 + 30*volatilityFit + trendBonus
}

func shortestHold() Profile {
	all := AllProfiles()
	best := all[0]
	for _, p := range all[1:] {
		if p.MaxHoldingHours < best.MaxHoldingHours {
			best = p
		}
	}
	return best
}

// timeToNYClose returns the duration until the next 21:30 UTC close.
func (s *Selector) timeToNYClose() time.Duration {
	now := s.now().UTC()
	close := time.Date(now.Year(), now.Month(), now.Day(), nyCloseHour, nyCloseMinute, 0, 0, time.UTC)
	if !close.After(now) {
		close = close.Add(24 * time.Hour)
	}
	return close.Sub(now)
}

// ComputeTargets derives entry, stop, target and expiry for a direction
// ("BUY" or "SELL"). The stop distance is the ATR-scaled strategy stop
// floored at 3x the current spread so market noise cannot tag it, and both
// distances are clamped up to the symbol's minimum tick movement. Prices are
// rounded to 5 decimal places. The calculation depends only on its inputs:
// recomputing with the returned entry as currentPrice yields the same levels.
func (s *Selector) ComputeTargets(symbol string, direction string, currentPrice, atr, spread float64, p Profile) Targets {
	spec := SpecFor(symbol)

	stopDistance := math.Max(atr*spec.VolatilityMultiplier*p.StopLossMultiplier, 3*spread)
	if stopDistance < spec.MinTickMove {
		stopDistance = spec.MinTickMove
	}

	targetDistance := stopDistance * p.RiskRewardRatio
	if targetDistance < spec.MinTickMove {
		targetDistance = spec.MinTickMove
	}

	entry := round5(currentPrice)
	var stop, target float64
	if direction == "SELL" {
		stop = round5(entry + stopDistance)
		target = round5(entry - targetDistance)
	} else {
		stop = round5(entry - stopDistance)
		target = round5(entry + targetDistance)
	}

	return Targets{
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		ValidUntil: s.expiry(p),
	}
}

// expiry is now + max holding, clamped to the next New York close for
// intraday-class profiles.
func (s *Selector) expiry(p Profile) time.Time {
	now := s.now().UTC()
	expiry := now.Add(time.Duration(p.MaxHoldingHours * float64(time.Hour)))

	if p.IntradayClass {
		close := time.Date(now.Year(), now.Month(), now.Day(), nyCloseHour, nyCloseMinute, 0, 0, time.UTC)
		if !close.After(now) {
			close = close.Add(24 * time.Hour)
		}
		if expiry.After(close) {
			expiry = close
		}
	}
	return expiry
}

// ConditionsFrom reads the selector inputs off a snapshot for a profile's
// primary timeframe, falling back to 1h when the frame is missing.
func ConditionsFrom(snap *marketdata.Snapshot, p Profile, trendStrength float64) Conditions {
	tf := marketdata.TF1h
	if len(p.Timeframes) > 0 {
		tf = p.Timeframes[0]
	}

	frame := snap.Frame(tf)
	if frame == nil {
		frame = snap.Frame(marketdata.TF1h)
	}

	volatility := 0.0
	if frame != nil && snap.CurrentPrice > 0 {
		volatility = frame.Indicators.ATR / snap.CurrentPrice
	}

	return Conditions{Volatility: volatility, TrendStrength: trendStrength}
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
