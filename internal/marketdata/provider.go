package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrDataUnavailable is the typed failure surfaced when real data was
// explicitly required and no live source could serve it.
var ErrDataUnavailable = errors.New("marketdata: data unavailable")

// DefaultBarCount is the number of bars fetched per timeframe. It covers the
// deepest lookback any analyzer uses with room to spare.
const DefaultBarCount = 100

// Fetcher is the live market-data boundary (the MT5 bridge client satisfies
// it). All calls are read-only and idempotent, so fetch-layer retries are safe.
type Fetcher interface {
	Configured() bool
	Ping(ctx context.Context) error
	ResolveSymbol(ctx context.Context, symbol string) (string, error)
	Quote(ctx context.Context, brokerSymbol string) (bid, ask float64, err error)
	FetchCandles(ctx context.Context, brokerSymbol string, tf Timeframe, count int) ([]Candle, error)
}

// Cache is the optional fetch-boundary candle cache.
type Cache interface {
	Get(ctx context.Context, symbol string, tf Timeframe, count int) []Candle
	Set(ctx context.Context, symbol string, tf Timeframe, count int, candles []Candle)
}

// Fallback generates synthetic candles when no live source is reachable.
type Fallback interface {
	Candles(symbol string, tf Timeframe, count int, now time.Time) []Candle
	Quote(symbol string, lastClose float64) (bid, ask float64)
}

// Provider assembles per-request market snapshots: per-timeframe candles plus
// derived indicators, from the live bridge when reachable and the synthetic
// fallback otherwise. A Provider is reentrant; each Snapshot call builds an
// independent result.
type Provider struct {
	fetcher  Fetcher
	cache    Cache
	fallback Fallback
	logger   zerolog.Logger
}

// NewProvider creates a provider. cache may be nil.
func NewProvider(fetcher Fetcher, cache Cache, fallback Fallback, logger zerolog.Logger) *Provider {
	return &Provider{
		fetcher:  fetcher,
		cache:    cache,
		fallback: fallback,
		logger:   logger.With().Str("component", "marketdata").Logger(),
	}
}

// Snapshot fetches candles for every requested timeframe concurrently and
// returns the validated snapshot. When the bridge is unreachable and
// requireReal is false, synthetic data is substituted and the snapshot is
// marked degraded; with requireReal true the call fails with
// ErrDataUnavailable instead.
func (p *Provider) Snapshot(ctx context.Context, symbol string, timeframes []Timeframe, requireReal bool) (*Snapshot, error) {
	if len(timeframes) == 0 {
		timeframes = DefaultTimeframes
	}

	brokerSymbol := ""
	live := false
	if p.fetcher != nil && p.fetcher.Configured() {
		if err := p.fetcher.Ping(ctx); err == nil {
			resolved, err := p.fetcher.ResolveSymbol(ctx, symbol)
			if err == nil {
				brokerSymbol = resolved
				live = true
			} else {
				p.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol resolution failed")
			}
		} else {
			p.logger.Warn().Err(err).Msg("bridge probe failed")
		}
	}

	if !live && requireReal {
		return nil, fmt.Errorf("%w: live source required for %s", ErrDataUnavailable, symbol)
	}

	snap := &Snapshot{
		Symbol:       symbol,
		ResolvedName: brokerSymbol,
		FetchedAt:    time.Now().UTC(),
		Frames:       make(map[Timeframe]*TimeframeData, len(timeframes)),
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fetchErr error
		degraded bool
	)

	for _, tf := range timeframes {
		wg.Add(1)
		go func(tf Timeframe) {
			defer wg.Done()

			frame, usedFallback, err := p.frameFor(ctx, symbol, brokerSymbol, tf, live, requireReal)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fetchErr == nil {
					fetchErr = err
				}
				return
			}
			if usedFallback {
				degraded = true
			}
			snap.Frames[tf] = frame
		}(tf)
	}
	wg.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	snap.Degraded = degraded || !live
	if snap.Degraded {
		snap.Quality = QualityFair
	} else {
		snap.Quality = QualityGood
	}

	p.fillQuote(ctx, snap, brokerSymbol, live)
	return snap, nil
}

// frameFor builds one timeframe's data: cache, then bridge, then synthetic.
func (p *Provider) frameFor(ctx context.Context, symbol, brokerSymbol string, tf Timeframe, live, requireReal bool) (*TimeframeData, bool, error) {
	if live {
		if p.cache != nil {
			if candles := p.cache.Get(ctx, brokerSymbol, tf, DefaultBarCount); len(candles) > 0 {
				return newFrame(tf, candles, SourceLive), false, nil
			}
		}

		candles, err := p.fetcher.FetchCandles(ctx, brokerSymbol, tf, DefaultBarCount)
		if err == nil {
			if p.cache != nil {
				p.cache.Set(ctx, brokerSymbol, tf, DefaultBarCount, candles)
			}
			return newFrame(tf, candles, SourceLive), false, nil
		}

		p.logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("live fetch failed")
		if requireReal {
			return nil, false, fmt.Errorf("%w: %s %s: %v", ErrDataUnavailable, symbol, tf, err)
		}
	}

	candles := p.fallback.Candles(symbol, tf, DefaultBarCount, time.Now().UTC())
	return newFrame(tf, candles, SourceSynthetic), true, nil
}

func newFrame(tf Timeframe, candles []Candle, src DataSource) *TimeframeData {
	return &TimeframeData{
		Timeframe:  tf,
		Candles:    candles,
		Indicators: ComputeIndicators(candles),
		Source:     src,
	}
}

// fillQuote sets the snapshot's current price and spread from a live quote
// when possible, otherwise from the synthetic profile around the last close.
func (p *Provider) fillQuote(ctx context.Context, snap *Snapshot, brokerSymbol string, live bool) {
	lastClose := 0.0
	if frame, ok := snap.Frames[TF5m]; ok && len(frame.Candles) > 0 {
		lastClose = frame.Last().Close
	} else {
		for _, frame := range snap.Frames {
			if len(frame.Candles) > 0 {
				lastClose = frame.Last().Close
				break
			}
		}
	}

	if live {
		if bid, ask, err := p.fetcher.Quote(ctx, brokerSymbol); err == nil {
			snap.CurrentPrice = (bid + ask) / 2
			snap.Spread = ask - bid
			return
		}
	}

	bid, ask := p.fallback.Quote(snap.Symbol, lastClose)
	snap.CurrentPrice = (bid + ask) / 2
	snap.Spread = ask - bid
}
