package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/analysis"
	"mt5-signal-engine/internal/enrichment"
	"mt5-signal-engine/internal/events"
	"mt5-signal-engine/internal/marketdata"
	"mt5-signal-engine/internal/risk"
	"mt5-signal-engine/internal/strategy"
	"mt5-signal-engine/internal/structure"
)

// primaryStructureTF is the timeframe structural analysis runs on.
const primaryStructureTF = marketdata.TF15m

// defaultRiskPercent applies when the request omits a risk percentage.
const defaultRiskPercent = 1.0

// Store persists generated signals. Persistence is best-effort and runs off
// the request path.
type Store interface {
	SaveSignal(ctx context.Context, sig *TradingSignal, report AnalysisReport) error
}

// Engine orchestrates the full pipeline: snapshot, parallel analysis,
// strategy selection, composite scoring and risk sizing.
type Engine struct {
	provider   *marketdata.Provider
	structural *structure.Analyzer
	mmModel    *structure.MarketMakerModel
	mtf        *analysis.TimeframeAnalyzer
	volume     *analysis.VolumeAnalyzer
	selector   *strategy.Selector
	sizer      *risk.Sizer
	scorer     *Scorer
	neural     NeuralScorer
	news       NewsScorer
	enrich     enrichment.Source
	bus        *events.EventBus
	store      Store
	logger     zerolog.Logger
	now        func() time.Time
}

// EngineOptions carries the optional collaborators.
type EngineOptions struct {
	Neural        NeuralScorer
	News          NewsScorer
	Enrich        enrichment.Source
	Store         Store
	Now           func() time.Time
	SwingLookback int
}

// NewEngine wires an engine. bus must not be nil; optional collaborators fall
// back to the built-in stubs.
func NewEngine(provider *marketdata.Provider, selector *strategy.Selector, scorer *Scorer, bus *events.EventBus, logger zerolog.Logger, opts EngineOptions) *Engine {
	e := &Engine{
		provider:   provider,
		structural: structure.NewAnalyzer(opts.SwingLookback, logger),
		mmModel:    structure.NewMarketMakerModel(),
		mtf:        analysis.NewTimeframeAnalyzer(),
		volume:     analysis.NewVolumeAnalyzer(0),
		selector:   selector,
		sizer:      risk.NewSizer(),
		scorer:     scorer,
		neural:     opts.Neural,
		news:       opts.News,
		enrich:     opts.Enrich,
		bus:        bus,
		store:      opts.Store,
		logger:     logger.With().Str("component", "engine").Logger(),
		now:        opts.Now,
	}
	if e.neural == nil {
		e.neural = HeuristicNeural{}
	}
	if e.news == nil {
		e.news = NeutralNews{}
	}
	if e.enrich == nil {
		e.enrich = enrichment.NoopSource{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Generate runs the pipeline for one request. A nil Signal in the response is
// the normal no-consensus outcome; the error return is reserved for hard
// failures such as ErrDataUnavailable. Panics anywhere in the pipeline
// degrade to a poor-quality empty response rather than crashing the server.
func (e *Engine) Generate(ctx context.Context, req Request) (resp *Response, err error) {
	started := e.now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("symbol", req.Symbol).Msg("pipeline panic recovered")
			e.bus.PublishError("engine", "pipeline panic", fmt.Errorf("%v", r))
			resp = e.degradedResponse(started, fmt.Sprintf("internal error while analyzing %s", req.Symbol))
			err = nil
		}
	}()

	if req.RiskPercentage <= 0 {
		req.RiskPercentage = defaultRiskPercent
	}

	snap, err := e.provider.Snapshot(ctx, req.Symbol, nil, req.RequireRealData)
	if err != nil {
		return nil, err
	}
	if snap.Degraded {
		e.bus.PublishDataDegraded(req.Symbol, string(snap.Quality))
	}

	primary := snap.Frame(primaryStructureTF)
	var primaryCandles []marketdata.Candle
	if primary != nil {
		primaryCandles = primary.Candles
	}

	// The analyzers are pure functions over the completed snapshot, so they
	// run concurrently without coordination beyond the join.
	var (
		wg         sync.WaitGroup
		structural *structure.Analysis
		mtfResult  *analysis.MTFResult
		volProfile *analysis.VolumeProfile
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		structural = e.structural.Analyze(primaryCandles, primaryStructureTF, snap.CurrentPrice)
	}()
	go func() {
		defer wg.Done()
		mtfResult = e.mtf.Analyze(snap)
	}()
	go func() {
		defer wg.Done()
		volProfile = e.volume.Analyze(primaryCandles)
	}()
	wg.Wait()

	mmRead := e.mmModel.Read(primaryCandles, structural)

	enriched := e.fetchEnrichment(ctx, req.Symbol)

	neuralScore, neuralDir := e.neural.Score(snap)
	newsScore, newsSentiment, newsHighImpact := e.news.Score(req.Symbol)

	// When a strategy is requested, measure volatility on its own primary
	// frame; otherwise ConditionsFrom falls back to the hourly frame.
	basis, _ := strategy.ProfileByName(req.PreferredStrategy)
	cond := strategy.ConditionsFrom(snap, basis, mtfResult.TrendStrength)
	selection := e.selector.Select(cond, req.PreferredStrategy)
	profile := selection.Profile

	conditions := MarketConditions{
		Trend:         structural.Structure.Trend,
		Bias:          structural.Structure.Bias,
		Phase:         mmRead.Phase,
		VolumeClass:   volProfile.Class,
		Volatility:    cond.Volatility,
		Confluence:    mtfResult.Confluence,
		FlowDirection: mmRead.Direction,
	}

	verdict := e.scorer.Score(Inputs{
		Structural:      structural,
		MarketMaker:     mmRead,
		MTF:             mtfResult,
		Volume:          volProfile,
		NeuralScore:     neuralScore,
		NeuralDirection: neuralDir,
		NewsScore:       newsScore,
		NewsSentiment:   newsSentiment,
		NewsHighImpact:  newsHighImpact,
		SessionActive:   InKillZone(e.now()),
	})

	if verdict == nil {
		e.bus.PublishSignalSkipped(req.Symbol, "no directional consensus")
		resp := e.skippedResponse(started, snap, conditions,
			"directional factors are balanced, holding is the higher-expectancy action")
		resp.Analysis.Enrichment = enriched
		return resp, nil
	}

	if float64(verdict.Confidence) < profile.MinConfidence {
		reason := fmt.Sprintf("confidence %d below %s minimum %.0f", verdict.Confidence, profile.Name, profile.MinConfidence)
		e.bus.PublishSignalSkipped(req.Symbol, reason)
		resp := e.skippedResponse(started, snap, conditions, reason)
		resp.Analysis.Enrichment = enriched
		return resp, nil
	}

	atr := 0.0
	if frame := snap.Frame(marketdata.TF1h); frame != nil {
		atr = frame.Indicators.ATR
	}
	targets := e.selector.ComputeTargets(req.Symbol, string(verdict.Direction), snap.CurrentPrice, atr, snap.Spread, profile)

	lot := e.sizer.PositionSize(req.AccountBalance, req.RiskPercentage, targets.EntryPrice, targets.StopLoss, profile)
	kelly := e.sizer.Kelly(profile)

	sig := &TradingSignal{
		ID:                  uuid.NewString(),
		Symbol:              req.Symbol,
		Direction:           verdict.Direction,
		Strategy:            profile.Name,
		EntryPrice:          targets.EntryPrice,
		StopLoss:            targets.StopLoss,
		TakeProfit:          targets.TakeProfit,
		RiskRewardRatio:     profile.RiskRewardRatio,
		Confidence:          verdict.Confidence,
		PositionSize:        lot,
		KellyFraction:       kelly,
		ValidUntil:          targets.ValidUntil,
		ContributingFactors: verdict.Factors,
		Warnings:            verdict.Warnings,
		CreatedAt:           e.now().UTC(),
	}

	report := AnalysisReport{
		MarketConditions: conditions,
		Reasoning:        e.reasoning(verdict, selection, snap),
		Alternatives:     e.alternatives(profile),
		Enrichment:       enriched,
	}

	e.bus.PublishSignalGenerated(sig.ID, sig.Symbol, string(sig.Direction), sig.Strategy, sig.Confidence, sig)
	e.persist(sig, report)

	e.logger.Info().
		Str("signal_id", sig.ID).
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Str("strategy", sig.Strategy).
		Int("confidence", sig.Confidence).
		Float64("lot", sig.PositionSize).
		Msg("signal generated")

	return &Response{
		Signal:   sig,
		Analysis: report,
		SystemStatus: SystemStatus{
			DataQuality: string(snap.Quality),
			LatencyMs:   e.now().Sub(started).Milliseconds(),
			Confidence:  sig.Confidence,
		},
	}, nil
}

// fetchEnrichment pulls external context for the day and returns the raw
// payload for the analysis report. Failures only log and yield nil; the
// pipeline never blocks on or fails from enrichment.
func (e *Engine) fetchEnrichment(ctx context.Context, symbol string) json.RawMessage {
	raw, err := e.enrich.Fetch(ctx, e.now().UTC(), []string{symbol})
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("enrichment fetch failed")
		return nil
	}
	if len(raw) > 0 {
		e.logger.Debug().Str("symbol", symbol).Int("bytes", len(raw)).Msg("enrichment fetched")
	}
	return raw
}

// persist hands the signal to the store off-path.
func (e *Engine) persist(sig *TradingSignal, report AnalysisReport) {
	if e.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.store.SaveSignal(ctx, sig, report); err != nil {
			e.logger.Error().Err(err).Str("signal_id", sig.ID).Msg("signal persist failed")
		}
	}()
}

func (e *Engine) reasoning(v *Verdict, sel strategy.Selection, snap *marketdata.Snapshot) []string {
	reasons := make([]string, 0, len(v.Factors)+3)
	reasons = append(reasons, fmt.Sprintf("%d of %d directional factors agree on %s",
		max(v.BullishCount, v.BearishCount), v.BullishCount+v.BearishCount, v.Direction))
	reasons = append(reasons, v.Factors...)
	if sel.Forced {
		reasons = append(reasons, "session close approaching, shortest-hold strategy enforced")
	}
	if snap.Degraded {
		reasons = append(reasons, "live feed unavailable, analysis ran on synthetic data")
	}
	return reasons
}

func (e *Engine) alternatives(chosen strategy.Profile) []string {
	var alts []string
	for _, p := range strategy.AllProfiles() {
		if p.Name != chosen.Name {
			alts = append(alts, p.Name)
		}
	}
	return alts
}

// skippedResponse builds the nil-signal response for a normal hold outcome.
func (e *Engine) skippedResponse(started time.Time, snap *marketdata.Snapshot, cond MarketConditions, reason string) *Response {
	return &Response{
		Analysis: AnalysisReport{
			MarketConditions: cond,
			Reasoning:        []string{reason},
		},
		SystemStatus: SystemStatus{
			DataQuality: string(snap.Quality),
			LatencyMs:   e.now().Sub(started).Milliseconds(),
		},
	}
}

// degradedResponse is the recover path: no signal, poor quality, zero
// confidence.
func (e *Engine) degradedResponse(started time.Time, reason string) *Response {
	return &Response{
		Analysis: AnalysisReport{
			Reasoning: []string{reason},
		},
		SystemStatus: SystemStatus{
			DataQuality: string(marketdata.QualityPoor),
			LatencyMs:   e.now().Sub(started).Milliseconds(),
		},
	}
}
