// mt5-signal-engine serves trading-signal generation over HTTP: snapshot
// market data from an MT5 bridge (or a synthetic fallback), run the
// structural, multi-timeframe and volume analyzers, score a composite
// confidence and size the position.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mt5-signal-engine/config"
	"mt5-signal-engine/internal/api"
	"mt5-signal-engine/internal/bridge"
	"mt5-signal-engine/internal/cache"
	"mt5-signal-engine/internal/database"
	"mt5-signal-engine/internal/enrichment"
	"mt5-signal-engine/internal/events"
	"mt5-signal-engine/internal/logging"
	"mt5-signal-engine/internal/marketdata"
	sig "mt5-signal-engine/internal/signal"
	"mt5-signal-engine/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig.Level, cfg.LoggingConfig.Console)

	bus := events.NewEventBus()

	fetcher := bridge.NewClient(cfg.BridgeConfig.BaseURL, logger)

	var candleCache *cache.CandleCache
	if cfg.RedisConfig.Enabled {
		candleCache = cache.New(cfg.RedisConfig.Address, cfg.RedisConfig.Password, cfg.RedisConfig.DB, logger)
		defer candleCache.Close()
	}

	fallback := bridge.NewSynthesizer(nil)
	provider := marketdata.NewProvider(fetcher, candleCache, fallback, logger)

	weights := sig.Weights{
		SmartMoney:  cfg.EngineConfig.WeightSmartMoney,
		PriceAction: cfg.EngineConfig.WeightPriceAction,
		Volume:      cfg.EngineConfig.WeightVolume,
		Neural:      cfg.EngineConfig.WeightNeural,
		News:        cfg.EngineConfig.WeightNews,
	}
	scorer, err := sig.NewScorer(weights)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring weights")
	}

	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		repo, err = database.New(ctx, database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
		cancel()
		defer repo.Close()
	}

	var enrich enrichment.Source = enrichment.NoopSource{}
	if cfg.EnrichmentConfig.Binary != "" {
		enrich = enrichment.NewSubprocessSource(cfg.EnrichmentConfig.Binary, logger)
	}

	opts := sig.EngineOptions{Enrich: enrich, SwingLookback: cfg.EngineConfig.SwingLookback}
	if repo != nil {
		opts.Store = repo
	}
	engine := sig.NewEngine(provider, strategy.NewSelector(logger), scorer, bus, logger, opts)

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		RateLimitRPM:   cfg.ServerConfig.RateLimitRPM,
	}, engine, repo, bus, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case s := <-sigChan:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}
