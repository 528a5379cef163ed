// Package cache provides a Redis-backed candle cache for the data-fetch
// boundary. The cache degrades gracefully: any Redis error is treated as a
// miss and the provider falls through to the bridge.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/marketdata"
)

// CandleCache caches fetched candle series keyed by symbol, timeframe and
// requested bar count.
type CandleCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// New connects to Redis and returns a candle cache. A failed initial ping is
// logged but not fatal; the cache simply starts cold.
func New(addr, password string, db int, logger zerolog.Logger) *CandleCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cc := &CandleCache{
		client: client,
		logger: logger.With().Str("component", "candle-cache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		cc.logger.Warn().Err(err).Msg("redis unreachable, cache starts degraded")
	}
	return cc
}

func key(symbol string, tf marketdata.Timeframe, count int) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, tf, count)
}

// ttlFor scales cache lifetime with bar duration so lower timeframes stay
// fresh while higher ones are reused.
func ttlFor(tf marketdata.Timeframe) time.Duration {
	switch tf {
	case marketdata.TF5m:
		return 2 * time.Minute
	case marketdata.TF15m:
		return 5 * time.Minute
	case marketdata.TF30m:
		return 10 * time.Minute
	case marketdata.TF1h:
		return 30 * time.Minute
	case marketdata.TF4h:
		return 2 * time.Hour
	default:
		return time.Minute
	}
}

// Get returns cached candles or nil on any miss or error.
func (cc *CandleCache) Get(ctx context.Context, symbol string, tf marketdata.Timeframe, count int) []marketdata.Candle {
	if cc == nil {
		return nil
	}

	data, err := cc.client.Get(ctx, key(symbol, tf, count)).Bytes()
	if err != nil {
		return nil
	}

	var candles []marketdata.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		cc.logger.Warn().Err(err).Str("symbol", symbol).Msg("corrupt cache entry dropped")
		cc.client.Del(ctx, key(symbol, tf, count))
		return nil
	}
	return candles
}

// Set stores candles with a timeframe-scaled TTL. Errors are logged only.
func (cc *CandleCache) Set(ctx context.Context, symbol string, tf marketdata.Timeframe, count int, candles []marketdata.Candle) {
	if cc == nil {
		return
	}

	data, err := json.Marshal(candles)
	if err != nil {
		return
	}
	if err := cc.client.Set(ctx, key(symbol, tf, count), data, ttlFor(tf)).Err(); err != nil {
		cc.logger.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
}

// Close releases the Redis connection.
func (cc *CandleCache) Close() error {
	if cc == nil {
		return nil
	}
	return cc.client.Close()
}
