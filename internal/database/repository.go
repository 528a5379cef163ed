// Package database persists generated signals to PostgreSQL. The store is
// write-only from the pipeline's point of view: persistence is an audit
// trail, never an input to scoring.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/signal"
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Repository wraps the PostgreSQL connection pool.
type Repository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New creates a repository and verifies connectivity.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Repository, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &Repository{pool: pool, logger: logger.With().Str("component", "database").Logger()}, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
}

// EnsureSchema creates the signals table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS signals (
		id UUID PRIMARY KEY,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		strategy TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		stop_loss DOUBLE PRECISION NOT NULL,
		take_profit DOUBLE PRECISION NOT NULL,
		risk_reward DOUBLE PRECISION NOT NULL,
		confidence INTEGER NOT NULL,
		position_size DOUBLE PRECISION NOT NULL,
		kelly_fraction DOUBLE PRECISION NOT NULL,
		valid_until TIMESTAMPTZ NOT NULL,
		analysis JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol_created ON signals (symbol, created_at DESC);`

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSignal writes one generated signal with its analysis report. Implements
// signal.Store.
func (r *Repository) SaveSignal(ctx context.Context, sig *signal.TradingSignal, report signal.AnalysisReport) error {
	analysisJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	const query = `
	INSERT INTO signals (
		id, symbol, direction, strategy, entry_price, stop_loss, take_profit,
		risk_reward, confidence, position_size, kelly_fraction, valid_until,
		analysis, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err = r.pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Direction), sig.Strategy,
		sig.EntryPrice, sig.StopLoss, sig.TakeProfit, sig.RiskRewardRatio,
		sig.Confidence, sig.PositionSize, sig.KellyFraction, sig.ValidUntil,
		analysisJSON, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the latest persisted signals for a symbol, newest
// first, for the history endpoint.
func (r *Repository) RecentSignals(ctx context.Context, symbol string, limit int) ([]signal.TradingSignal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const query = `
	SELECT id, symbol, direction, strategy, entry_price, stop_loss, take_profit,
	       risk_reward, confidence, position_size, kelly_fraction, valid_until, created_at
	FROM signals
	WHERE symbol = $1
	ORDER BY created_at DESC
	LIMIT $2`

	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []signal.TradingSignal
	for rows.Next() {
		var (
			s   signal.TradingSignal
			dir string
		)
		if err := rows.Scan(
			&s.ID, &s.Symbol, &dir, &s.Strategy, &s.EntryPrice, &s.StopLoss,
			&s.TakeProfit, &s.RiskRewardRatio, &s.Confidence, &s.PositionSize,
			&s.KellyFraction, &s.ValidUntil, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		s.Direction = signal.Direction(dir)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ping checks database health.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
