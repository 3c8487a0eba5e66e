// Package store is the Postgres-backed implementation of domain.Store,
// adapted from the teacher's internal/database package and trimmed to the
// five tables a single-pair engine needs plus one trading-config record.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// Config holds the connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Store wraps the connection pool and satisfies domain.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// New opens the pool, pings it, and runs migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
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
		return nil, fmt.Errorf("%w: ping database", domain.ErrTransientIO)
	}

	s := &Store{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) runMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			id SERIAL PRIMARY KEY,
			address VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(100),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			position_id VARCHAR(64) PRIMARY KEY,
			wallet_address VARCHAR(64) NOT NULL,
			pair VARCHAR(20) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			entry_time TIMESTAMP NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			usdc_spent DECIMAL(20, 8),
			status VARCHAR(10) NOT NULL DEFAULT 'open',
			exit_price DECIMAL(20, 8),
			exit_time TIMESTAMP,
			pnl_percent DECIMAL(10, 6),
			usdc_received DECIMAL(20, 8),
			duration_seconds BIGINT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_wallet_status ON positions(wallet_address, status)`,
		`CREATE TABLE IF NOT EXISTS indicators (
			id SERIAL PRIMARY KEY,
			pair VARCHAR(20) NOT NULL,
			current_price DECIMAL(20, 8) NOT NULL,
			sma_20 DECIMAL(20, 8),
			sma_50 DECIMAL(20, 8),
			sma_200 DECIMAL(20, 8),
			rsi_14 DECIMAL(10, 4),
			rsi_fast DECIMAL(10, 4),
			rsi_slow DECIMAL(10, 4),
			volatility_24h DECIMAL(10, 6),
			price_momentum DECIMAL(10, 6),
			price_change_percent DECIMAL(10, 6),
			momentum_decay BOOLEAN DEFAULT FALSE,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indicators_pair_timestamp ON indicators(pair, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id SERIAL PRIMARY KEY,
			pair VARCHAR(20) NOT NULL,
			kind VARCHAR(10) NOT NULL,
			confidence DECIMAL(5, 4) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			reasoning TEXT,
			take_profit DECIMAL(20, 8),
			stop_loss DECIMAL(20, 8),
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_pair_timestamp ON signals(pair, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS trade_outcomes (
			id SERIAL PRIMARY KEY,
			pair VARCHAR(20) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			pnl DECIMAL(10, 6) NOT NULL,
			usdc_pnl DECIMAL(10, 6),
			success BOOLEAN NOT NULL,
			duration_seconds BIGINT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_outcomes_pair_timestamp ON trade_outcomes(pair, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS trading_config (
			pair VARCHAR(20) PRIMARY KEY,
			fields JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for i, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) CreateWallet(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallets (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`, address)
	return err
}

func (s *Store) CreatePosition(ctx context.Context, wallet domain.Wallet, pair string, entryPrice, qty float64, usdcSpent *float64) (string, error) {
	positionID := fmt.Sprintf("%s-%d", wallet.Address, time.Now().UnixNano())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (position_id, wallet_address, pair, entry_price, entry_time, quantity, usdc_spent, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open')
	`, positionID, wallet.Address, pair, entryPrice, time.Now(), qty, usdcSpent)
	if err != nil {
		return "", fmt.Errorf("%w: create position", domain.ErrTransientIO)
	}
	return positionID, nil
}

func (s *Store) ClosePosition(ctx context.Context, positionID string, exitPrice float64, usdcReceived *float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions
		SET status = 'closed', exit_price = $2, exit_time = $3, usdc_received = $4
		WHERE position_id = $1 AND status = 'open'
	`, positionID, exitPrice, time.Now(), usdcReceived)
	if err != nil {
		return fmt.Errorf("%w: close position", domain.ErrTransientIO)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: position %s not open", domain.ErrConsistency, positionID)
	}
	return nil
}

func (s *Store) OpenPositionForWallet(ctx context.Context, address string) (*domain.Position, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT position_id, wallet_address, pair, entry_price, entry_time, quantity, usdc_spent
		FROM positions
		WHERE wallet_address = $1 AND status = 'open'
		ORDER BY entry_time DESC
		LIMIT 1
	`, address)

	var p domain.Position
	var walletAddress string
	err := row.Scan(&p.PositionID, &walletAddress, &p.Pair, &p.EntryPrice, &p.EntryTime, &p.Quantity, &p.USDCSpent)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch open position for wallet", domain.ErrTransientIO)
	}
	p.Status = domain.PositionOpen
	return &p, nil
}

func (s *Store) StoreIndicators(ctx context.Context, ind domain.Indicators) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indicators (
			pair, current_price, sma_20, sma_50, sma_200, rsi_14, rsi_fast, rsi_slow,
			volatility_24h, price_momentum, price_change_percent, momentum_decay, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, ind.Pair, ind.CurrentPrice, ind.SMA20, ind.SMA50, ind.SMA200, ind.RSI14, ind.RSIFast, ind.RSISlow,
		ind.Volatility24h, ind.PriceMomentum, ind.PriceChangePercent, ind.MomentumDecay, ind.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: store indicators", domain.ErrTransientIO)
	}
	return nil
}

func (s *Store) StoreSignal(ctx context.Context, pair string, sig domain.Signal) error {
	reasoning, err := json.Marshal(sig.Reasoning)
	if err != nil {
		return fmt.Errorf("%w: marshal signal reasoning", domain.ErrInput)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO signals (pair, kind, confidence, price, reasoning, take_profit, stop_loss, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, pair, sig.Kind.String(), sig.Confidence, sig.Price, reasoning, sig.TakeProfit, sig.StopLoss, sig.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: store signal", domain.ErrTransientIO)
	}
	return nil
}

func (s *Store) RecordTradeOutcome(ctx context.Context, outcome domain.TradeOutcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trade_outcomes (pair, entry_price, exit_price, pnl, usdc_pnl, success, duration_seconds, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, "", outcome.EntryPrice, outcome.ExitPrice, outcome.PnL, outcome.USDCPnL, outcome.Success,
		outcome.DurationSeconds, outcome.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: record trade outcome", domain.ErrTransientIO)
	}
	return nil
}

func (s *Store) TradeHistory(ctx context.Context, pair string, limit int) ([]domain.TradeOutcome, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_price, exit_price, pnl, usdc_pnl, success, duration_seconds, timestamp
		FROM trade_outcomes
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query trade history", domain.ErrTransientIO)
	}
	defer rows.Close()

	var out []domain.TradeOutcome
	for rows.Next() {
		var o domain.TradeOutcome
		if err := rows.Scan(&o.EntryPrice, &o.ExitPrice, &o.PnL, &o.USDCPnL, &o.Success, &o.DurationSeconds, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan trade outcome", domain.ErrTransientIO)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: health ping", domain.ErrTransientIO)
	}
	return nil
}

func (s *Store) CountLearningRows(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_outcomes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count learning rows", domain.ErrTransientIO)
	}
	return n, nil
}

func (s *Store) PublishTradingConfig(ctx context.Context, pair string, fields map[string]interface{}) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: marshal trading config", domain.ErrInput)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO trading_config (pair, fields, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (pair) DO UPDATE SET fields = EXCLUDED.fields, updated_at = CURRENT_TIMESTAMP
	`, pair, payload)
	if err != nil {
		return fmt.Errorf("%w: publish trading config", domain.ErrTransientIO)
	}
	return nil
}
