package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
)

var ErrNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

func (c DBConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Store persists cycle snapshots, performance points and strategies in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg DBConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewStore(db)
	s.logger.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Connected to PostgreSQL")
	return s, nil
}

// NewStore wraps an existing pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, logger: logger.GetForComponent("state_store")}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.logger.Info().Msg("Closing database connection")
	return s.db.Close()
}

// Ping reports whether the database answers within five seconds.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS cycle_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		risk_tier VARCHAR(16) NOT NULL,

		-- Sentiment and decision
		sentiment_score DECIMAL(10, 4) NOT NULL,
		sentiment_confidence DECIMAL(10, 4) NOT NULL,
		sentiment_sources TEXT[],
		band VARCHAR(16) NOT NULL,
		emergency BOOLEAN NOT NULL DEFAULT FALSE,
		decision JSONB,

		-- The plan
		target_allocations JSONB,
		expected_apy DECIMAL(20, 8),
		portfolio_risk DECIMAL(10, 8),
		deltas JSONB,

		-- The outcome
		initial_value_usd DECIMAL(20, 8) NOT NULL,
		final_value_usd DECIMAL(20, 8) NOT NULL,
		receipts JSONB,
		tx_ids TEXT[],
		strategy_actions JSONB,
		errors TEXT[]
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);

	CREATE TABLE IF NOT EXISTS performance_points (
		point_id BIGSERIAL PRIMARY KEY,
		strategy_id VARCHAR(64) NOT NULL,
		point_timestamp TIMESTAMPTZ NOT NULL,
		value_usd DECIMAL(20, 8) NOT NULL,
		sentiment_score DECIMAL(10, 4) NOT NULL,
		action VARCHAR(64)
	);
	CREATE INDEX IF NOT EXISTS idx_performance_points_strategy ON performance_points(strategy_id, point_timestamp);

	CREATE TABLE IF NOT EXISTS strategies (
		strategy_id VARCHAR(64) PRIMARY KEY,
		high_sentiment_threshold DECIMAL(10, 4) NOT NULL,
		low_sentiment_threshold DECIMAL(10, 4) NOT NULL,
		high_risk_pool VARCHAR(255) NOT NULL,
		low_risk_pool VARCHAR(255) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cycle_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);

	INSERT INTO cycle_counter (id, current_cycle)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;
`

// DropSchemaSQL removes every table EnsureSchema creates.
const DropSchemaSQL = `
	DROP TABLE IF EXISTS cycle_snapshots CASCADE;
	DROP TABLE IF EXISTS performance_points CASCADE;
	DROP TABLE IF EXISTS strategies CASCADE;
	DROP TABLE IF EXISTS cycle_counter CASCADE;
`

// EnsureSchema applies the DDL. It is safe to run repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	s.logger.Info().Msg("Database schema ensured")
	return nil
}

// ResetSchema drops and recreates all tables.
func (s *Store) ResetSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, DropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	s.logger.Warn().Msg("All tables dropped")
	return s.EnsureSchema(ctx)
}
