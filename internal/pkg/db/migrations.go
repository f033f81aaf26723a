package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"accounts", `
		CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			wins BIGINT NOT NULL DEFAULT 0,
			losses BIGINT NOT NULL DEFAULT 0,
			total_wagered NUMERIC(20, 2) NOT NULL DEFAULT 0,
			total_won NUMERIC(20, 2) NOT NULL DEFAULT 0,
			referral_code VARCHAR(16) NOT NULL UNIQUE,
			referred_by BIGINT,
			referral_earnings NUMERIC(20, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"pending_wagers", `
		CREATE TABLE IF NOT EXISTS pending_wagers (
			id VARCHAR(64) PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			account_id BIGINT NOT NULL,
			amount NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
			game_kind VARCHAR(32) NOT NULL,
			mode INT NOT NULL DEFAULT 0,
			status VARCHAR(32) NOT NULL,
			server_seed VARCHAR(64),
			server_seed_hash VARCHAR(64),
			client_seed VARCHAR(64),
			nonce BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (chat_id, account_id)
		);
		CREATE INDEX IF NOT EXISTS idx_pending_wagers_created ON pending_wagers(created_at);
	`},
	{"sessions", `
		CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			wager_id VARCHAR(64) NOT NULL,
			chat_id BIGINT NOT NULL,
			game_kind VARCHAR(32) NOT NULL,
			participant_a BIGINT NOT NULL,
			participant_b BIGINT NOT NULL,
			vs_house BOOLEAN NOT NULL DEFAULT FALSE,
			stake NUMERIC(20, 2) NOT NULL,
			required_wins INT NOT NULL DEFAULT 1,
			turn_holder BIGINT NOT NULL,
			round_index INT NOT NULL DEFAULT 1,
			round_a INT,
			round_b INT,
			score_a INT NOT NULL DEFAULT 0,
			score_b INT NOT NULL DEFAULT 0,
			status VARCHAR(32) NOT NULL,
			grid_rows INT,
			grid_cols INT,
			grid_cells SMALLINT[],
			field_rows INT,
			field_cols INT,
			mine_count INT,
			mines INT[],
			revealed INT[],
			safe_hits INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`},
	{"match_records", `
		CREATE TABLE IF NOT EXISTS match_records (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL UNIQUE,
			chat_id BIGINT NOT NULL,
			game_kind VARCHAR(32) NOT NULL,
			participant_a BIGINT NOT NULL,
			participant_b BIGINT NOT NULL,
			winner BIGINT,
			stake NUMERIC(20, 2) NOT NULL,
			fee NUMERIC(20, 2) NOT NULL DEFAULT 0,
			payout NUMERIC(20, 2) NOT NULL DEFAULT 0,
			score_a INT NOT NULL DEFAULT 0,
			score_b INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_match_records_a ON match_records(participant_a, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_match_records_b ON match_records(participant_b, created_at DESC);
	`},
	{"coin_flips", `
		CREATE TABLE IF NOT EXISTS coin_flips (
			session_id VARCHAR(64) PRIMARY KEY,
			account_id BIGINT NOT NULL,
			choice VARCHAR(8) NOT NULL,
			derived VARCHAR(8) NOT NULL,
			outcome VARCHAR(8) NOT NULL,
			server_seed VARCHAR(64) NOT NULL,
			server_seed_hash VARCHAR(64) NOT NULL,
			client_seed VARCHAR(64) NOT NULL,
			nonce BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"profit_ledger", `
		CREATE TABLE IF NOT EXISTS profit_ledger (
			id INT PRIMARY KEY CHECK (id = 1),
			game_fee NUMERIC(20, 2) NOT NULL DEFAULT 0,
			withdrawal_fee NUMERIC(20, 2) NOT NULL DEFAULT 0,
			total_profit NUMERIC(20, 2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		INSERT INTO profit_ledger (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
	`},
}

// Migrate creates the schema idempotently.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", i+1, m.name, err)
		}
		log.Debug().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}
	log.Info().Int("count", len(migrations)).Msg("Database migrations complete")
	return nil
}
