package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-wager-bot/internal/model"
)

// InsertCoinFlip stores a revealed coin flip.
func (t *pgTx) InsertCoinFlip(ctx context.Context, c *model.CoinFlip) error {
	const query = `
		INSERT INTO coin_flips (session_id, account_id, choice, derived, outcome,
			server_seed, server_seed_hash, client_seed, nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := t.tx.Exec(ctx, query,
		c.SessionID, c.AccountID, c.Choice, c.Derived, c.Outcome,
		c.ServerSeed, c.ServerSeedHash, c.ClientSeed, c.Nonce, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert coin flip: %w", err)
	}
	return nil
}

// GetCoinFlip retrieves a revealed coin flip by session id.
// Returns ErrCoinFlipNotFound if no flip was recorded for the session.
func (t *pgTx) GetCoinFlip(ctx context.Context, sessionID string) (*model.CoinFlip, error) {
	const query = `
		SELECT session_id, account_id, choice, derived, outcome,
			server_seed, server_seed_hash, client_seed, nonce, created_at
		FROM coin_flips
		WHERE session_id = $1
	`

	var c model.CoinFlip
	err := t.tx.QueryRow(ctx, query, sessionID).Scan(
		&c.SessionID,
		&c.AccountID,
		&c.Choice,
		&c.Derived,
		&c.Outcome,
		&c.ServerSeed,
		&c.ServerSeedHash,
		&c.ClientSeed,
		&c.Nonce,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCoinFlipNotFound
		}
		return nil, fmt.Errorf("failed to get coin flip: %w", err)
	}
	return &c, nil
}
