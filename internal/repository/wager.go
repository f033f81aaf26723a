package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-wager-bot/internal/model"
)

const wagerColumns = `id, chat_id, account_id, amount, game_kind, mode, status,
	server_seed, server_seed_hash, client_seed, nonce, created_at`

func scanWager(row pgx.Row) (*model.PendingWager, error) {
	var (
		w                        model.PendingWager
		serverSeed, hash, client *string
		nonce                    *int64
	)
	err := row.Scan(
		&w.ID,
		&w.ChatID,
		&w.AccountID,
		&w.Amount,
		&w.Kind,
		&w.Mode,
		&w.Status,
		&serverSeed,
		&hash,
		&client,
		&nonce,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if serverSeed != nil && hash != nil && client != nil && nonce != nil {
		w.Commit = &model.FairCommit{
			ServerSeed:     *serverSeed,
			ServerSeedHash: *hash,
			ClientSeed:     *client,
			Nonce:          *nonce,
		}
	}
	return &w, nil
}

func commitArgs(c *model.FairCommit) (serverSeed, hash, client *string, nonce *int64) {
	if c == nil {
		return nil, nil, nil, nil
	}
	return &c.ServerSeed, &c.ServerSeedHash, &c.ClientSeed, &c.Nonce
}

// InsertWager stores a new pending wager.
// Returns ErrWagerExists if the account already has one in the chat.
func (t *pgTx) InsertWager(ctx context.Context, w *model.PendingWager) error {
	const query = `
		INSERT INTO pending_wagers (id, chat_id, account_id, amount, game_kind, mode, status,
			server_seed, server_seed_hash, client_seed, nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING
	`

	serverSeed, hash, client, nonce := commitArgs(w.Commit)
	tag, err := t.tx.Exec(ctx, query,
		w.ID, w.ChatID, w.AccountID, w.Amount, w.Kind, w.Mode, w.Status,
		serverSeed, hash, client, nonce, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWagerExists
	}
	return nil
}

// GetWager retrieves a pending wager and locks its row.
func (t *pgTx) GetWager(ctx context.Context, id string) (*model.PendingWager, error) {
	query := `SELECT ` + wagerColumns + ` FROM pending_wagers WHERE id = $1 FOR UPDATE`

	w, err := scanWager(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWagerNotFound
		}
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	return w, nil
}

// SaveWager updates the mutable wager columns.
func (t *pgTx) SaveWager(ctx context.Context, w *model.PendingWager) error {
	const query = `UPDATE pending_wagers SET mode = $2, status = $3 WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query, w.ID, w.Mode, w.Status)
	if err != nil {
		return fmt.Errorf("failed to save wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWagerNotFound
	}
	return nil
}

// DeleteWager removes a pending wager.
// Returns ErrWagerNotFound if it was already gone.
func (t *pgTx) DeleteWager(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM pending_wagers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWagerNotFound
	}
	return nil
}

// ListWagers returns every pending wager, oldest first.
func (t *pgTx) ListWagers(ctx context.Context) ([]*model.PendingWager, error) {
	query := `SELECT ` + wagerColumns + ` FROM pending_wagers ORDER BY created_at`

	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*model.PendingWager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wagers: %w", err)
	}
	return wagers, nil
}
