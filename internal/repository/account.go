package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-wager-bot/internal/model"
)

const accountColumns = `id, username, balance, wins, losses, total_wagered, total_won,
	referral_code, referred_by, referral_earnings, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Balance,
		&a.Wins,
		&a.Losses,
		&a.TotalWagered,
		&a.TotalWon,
		&a.ReferralCode,
		&a.ReferredBy,
		&a.ReferralEarnings,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount retrieves an account and locks its row.
// Returns ErrAccountNotFound if the account does not exist.
func (t *pgTx) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// CreateAccount inserts a new account. It returns false without error when
// another transaction created the same id first.
func (t *pgTx) CreateAccount(ctx context.Context, a *model.Account) (bool, error) {
	const query = `
		INSERT INTO accounts (id, username, balance, wins, losses, total_wagered, total_won,
			referral_code, referred_by, referral_earnings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRow(ctx, query,
		a.ID, a.Username, a.Balance, a.Wins, a.Losses, a.TotalWagered, a.TotalWon,
		a.ReferralCode, a.ReferredBy, a.ReferralEarnings,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create account: %w", err)
	}
	return true, nil
}

// SaveAccount writes every mutable account column.
func (t *pgTx) SaveAccount(ctx context.Context, a *model.Account) error {
	const query = `
		UPDATE accounts
		SET username = $2, balance = $3, wins = $4, losses = $5, total_wagered = $6,
			total_won = $7, referred_by = $8, referral_earnings = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := t.tx.QueryRow(ctx, query,
		a.ID, a.Username, a.Balance, a.Wins, a.Losses, a.TotalWagered,
		a.TotalWon, a.ReferredBy, a.ReferralEarnings,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// GetAccountByReferralCode retrieves the account owning a referral code.
func (t *pgTx) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

	a, err := scanAccount(t.tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return a, nil
}
