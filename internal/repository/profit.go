package repository

import (
	"context"
	"fmt"

	"telegram-wager-bot/internal/model"
)

// AddProfit increments the profit ledger. TotalProfit grows by the sum of both fee kinds.
func (t *pgTx) AddProfit(ctx context.Context, d model.ProfitDelta) error {
	const query = `
		UPDATE profit_ledger
		SET game_fee = game_fee + $1,
			withdrawal_fee = withdrawal_fee + $2,
			total_profit = total_profit + $1 + $2,
			updated_at = NOW()
		WHERE id = 1
	`

	if _, err := t.tx.Exec(ctx, query, d.GameFee, d.WithdrawalFee); err != nil {
		return fmt.Errorf("failed to add profit: %w", err)
	}
	return nil
}

// GetProfits returns the current profit ledger.
func (t *pgTx) GetProfits(ctx context.Context) (*model.ProfitLedger, error) {
	const query = `
		SELECT game_fee, withdrawal_fee, total_profit, updated_at
		FROM profit_ledger
		WHERE id = 1
	`

	var p model.ProfitLedger
	if err := t.tx.QueryRow(ctx, query).Scan(&p.GameFee, &p.WithdrawalFee, &p.TotalProfit, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to get profits: %w", err)
	}
	return &p, nil
}
