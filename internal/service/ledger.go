package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/pkg/lock"
	"telegram-wager-bot/internal/pkg/money"
	"telegram-wager-bot/internal/pkg/reserve"
	"telegram-wager-bot/internal/repository"
)

// LedgerConfig holds ledger parameters.
type LedgerConfig struct {
	MoneyPlaces       int32
	WithdrawalFeeRate decimal.Decimal
}

// Ledger owns account balances and lifetime stats. Every mutation runs under
// the per-account locks of the accounts it touches and inside one store
// transaction.
type Ledger struct {
	store    repository.Store
	locks    *lock.UserLock
	reserver reserve.Reserver
	cfg      LedgerConfig
}

// NewLedger creates a new Ledger instance.
func NewLedger(store repository.Store, locks *lock.UserLock, reserver reserve.Reserver, cfg LedgerConfig) *Ledger {
	return &Ledger{
		store:    store,
		locks:    locks,
		reserver: reserver,
		cfg:      cfg,
	}
}

// Places returns the number of decimal places money is rounded to.
func (l *Ledger) Places() int32 {
	return l.cfg.MoneyPlaces
}

// Atomically locks accountIDs in ascending order and runs fn in one store
// transaction. Either every write fn makes through ltx commits or none does.
func (l *Ledger) Atomically(ctx context.Context, accountIDs []int64, fn func(ctx context.Context, ltx *LedgerTx) error) error {
	unlock := l.locks.LockAll(accountIDs...)
	defer unlock()

	return l.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &LedgerTx{tx: tx, places: l.cfg.MoneyPlaces})
	})
}

// GetAccount returns the account, creating it on first use.
func (l *Ledger) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	var acct *model.Account
	err := l.Atomically(ctx, []int64{id}, func(ctx context.Context, ltx *LedgerTx) error {
		var err error
		acct, err = ltx.Account(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// EnsureAccount registers the account under username. On creation only, a
// non-empty referralCode naming another account records that account as the
// referrer. Returns the account and whether it was newly created.
func (l *Ledger) EnsureAccount(ctx context.Context, id int64, username, referralCode string) (*model.Account, bool, error) {
	var (
		acct    *model.Account
		created bool
	)
	err := l.Atomically(ctx, []int64{id}, func(ctx context.Context, ltx *LedgerTx) error {
		existing, err := ltx.tx.GetAccount(ctx, id)
		if err == nil {
			acct = existing
			if username != "" && existing.Username != username {
				existing.Username = username
				return ltx.tx.SaveAccount(ctx, existing)
			}
			return nil
		}
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return fmt.Errorf("failed to get account: %w", err)
		}

		acct = newAccount(id, username)
		if referralCode != "" {
			referrer, err := ltx.tx.GetAccountByReferralCode(ctx, referralCode)
			switch {
			case err == nil && referrer.ID != id:
				acct.ReferredBy = &referrer.ID
			case err != nil && !errors.Is(err, repository.ErrAccountNotFound):
				return fmt.Errorf("failed to resolve referral code: %w", err)
			}
		}
		created, err = ltx.tx.CreateAccount(ctx, acct)
		if err != nil {
			return err
		}
		if !created {
			acct, err = ltx.tx.GetAccount(ctx, id)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}
	if created {
		log.Info().Int64("account_id", id).Str("username", username).
			Bool("referred", acct.ReferredBy != nil).Msg("Account created")
	}
	return acct, created, nil
}

// Debit removes amount from the account. It fails with ErrInsufficientFunds
// when amount exceeds the balance.
func (l *Ledger) Debit(ctx context.Context, id int64, amount decimal.Decimal) (*model.Account, error) {
	return l.single(ctx, id, func(ctx context.Context, ltx *LedgerTx) (*model.Account, error) {
		return ltx.Debit(ctx, id, amount)
	})
}

// Credit adds amount to the account.
func (l *Ledger) Credit(ctx context.Context, id int64, amount decimal.Decimal) (*model.Account, error) {
	return l.single(ctx, id, func(ctx context.Context, ltx *LedgerTx) (*model.Account, error) {
		return ltx.Credit(ctx, id, amount)
	})
}

// Adjust applies a signed change to the balance, saturating at zero.
func (l *Ledger) Adjust(ctx context.Context, id int64, delta decimal.Decimal) (*model.Account, error) {
	return l.single(ctx, id, func(ctx context.Context, ltx *LedgerTx) (*model.Account, error) {
		return ltx.Adjust(ctx, id, delta)
	})
}

// AdjustStats increments the account's lifetime stats.
func (l *Ledger) AdjustStats(ctx context.Context, id int64, delta model.StatsDelta) (*model.Account, error) {
	return l.single(ctx, id, func(ctx context.Context, ltx *LedgerTx) (*model.Account, error) {
		return ltx.AdjustStats(ctx, id, delta)
	})
}

func (l *Ledger) single(ctx context.Context, id int64, fn func(ctx context.Context, ltx *LedgerTx) (*model.Account, error)) (*model.Account, error) {
	var acct *model.Account
	err := l.Atomically(ctx, []int64{id}, func(ctx context.Context, ltx *LedgerTx) error {
		var err error
		acct, err = fn(ctx, ltx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Transfer moves amount from one account to another. A sender holding a
// pending wager or live session cannot transfer.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) error {
	amount = money.Round(amount, l.cfg.MoneyPlaces)
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfTransfer
	}
	if l.reserver != nil {
		if _, held, err := l.reserver.Holder(ctx, fromID); err != nil {
			return fmt.Errorf("failed to check reservation: %w", err)
		} else if held {
			return ErrAlreadyActive
		}
	}

	err := l.Atomically(ctx, []int64{fromID, toID}, func(ctx context.Context, ltx *LedgerTx) error {
		if _, err := ltx.Debit(ctx, fromID, amount); err != nil {
			return err
		}
		_, err := ltx.Credit(ctx, toID, amount)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Int64("from", fromID).Int64("to", toID).Str("amount", amount.String()).Msg("Transfer completed")
	return nil
}

// WithdrawResult describes a completed withdrawal.
type WithdrawResult struct {
	Account *model.Account
	Amount  decimal.Decimal
	Fee     decimal.Decimal
	Net     decimal.Decimal
}

// Withdraw debits amount for an external payout and books the withdrawal fee
// on the profit ledger. The payout itself happens outside the engine.
func (l *Ledger) Withdraw(ctx context.Context, id int64, amount decimal.Decimal) (*WithdrawResult, error) {
	amount = money.Round(amount, l.cfg.MoneyPlaces)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	fee := money.Round(amount.Mul(l.cfg.WithdrawalFeeRate), l.cfg.MoneyPlaces)

	res := &WithdrawResult{Amount: amount, Fee: fee, Net: amount.Sub(fee)}
	err := l.Atomically(ctx, []int64{id}, func(ctx context.Context, ltx *LedgerTx) error {
		acct, err := ltx.Debit(ctx, id, amount)
		if err != nil {
			return err
		}
		res.Account = acct
		return ltx.tx.AddProfit(ctx, model.ProfitDelta{GameFee: decimal.Zero, WithdrawalFee: fee})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("account_id", id).Str("amount", amount.String()).Str("fee", fee.String()).Msg("Withdrawal booked")
	return res, nil
}

// Profits returns the profit ledger.
func (l *Ledger) Profits(ctx context.Context) (*model.ProfitLedger, error) {
	var p *model.ProfitLedger
	err := l.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.GetProfits(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newAccount(id int64, username string) *model.Account {
	return &model.Account{
		ID:               id,
		Username:         username,
		Balance:          decimal.Zero,
		TotalWagered:     decimal.Zero,
		TotalWon:         decimal.Zero,
		ReferralCode:     uuid.NewString()[:8],
		ReferralEarnings: decimal.Zero,
	}
}

// LedgerTx is the ledger view of one open store transaction. It is only
// valid inside the fn passed to Ledger.Atomically.
type LedgerTx struct {
	tx     repository.Tx
	places int32
}

// Tx exposes the underlying store transaction for wager, session and history writes.
func (t *LedgerTx) Tx() repository.Tx {
	return t.tx
}

// Account returns the account, creating it with a zero balance if missing.
func (t *LedgerTx) Account(ctx context.Context, id int64) (*model.Account, error) {
	acct, err := t.tx.GetAccount(ctx, id)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	created, err := t.tx.CreateAccount(ctx, newAccount(id, ""))
	if err != nil {
		return nil, err
	}
	if created {
		log.Debug().Int64("account_id", id).Msg("Account created lazily")
	}
	return t.tx.GetAccount(ctx, id)
}

// Debit removes amount, failing with ErrInsufficientFunds if it exceeds the balance.
func (t *LedgerTx) Debit(ctx context.Context, id int64, amount decimal.Decimal) (*model.Account, error) {
	amount = money.Round(amount, t.places)
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	acct, err := t.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(acct.Balance) {
		return nil, ErrInsufficientFunds
	}
	acct.Balance = acct.Balance.Sub(amount)
	return acct, t.tx.SaveAccount(ctx, acct)
}

// Credit adds amount to the balance.
func (t *LedgerTx) Credit(ctx context.Context, id int64, amount decimal.Decimal) (*model.Account, error) {
	amount = money.Round(amount, t.places)
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return t.Adjust(ctx, id, amount)
}

// Adjust applies a signed change to the balance, saturating at zero.
func (t *LedgerTx) Adjust(ctx context.Context, id int64, delta decimal.Decimal) (*model.Account, error) {
	acct, err := t.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	next := acct.Balance.Add(money.Round(delta, t.places))
	if next.IsNegative() {
		log.Warn().Int64("account_id", id).Str("balance", acct.Balance.String()).
			Str("delta", delta.String()).Msg("Balance floored at zero")
	}
	acct.Balance = money.Floor(next)
	return acct, t.tx.SaveAccount(ctx, acct)
}

// AdjustStats increments the account's lifetime stats.
func (t *LedgerTx) AdjustStats(ctx context.Context, id int64, d model.StatsDelta) (*model.Account, error) {
	acct, err := t.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	acct.Wins += d.Wins
	acct.Losses += d.Losses
	acct.TotalWagered = acct.TotalWagered.Add(money.Round(d.TotalWagered, t.places))
	acct.TotalWon = acct.TotalWon.Add(money.Round(d.TotalWon, t.places))
	return acct, t.tx.SaveAccount(ctx, acct)
}

// AddReferralEarnings books a referral reward. The balance is not touched.
func (t *LedgerTx) AddReferralEarnings(ctx context.Context, id int64, amount decimal.Decimal) (*model.Account, error) {
	acct, err := t.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	acct.ReferralEarnings = acct.ReferralEarnings.Add(money.Round(amount, t.places))
	return acct, t.tx.SaveAccount(ctx, acct)
}
