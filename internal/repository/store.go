// Package repository provides the account, wager and session store.
//
// Every access goes through Store.WithTx so that a settlement's ledger,
// session and history writes commit or roll back together.
package repository

import (
	"context"
	"errors"

	"telegram-wager-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrWagerNotFound    = errors.New("wager not found")
	ErrWagerExists      = errors.New("account already has a pending wager in this chat")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCoinFlipNotFound = errors.New("coin flip not found")
	ErrMatchExists      = errors.New("match already recorded for session")
)

// Tx is the set of operations available inside one atomic unit.
type Tx interface {
	// GetAccount returns the account and, in stores that support it, locks
	// its row until the transaction ends.
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	// CreateAccount inserts a, reporting false if the id already existed.
	CreateAccount(ctx context.Context, a *model.Account) (bool, error)
	SaveAccount(ctx context.Context, a *model.Account) error
	GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error)

	InsertWager(ctx context.Context, w *model.PendingWager) error
	GetWager(ctx context.Context, id string) (*model.PendingWager, error)
	SaveWager(ctx context.Context, w *model.PendingWager) error
	DeleteWager(ctx context.Context, id string) error
	ListWagers(ctx context.Context) ([]*model.PendingWager, error)

	InsertSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]*model.Session, error)

	InsertMatch(ctx context.Context, m *model.MatchRecord) error
	ListMatches(ctx context.Context, accountID int64, limit int) ([]*model.MatchRecord, error)

	InsertCoinFlip(ctx context.Context, c *model.CoinFlip) error
	GetCoinFlip(ctx context.Context, sessionID string) (*model.CoinFlip, error)

	AddProfit(ctx context.Context, d model.ProfitDelta) error
	GetProfits(ctx context.Context) (*model.ProfitLedger, error)
}

// Store runs fn inside one atomic unit. If fn returns an error every write it
// made is discarded and the error is returned unchanged.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
