package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/pkg/lock"
	"telegram-wager-bot/internal/pkg/money"
	"telegram-wager-bot/internal/pkg/reserve"
	"telegram-wager-bot/internal/repository"
)

// committer is implemented by games that publish a provably fair commitment
// when the wager is placed.
type committer interface {
	Commit() model.FairCommit
}

// BetRegistry tracks placed but unaccepted wagers.
type BetRegistry struct {
	ledger   *Ledger
	games    *game.Registry
	reserver reserve.Reserver
	locks    *lock.SessionLock
	now      func() time.Time
}

// NewBetRegistry creates a new BetRegistry. locks must be the same instance
// the SessionMachine uses so that cancel and accept on one wager serialize.
func NewBetRegistry(ledger *Ledger, games *game.Registry, reserver reserve.Reserver, locks *lock.SessionLock) *BetRegistry {
	return &BetRegistry{
		ledger:   ledger,
		games:    games,
		reserver: reserver,
		locks:    locks,
		now:      time.Now,
	}
}

// PlaceWagerRequest is a bet placement from the chat transport.
type PlaceWagerRequest struct {
	ChatID    int64
	AccountID int64
	// Amount is free text: a decimal, "$" prefixed decimal, "all" or "half".
	Amount string
	Kind   model.GameKind
	// Mode is required_wins or the mine count. Zero leaves it to the game's
	// default or to a later SelectMode.
	Mode int
}

// PlaceWager validates and records a pending wager. Nothing is escrowed until
// the wager is accepted. The account is reserved for the wager so it can hold
// no other wager or session until this one is cancelled or played.
func (r *BetRegistry) PlaceWager(ctx context.Context, req PlaceWagerRequest) (*model.PendingWager, error) {
	g, err := r.games.Get(req.Kind)
	if err != nil {
		return nil, err
	}

	mode := g.DefaultMode()
	if req.Mode != 0 {
		if err := g.ValidateMode(req.Mode); err != nil {
			return nil, err
		}
		mode = req.Mode
	}
	status := model.WagerProposed
	if mode != 0 {
		status = model.WagerModeSelected
	}

	w := &model.PendingWager{
		ID:        uuid.NewString(),
		ChatID:    req.ChatID,
		AccountID: req.AccountID,
		Kind:      req.Kind,
		Mode:      mode,
		Status:    status,
		CreatedAt: r.now(),
	}

	if err := r.reserver.Reserve(ctx, req.AccountID, w.ID); err != nil {
		return nil, err
	}

	err = r.ledger.Atomically(ctx, []int64{req.AccountID}, func(ctx context.Context, ltx *LedgerTx) error {
		acct, err := ltx.Account(ctx, req.AccountID)
		if err != nil {
			return err
		}
		amount, err := money.Parse(req.Amount, acct.Balance, r.ledger.Places())
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return ErrInvalidAmount
		}
		if amount.GreaterThan(acct.Balance) {
			return ErrInsufficientFunds
		}
		if !g.SupportsPvP() {
			if err := game.CheckHouseBand(g, amount); err != nil {
				return err
			}
		}
		w.Amount = amount

		if c, ok := g.(committer); ok {
			commit := c.Commit()
			w.Commit = &commit
		}

		if err := ltx.Tx().InsertWager(ctx, w); err != nil {
			if errors.Is(err, repository.ErrWagerExists) {
				return ErrAlreadyActive
			}
			return err
		}
		return nil
	})
	if err != nil {
		if relErr := r.reserver.Release(ctx, req.AccountID, w.ID); relErr != nil {
			log.Error().Err(relErr).Int64("account_id", req.AccountID).Msg("Failed to release reservation")
		}
		return nil, err
	}

	log.Info().
		Str("wager_id", w.ID).
		Int64("chat_id", w.ChatID).
		Int64("account_id", w.AccountID).
		Str("game", string(w.Kind)).
		Str("amount", w.Amount.String()).
		Msg("Wager placed")

	return w.Published(), nil
}

// CancelWager removes a pending wager. Only the placer may cancel. Racing an
// accept, exactly one of them wins and the other sees ErrWagerNotFound.
func (r *BetRegistry) CancelWager(ctx context.Context, wagerID string, requestor int64) (*model.PendingWager, error) {
	unlock, err := lockKey(ctx, r.locks, wagerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var w *model.PendingWager
	err = r.ledger.Atomically(ctx, nil, func(ctx context.Context, ltx *LedgerTx) error {
		var err error
		w, err = ltx.Tx().GetWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if w.AccountID != requestor {
			return ErrNotOwner
		}
		return ltx.Tx().DeleteWager(ctx, wagerID)
	})
	if err != nil {
		return nil, err
	}

	r.release(ctx, w)
	log.Info().Str("wager_id", w.ID).Int64("account_id", w.AccountID).Msg("Wager cancelled")
	return w.Published(), nil
}

// SelectMode fixes required_wins, or the mine count for a mine field. The
// placer may change it until the wager is accepted.
func (r *BetRegistry) SelectMode(ctx context.Context, wagerID string, requestor int64, mode int) (*model.PendingWager, error) {
	unlock, err := lockKey(ctx, r.locks, wagerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var w *model.PendingWager
	err = r.ledger.Atomically(ctx, nil, func(ctx context.Context, ltx *LedgerTx) error {
		var err error
		w, err = ltx.Tx().GetWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if w.AccountID != requestor {
			return ErrNotOwner
		}
		g, err := r.games.Get(w.Kind)
		if err != nil {
			return err
		}
		if err := g.ValidateMode(mode); err != nil {
			return err
		}
		w.Mode = mode
		w.Status = model.WagerModeSelected
		return ltx.Tx().SaveWager(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("wager_id", w.ID).Int("mode", mode).Msg("Wager mode selected")
	return w.Published(), nil
}

// Wager returns a snapshot of a pending wager. A coin flip commitment comes
// back with the server seed withheld; PickSide reveals it.
func (r *BetRegistry) Wager(ctx context.Context, wagerID string) (*model.PendingWager, error) {
	var w *model.PendingWager
	err := r.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		w, err = tx.GetWager(ctx, wagerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w.Published(), nil
}

// ExpireWagers cancels every pending wager created before cutoff and returns them.
func (r *BetRegistry) ExpireWagers(ctx context.Context, cutoff time.Time) ([]*model.PendingWager, error) {
	var stale []*model.PendingWager
	err := r.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		all, err := tx.ListWagers(ctx)
		if err != nil {
			return err
		}
		for _, w := range all {
			if w.CreatedAt.Before(cutoff) {
				stale = append(stale, w)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}

	var expired []*model.PendingWager
	for _, w := range stale {
		cancelled, err := r.CancelWager(ctx, w.ID, w.AccountID)
		if err != nil {
			// Accepted or cancelled since the listing
			if errors.Is(err, ErrWagerNotFound) {
				continue
			}
			return expired, err
		}
		expired = append(expired, cancelled)
	}
	return expired, nil
}

func (r *BetRegistry) release(ctx context.Context, w *model.PendingWager) {
	if err := r.reserver.Release(ctx, w.AccountID, w.ID); err != nil && !errors.Is(err, reserve.ErrNotHolder) {
		log.Error().Err(err).Str("wager_id", w.ID).Int64("account_id", w.AccountID).Msg("Failed to release reservation")
	}
}
