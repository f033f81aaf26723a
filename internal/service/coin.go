package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/repository"
)

// CoinResult is a resolved coin flip together with its reveal.
type CoinResult struct {
	MoveResult
	Flip *model.CoinFlip
	Won  bool
}

// PickSide plays a coin flip wager against the house. The placer's choice
// accepts the wager: the stake is escrowed, the committed seeds are resolved
// and the pool is settled in one step. The returned flip reveals the server
// seed so the published hash and the derived side can be checked.
func (m *SessionMachine) PickSide(ctx context.Context, wagerID string, account int64, side model.CoinSide) (*CoinResult, error) {
	unlock, err := lockKey(ctx, m.locks, wagerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := m.wager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	g, err := m.games.Get(w.Kind)
	if err != nil {
		return nil, err
	}
	cg, ok := g.(*coinflip.Game)
	if !ok {
		return nil, ErrWrongGame
	}
	if account != w.AccountID {
		return nil, ErrNotOwner
	}
	if side != model.Heads && side != model.Tails {
		return nil, coinflip.ErrInvalidSide
	}
	if w.Commit == nil {
		return nil, errors.New("coin flip wager has no commitment")
	}
	if err := game.CheckHouseBand(g, w.Amount); err != nil {
		return nil, err
	}

	sess, err := m.newSession(w, g, m.houseID, true)
	if err != nil {
		return nil, err
	}

	res := &CoinResult{}
	err = m.ledger.Atomically(ctx, []int64{w.AccountID, m.houseID}, func(ctx context.Context, ltx *LedgerTx) error {
		if _, err := ltx.Account(ctx, m.houseID); err != nil {
			return err
		}
		if err := m.escrow(ctx, ltx, w, sess, w.AccountID); err != nil {
			return err
		}

		derived, outcome := cg.Resolve(*w.Commit, side)
		flip := &model.CoinFlip{
			SessionID:  sess.ID,
			AccountID:  account,
			Choice:     side,
			Derived:    derived,
			Outcome:    outcome,
			FairCommit: *w.Commit,
			CreatedAt:  m.now(),
		}
		if err := ltx.Tx().InsertCoinFlip(ctx, flip); err != nil {
			return err
		}
		res.Flip = flip

		winner := m.houseID
		if outcome == side {
			winner = account
			sess.ScoreA = 1
		} else {
			sess.ScoreB = 1
		}
		res.Won = winner == account

		st, err := m.settler.SettleWin(ctx, ltx, sess, winner)
		if err != nil {
			return err
		}
		res.Settlement = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.release(ctx, account, w.ID)
	m.settler.Publish(ctx, res.Settlement)
	res.Session = sess.Clone()

	log.Info().
		Str("session_id", sess.ID).
		Int64("account_id", account).
		Str("choice", string(side)).
		Str("outcome", string(res.Flip.Outcome)).
		Bool("won", res.Won).
		Msg("Coin flip settled")

	return res, nil
}

// CoinFlip returns the stored reveal of a settled coin flip.
func (m *SessionMachine) CoinFlip(ctx context.Context, sessionID string) (*model.CoinFlip, error) {
	var flip *model.CoinFlip
	err := m.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		flip, err = tx.GetCoinFlip(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return flip, nil
}
