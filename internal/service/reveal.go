package service

import (
	"context"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/model"
)

// RevealResult is the outcome of one mine field reveal.
type RevealResult struct {
	MoveResult
	// Mine is set when the revealed cell was mined and the stake is lost.
	Mine bool
	// Multiplier is the ladder value for the safe hits so far.
	Multiplier decimal.Decimal
	// AutoCashOut is set when the reveal reached the top of the ladder or
	// cleared the field and the session was cashed out.
	AutoCashOut bool
}

func (m *SessionMachine) minesGame(s *model.Session) (*mines.Game, error) {
	if s.Field == nil {
		return nil, ErrWrongGame
	}
	g, err := m.games.Get(s.Kind)
	if err != nil {
		return nil, err
	}
	mg, ok := g.(*mines.Game)
	if !ok {
		return nil, ErrWrongGame
	}
	return mg, nil
}

// RevealCell uncovers one cell. A mine busts the session; a safe cell climbs
// the ladder, and the last rung cashes out automatically.
func (m *SessionMachine) RevealCell(ctx context.Context, sessionID string, account int64, cell int) (*RevealResult, error) {
	res := &RevealResult{Multiplier: decimal.Zero}
	move, err := m.transition(ctx, sessionID, func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error) {
		mg, err := m.minesGame(s)
		if err != nil {
			return nil, err
		}
		if account != s.ParticipantA {
			return nil, ErrNotParticipant
		}

		mine, err := mines.Reveal(s.Field, cell)
		if err != nil {
			return nil, err
		}
		s.ScoreA = s.Field.SafeHits
		if mine {
			res.Mine = true
			return m.settler.SettleHouseGame(ctx, ltx, s, decimal.Zero)
		}

		res.Multiplier = mg.Ladder().Multiplier(s.Field.SafeHits, s.Field.MineCount)
		if s.Field.SafeHits >= mg.AutoCashOutAt(s.Field) {
			res.AutoCashOut = true
			return m.cashOut(ctx, ltx, mg, s)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	res.MoveResult = *move
	return res, nil
}

// CashOut ends a mine session paying stake × multiplier(safe hits, mines).
// At least one safe cell must have been revealed.
func (m *SessionMachine) CashOut(ctx context.Context, sessionID string, account int64) (*MoveResult, error) {
	return m.transition(ctx, sessionID, func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error) {
		mg, err := m.minesGame(s)
		if err != nil {
			return nil, err
		}
		if account != s.ParticipantA {
			return nil, ErrNotParticipant
		}
		if s.Field.SafeHits < 1 {
			return nil, ErrNothingToCashOut
		}
		return m.cashOut(ctx, ltx, mg, s)
	})
}

func (m *SessionMachine) cashOut(ctx context.Context, ltx *LedgerTx, mg *mines.Game, s *model.Session) (*Settlement, error) {
	payout := mg.Ladder().Payout(s.Stake, s.Field.SafeHits, s.Field.MineCount, m.ledger.Places())
	return m.settler.SettleHouseGame(ctx, ltx, s, payout)
}
