package service

import (
	"context"

	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/model"
)

// DropPiece drops the acting participant's marker into column. Four in a row
// wins the pool; a full board with no winner refunds both stakes.
func (m *SessionMachine) DropPiece(ctx context.Context, sessionID string, account int64, column int) (*MoveResult, error) {
	return m.transition(ctx, sessionID, func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error) {
		if s.Grid == nil {
			return nil, ErrWrongGame
		}
		if !s.Has(account) {
			return nil, ErrNotParticipant
		}
		if s.TurnHolder != account {
			return nil, ErrNotYourTurn
		}

		marker := connect4.MarkerA
		if account == s.ParticipantB {
			marker = connect4.MarkerB
		}
		if _, err := connect4.Drop(s.Grid, column, marker); err != nil {
			return nil, err
		}

		switch {
		case connect4.Wins(s.Grid, marker):
			if marker == connect4.MarkerA {
				s.ScoreA = 1
			} else {
				s.ScoreB = 1
			}
			return m.settler.SettleWin(ctx, ltx, s, account)
		case connect4.Full(s.Grid):
			return m.settler.SettleDraw(ctx, ltx, s)
		default:
			s.TurnHolder = s.Opponent(account)
			return nil, nil
		}
	})
}
