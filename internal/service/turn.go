package service

import (
	"context"

	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/model"
)

// RollResult is the outcome of one submitted roll.
type RollResult struct {
	MoveResult
	// HouseRoll is the value drawn for the house right after the player's roll.
	HouseRoll *int
	// RoundResolved is set when the roll completed the round. RoundA and
	// RoundB hold that round's values and RoundWinner who took it.
	RoundResolved bool
	RoundA        int
	RoundB        int
	RoundWinner   dice.Side
}

// SubmitRoll records an externally produced roll for the current round of a
// turn-sequenced session. Against the house, the house value is drawn as soon
// as the player has rolled. Once both values are in, the higher one takes the
// round and the first side to RequiredWins rounds wins the match.
func (m *SessionMachine) SubmitRoll(ctx context.Context, sessionID string, account int64, kind model.GameKind, value int) (*RollResult, error) {
	res := &RollResult{}
	move, err := m.transition(ctx, sessionID, func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error) {
		if s.Kind != kind {
			return nil, ErrWrongGame
		}
		g, err := m.games.Get(s.Kind)
		if err != nil {
			return nil, err
		}
		tg, ok := g.(*dice.TurnGame)
		if !ok {
			return nil, ErrWrongGame
		}
		if s.Status != model.SessionInProgress {
			return nil, ErrSessionNotFound
		}
		if !s.Has(account) {
			return nil, ErrNotParticipant
		}
		if submitted(s, account) {
			return nil, ErrAlreadyActed
		}
		if s.TurnHolder != account {
			return nil, ErrNotYourTurn
		}
		if err := tg.ValidateRoll(value); err != nil {
			return nil, err
		}

		record(s, account, value)
		s.TurnHolder = s.Opponent(account)

		if s.VsHouse && !s.Round.Complete() {
			hv := m.house.Roll(tg)
			record(s, m.houseID, hv)
			res.HouseRoll = &hv
		}
		if !s.Round.Complete() {
			return nil, nil
		}

		s.Status = model.SessionRoundResolving
		res.RoundResolved = true
		res.RoundA, res.RoundB = *s.Round.A, *s.Round.B
		res.RoundWinner = dice.ResolveRound(res.RoundA, res.RoundB)

		score := dice.Score{A: s.ScoreA, B: s.ScoreB}.Apply(res.RoundWinner)
		s.ScoreA, s.ScoreB = score.A, score.B
		s.Round = model.RoundOutcomes{}

		if side, done := score.Winner(s.RequiredWins); done {
			winner := s.ParticipantA
			if side == dice.SideB {
				winner = s.ParticipantB
			}
			return m.settler.SettleWin(ctx, ltx, s, winner)
		}

		// Every round opens with participant A.
		s.RoundIndex++
		s.TurnHolder = s.ParticipantA
		s.Status = model.SessionInProgress
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	res.MoveResult = *move
	return res, nil
}

func submitted(s *model.Session, account int64) bool {
	if account == s.ParticipantA {
		return s.Round.A != nil
	}
	return s.Round.B != nil
}

func record(s *model.Session, account int64, value int) {
	v := value
	if account == s.ParticipantA {
		s.Round.A = &v
	} else {
		s.Round.B = &v
	}
}
