package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/event"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/pkg/money"
)

// SettlerConfig holds the fee and referral parameters.
type SettlerConfig struct {
	FeeRate        decimal.Decimal
	ReferralShare  decimal.Decimal
	MoneyPlaces    int32
	HouseAccountID int64
}

// Settler applies the terminal effects of a session. Its Settle methods run
// inside a caller's LedgerTx so that every effect commits or rolls back with
// the session transition that caused it.
type Settler struct {
	cfg       SettlerConfig
	publisher event.Publisher
	now       func() time.Time
}

// NewSettler creates a new Settler instance.
func NewSettler(cfg SettlerConfig, publisher event.Publisher) *Settler {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Settler{cfg: cfg, publisher: publisher, now: time.Now}
}

// Settlement summarises a committed settlement.
type Settlement struct {
	Match *model.MatchRecord
	// Winner is nil for a draw.
	Winner *int64
	Fee    decimal.Decimal
	// Payout is the amount credited to the winner.
	Payout         decimal.Decimal
	Referrer       *int64
	ReferralReward decimal.Decimal
}

// Split returns the fee and the winner's earnings for a two-sided pool.
// fee + earnings always equals 2 × stake.
func (s *Settler) Split(stake decimal.Decimal) (fee, earnings decimal.Decimal) {
	pool := stake.Add(stake)
	fee = money.Round(pool.Mul(s.cfg.FeeRate), s.cfg.MoneyPlaces)
	return fee, pool.Sub(fee)
}

// SettleWin pays out a two-sided pool to winner. The house never escrows its
// stake: when it loses it is debited the stake here, when it wins it is
// credited its earnings minus the stake it never put up.
func (s *Settler) SettleWin(ctx context.Context, ltx *LedgerTx, sess *model.Session, winner int64) (*Settlement, error) {
	if !sess.Has(winner) {
		return nil, fmt.Errorf("settle session %s: %d is not a participant", sess.ID, winner)
	}
	loser := sess.Opponent(winner)
	house := s.cfg.HouseAccountID
	fee, earnings := s.Split(sess.Stake)

	var (
		winnerAcct *model.Account
		err        error
	)
	if sess.VsHouse && winner == house {
		winnerAcct, err = ltx.Adjust(ctx, house, earnings.Sub(sess.Stake))
	} else {
		winnerAcct, err = ltx.Credit(ctx, winner, earnings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit winner: %w", err)
	}
	if sess.VsHouse && loser == house {
		if _, err := ltx.Adjust(ctx, house, sess.Stake.Neg()); err != nil {
			return nil, fmt.Errorf("failed to debit house: %w", err)
		}
	}

	if _, err := ltx.AdjustStats(ctx, winner, model.StatsDelta{
		Wins:         1,
		TotalWagered: sess.Stake,
		TotalWon:     earnings,
	}); err != nil {
		return nil, fmt.Errorf("failed to update winner stats: %w", err)
	}
	if _, err := ltx.AdjustStats(ctx, loser, model.StatsDelta{
		Losses:       1,
		TotalWagered: sess.Stake,
	}); err != nil {
		return nil, fmt.Errorf("failed to update loser stats: %w", err)
	}

	if err := ltx.Tx().AddProfit(ctx, model.ProfitDelta{GameFee: fee, WithdrawalFee: decimal.Zero}); err != nil {
		return nil, err
	}

	st := &Settlement{Winner: &winner, Fee: fee, Payout: earnings, ReferralReward: decimal.Zero}
	if winnerAcct.ReferredBy != nil {
		reward := money.Round(fee.Mul(s.cfg.ReferralShare), s.cfg.MoneyPlaces)
		if reward.IsPositive() {
			if _, err := ltx.AddReferralEarnings(ctx, *winnerAcct.ReferredBy, reward); err != nil {
				return nil, fmt.Errorf("failed to book referral reward: %w", err)
			}
			st.Referrer = winnerAcct.ReferredBy
			st.ReferralReward = reward
		}
	}

	sess.Status = model.SessionResolved
	sess.Winner = &winner
	if err := s.finish(ctx, ltx, sess, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SettleDraw refunds every escrowed stake. No fee is charged and the match
// record carries no winner.
func (s *Settler) SettleDraw(ctx context.Context, ltx *LedgerTx, sess *model.Session) (*Settlement, error) {
	if err := s.refund(ctx, ltx, sess); err != nil {
		return nil, err
	}
	sess.Status = model.SessionResolved
	sess.Winner = nil

	st := &Settlement{Fee: decimal.Zero, Payout: decimal.Zero, ReferralReward: decimal.Zero}
	if err := s.finish(ctx, ltx, sess, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SettleHouseGame settles a single-player game against the house. A zero
// payout is a bust: the house keeps the stake. A positive payout is credited
// to the player and the house covers payout − stake. No fee is charged.
func (s *Settler) SettleHouseGame(ctx context.Context, ltx *LedgerTx, sess *model.Session, payout decimal.Decimal) (*Settlement, error) {
	player, house := sess.ParticipantA, sess.ParticipantB
	payout = money.Round(payout, s.cfg.MoneyPlaces)

	st := &Settlement{Fee: decimal.Zero, Payout: payout, ReferralReward: decimal.Zero}
	if !payout.IsPositive() {
		if _, err := ltx.Credit(ctx, house, sess.Stake); err != nil {
			return nil, fmt.Errorf("failed to credit house: %w", err)
		}
		if _, err := ltx.AdjustStats(ctx, player, model.StatsDelta{
			Losses:       1,
			TotalWagered: sess.Stake,
		}); err != nil {
			return nil, fmt.Errorf("failed to update player stats: %w", err)
		}
		st.Winner = &house
	} else {
		if _, err := ltx.Credit(ctx, player, payout); err != nil {
			return nil, fmt.Errorf("failed to credit player: %w", err)
		}
		if _, err := ltx.Adjust(ctx, house, sess.Stake.Sub(payout)); err != nil {
			return nil, fmt.Errorf("failed to settle house: %w", err)
		}
		if _, err := ltx.AdjustStats(ctx, player, model.StatsDelta{
			Wins:         1,
			TotalWagered: sess.Stake,
			TotalWon:     payout,
		}); err != nil {
			return nil, fmt.Errorf("failed to update player stats: %w", err)
		}
		st.Winner = &player
	}

	sess.Status = model.SessionResolved
	sess.Winner = st.Winner
	if err := s.finish(ctx, ltx, sess, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Abandon refunds every escrowed stake and removes the session without a
// match record.
func (s *Settler) Abandon(ctx context.Context, ltx *LedgerTx, sess *model.Session) error {
	if err := s.refund(ctx, ltx, sess); err != nil {
		return err
	}
	if err := ltx.Tx().DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	sess.Status = model.SessionCancelled
	return nil
}

// refund returns each escrowed stake. The house never escrows.
func (s *Settler) refund(ctx context.Context, ltx *LedgerTx, sess *model.Session) error {
	for _, id := range sess.Participants() {
		if sess.VsHouse && id == s.cfg.HouseAccountID {
			continue
		}
		if _, err := ltx.Credit(ctx, id, sess.Stake); err != nil {
			return fmt.Errorf("failed to refund %d: %w", id, err)
		}
	}
	return nil
}

// finish writes the match record and removes the session from live state.
func (s *Settler) finish(ctx context.Context, ltx *LedgerTx, sess *model.Session, st *Settlement) error {
	m := &model.MatchRecord{
		SessionID:    sess.ID,
		ChatID:       sess.ChatID,
		Kind:         sess.Kind,
		ParticipantA: sess.ParticipantA,
		ParticipantB: sess.ParticipantB,
		Winner:       st.Winner,
		Stake:        sess.Stake,
		Fee:          st.Fee,
		Payout:       st.Payout,
		ScoreA:       sess.ScoreA,
		ScoreB:       sess.ScoreB,
		CreatedAt:    s.now(),
	}
	if err := ltx.Tx().InsertMatch(ctx, m); err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}
	if err := ltx.Tx().DeleteSession(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	st.Match = m
	return nil
}

// Publish announces a committed settlement. A failure is logged and never
// undoes the settlement.
func (s *Settler) Publish(ctx context.Context, st *Settlement) {
	if st == nil || st.Match == nil {
		return
	}
	if err := s.publisher.PublishMatch(ctx, st.Match); err != nil {
		log.Error().Err(err).Str("session_id", st.Match.SessionID).Msg("Failed to publish match event")
	}
}
