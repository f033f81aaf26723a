package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/pkg/lock"
	"telegram-wager-bot/internal/pkg/reserve"
	"telegram-wager-bot/internal/repository"
)

// fieldMaker is implemented by progressive-reveal games.
type fieldMaker interface {
	NewField(mineCount int, rng game.RandSource) (*model.MineField, error)
}

// SessionMachineConfig holds the house actor settings.
type SessionMachineConfig struct {
	HouseAccountID int64
	HouseRoller    *dice.HouseRoller
	// Rand lays out mine fields. Nil uses the system generator.
	Rand game.RandSource
}

// SessionMachine owns accepted wagers from acceptance to resolution. Every
// transition of one session is serialized by the session lock, then by the
// account locks of its participants, then by the store transaction.
type SessionMachine struct {
	ledger   *Ledger
	games    *game.Registry
	reserver reserve.Reserver
	locks    *lock.SessionLock
	settler  *Settler
	house    *dice.HouseRoller
	rng      game.RandSource
	houseID  int64
	now      func() time.Time
}

// NewSessionMachine creates a new SessionMachine instance.
func NewSessionMachine(
	ledger *Ledger,
	games *game.Registry,
	reserver reserve.Reserver,
	locks *lock.SessionLock,
	settler *Settler,
	cfg SessionMachineConfig,
) *SessionMachine {
	rng := cfg.Rand
	if rng == nil {
		rng = game.SystemRand()
	}
	return &SessionMachine{
		ledger:   ledger,
		games:    games,
		reserver: reserver,
		locks:    locks,
		settler:  settler,
		house:    cfg.HouseRoller,
		rng:      rng,
		houseID:  cfg.HouseAccountID,
		now:      time.Now,
	}
}

// HouseAccountID returns the id of the house actor.
func (m *SessionMachine) HouseAccountID() int64 {
	return m.houseID
}

// MoveResult is the outcome of one session action.
type MoveResult struct {
	Session *model.Session
	// Settlement is set when the action ended the session.
	Settlement *Settlement
}

// AcceptWager converts a pending wager into a head-to-head session, escrowing
// both stakes. Racing another accept or a cancel, exactly one wins and the
// others see ErrWagerNotFound.
func (m *SessionMachine) AcceptWager(ctx context.Context, wagerID string, acceptor int64) (*model.Session, error) {
	unlock, err := lockKey(ctx, m.locks, wagerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := m.wager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if acceptor == w.AccountID {
		return nil, ErrSelfAccept
	}
	g, err := m.games.Get(w.Kind)
	if err != nil {
		return nil, err
	}
	if !g.SupportsPvP() || acceptor == m.houseID {
		return nil, ErrUnsupported
	}
	if w.Mode == 0 {
		return nil, ErrModeNotSelected
	}

	sess, err := m.newSession(w, g, acceptor, false)
	if err != nil {
		return nil, err
	}
	if err := m.reserver.Reserve(ctx, acceptor, sess.ID); err != nil {
		return nil, err
	}

	err = m.ledger.Atomically(ctx, []int64{w.AccountID, acceptor}, func(ctx context.Context, ltx *LedgerTx) error {
		return m.escrow(ctx, ltx, w, sess, w.AccountID, acceptor)
	})
	if err != nil {
		m.release(ctx, acceptor, sess.ID)
		return nil, err
	}

	m.rebind(ctx, w.AccountID, w.ID, sess.ID)
	log.Info().
		Str("session_id", sess.ID).
		Str("game", string(sess.Kind)).
		Int64("participant_a", sess.ParticipantA).
		Int64("participant_b", sess.ParticipantB).
		Str("stake", sess.Stake.String()).
		Msg("Wager accepted")

	return sess.Clone(), nil
}

// AcceptWagerVsHouse starts a session against the house actor. Only the
// placer may request it and the stake must fall in the game's house band.
// The house stake is not escrowed; settlement debits it if the house loses.
func (m *SessionMachine) AcceptWagerVsHouse(ctx context.Context, wagerID string, requestor int64) (*model.Session, error) {
	unlock, err := lockKey(ctx, m.locks, wagerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := m.wager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if requestor != w.AccountID {
		return nil, ErrNotOwner
	}
	g, err := m.games.Get(w.Kind)
	if err != nil {
		return nil, err
	}
	if !g.SupportsHouse() {
		return nil, ErrUnsupported
	}
	if g.Variant() == game.CommitReveal {
		return nil, ErrWrongGame
	}
	if g.Variant() == game.TurnSequenced && m.house == nil {
		return nil, fmt.Errorf("house roller not configured: %w", ErrUnsupported)
	}
	if w.Mode == 0 {
		return nil, ErrModeNotSelected
	}
	if err := game.CheckHouseBand(g, w.Amount); err != nil {
		return nil, err
	}

	sess, err := m.newSession(w, g, m.houseID, true)
	if err != nil {
		return nil, err
	}

	err = m.ledger.Atomically(ctx, []int64{w.AccountID, m.houseID}, func(ctx context.Context, ltx *LedgerTx) error {
		if _, err := ltx.Account(ctx, m.houseID); err != nil {
			return err
		}
		return m.escrow(ctx, ltx, w, sess, w.AccountID)
	})
	if err != nil {
		return nil, err
	}

	m.rebind(ctx, w.AccountID, w.ID, sess.ID)
	log.Info().
		Str("session_id", sess.ID).
		Str("game", string(sess.Kind)).
		Int64("account_id", sess.ParticipantA).
		Str("stake", sess.Stake.String()).
		Msg("Wager accepted by the house")

	return sess.Clone(), nil
}

// escrow debits the stake from each payer, stores the session and removes the wager.
func (m *SessionMachine) escrow(ctx context.Context, ltx *LedgerTx, w *model.PendingWager, sess *model.Session, payers ...int64) error {
	// The wager lock is held, so the wager can only be gone if it was never there.
	if _, err := ltx.Tx().GetWager(ctx, w.ID); err != nil {
		return err
	}
	for _, id := range payers {
		if _, err := ltx.Debit(ctx, id, w.Amount); err != nil {
			return err
		}
	}
	if err := ltx.Tx().InsertSession(ctx, sess); err != nil {
		return err
	}
	return ltx.Tx().DeleteWager(ctx, w.ID)
}

func (m *SessionMachine) newSession(w *model.PendingWager, g game.Game, opponent int64, vsHouse bool) (*model.Session, error) {
	now := m.now()
	sess := &model.Session{
		ID:           uuid.NewString(),
		WagerID:      w.ID,
		ChatID:       w.ChatID,
		Kind:         w.Kind,
		ParticipantA: w.AccountID,
		ParticipantB: opponent,
		VsHouse:      vsHouse,
		Stake:        w.Amount,
		RequiredWins: 1,
		TurnHolder:   w.AccountID,
		RoundIndex:   1,
		Status:       model.SessionInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	switch g.Variant() {
	case game.TurnSequenced:
		sess.RequiredWins = w.Mode
	case game.Grid:
		sess.Grid = connect4.NewGrid()
	case game.ProgressiveReveal:
		fm, ok := g.(fieldMaker)
		if !ok {
			return nil, fmt.Errorf("game %s cannot lay out a field", g.Kind())
		}
		field, err := fm.NewField(w.Mode, m.rng)
		if err != nil {
			return nil, err
		}
		sess.Field = field
	}
	return sess, nil
}

// Abandon cancels a live session, refunding every escrowed stake with no fee
// and no match record. Abandoning a session that is already gone returns
// ErrSessionNotFound and changes nothing.
func (m *SessionMachine) Abandon(ctx context.Context, sessionID string) (*model.Session, error) {
	res, err := m.transition(ctx, sessionID, func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error) {
		return nil, m.settler.Abandon(ctx, ltx, s)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", sessionID).Msg("Session abandoned")
	return res.Session, nil
}

// ExpireResult is the outcome of timing out an idle session.
type ExpireResult struct {
	MoveResult
	// Forfeit is set when the idle turn holder lost the match. Otherwise a
	// nil Settlement means the stakes were refunded.
	Forfeit bool
}

// Expire times out a session not played since cutoff. A session nobody has
// acted in is abandoned with full refunds. Once play has started, the idle
// turn holder of a turn or grid game forfeits the match, and a mine field
// with safe hits is cashed out at its current rung. A session touched after
// cutoff returns ErrSessionActive and is left alone.
func (m *SessionMachine) Expire(ctx context.Context, sessionID string, cutoff time.Time) (*ExpireResult, error) {
	res := &ExpireResult{}
	move, err := m.transition(ctx, sessionID, func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error) {
		if !s.UpdatedAt.Before(cutoff) {
			return nil, ErrSessionActive
		}
		if !started(s) {
			return nil, m.settler.Abandon(ctx, ltx, s)
		}
		if s.Field != nil {
			mg, err := m.minesGame(s)
			if err != nil {
				return nil, err
			}
			return m.cashOut(ctx, ltx, mg, s)
		}
		res.Forfeit = true
		return m.settler.SettleWin(ctx, ltx, s, s.Opponent(s.TurnHolder))
	})
	if err != nil {
		return nil, err
	}
	res.MoveResult = *move
	log.Info().
		Str("session_id", sessionID).
		Bool("forfeit", res.Forfeit).
		Int64("idle", move.Session.TurnHolder).
		Msg("Idle session expired")
	return res, nil
}

// started reports whether any participant has acted in the session.
func started(s *model.Session) bool {
	switch {
	case s.ScoreA > 0 || s.ScoreB > 0 || s.RoundIndex > 1:
		return true
	case s.Round.A != nil || s.Round.B != nil:
		return true
	case s.Field != nil:
		return s.Field.SafeHits > 0
	case s.Grid != nil:
		for _, c := range s.Grid.Cells {
			if c != 0 {
				return true
			}
		}
	}
	return false
}

// transition applies fn to the locked session inside one ledger transaction.
// fn mutates s in place; a non-terminal s is saved afterwards. Once the
// transaction commits, a terminal session releases its participants and a
// settlement is published.
func (m *SessionMachine) transition(
	ctx context.Context,
	sessionID string,
	fn func(ctx context.Context, ltx *LedgerTx, s *model.Session) (*Settlement, error),
) (*MoveResult, error) {
	unlock, err := lockKey(ctx, m.locks, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	peek, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var (
		sess *model.Session
		st   *Settlement
	)
	err = m.ledger.Atomically(ctx, peek.Participants(), func(ctx context.Context, ltx *LedgerTx) error {
		s, err := ltx.Tx().GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if st, err = fn(ctx, ltx, s); err != nil {
			return err
		}
		if !s.Status.Terminal() {
			s.UpdatedAt = m.now()
			if err := ltx.Tx().SaveSession(ctx, s); err != nil {
				return err
			}
		}
		sess = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sess.Status.Terminal() {
		m.releaseSession(ctx, sess)
	}
	if st != nil {
		m.settler.Publish(ctx, st)
		log.Info().
			Str("session_id", sess.ID).
			Str("game", string(sess.Kind)).
			Interface("winner", st.Winner).
			Str("fee", st.Fee.String()).
			Str("payout", st.Payout.String()).
			Msg("Session settled")
	}
	return &MoveResult{Session: sess.Clone(), Settlement: st}, nil
}

// Session returns a snapshot of a live session.
func (m *SessionMachine) Session(ctx context.Context, sessionID string) (*model.Session, error) {
	var s *model.Session
	err := m.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		s, err = tx.GetSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ActiveSession returns the live session the account plays in.
func (m *SessionMachine) ActiveSession(ctx context.Context, accountID int64) (*model.Session, error) {
	holder, ok, err := m.reserver.Holder(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up reservation: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	// The holder is a wager id while the account only has a pending wager.
	return m.Session(ctx, holder)
}

// MatchHistory returns the account's most recent matches, newest first.
func (m *SessionMachine) MatchHistory(ctx context.Context, accountID int64, limit int) ([]*model.MatchRecord, error) {
	var matches []*model.MatchRecord
	err := m.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		matches, err = tx.ListMatches(ctx, accountID, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load match history: %w", err)
	}
	return matches, nil
}

// StaleSessions returns live sessions not updated since cutoff.
func (m *SessionMachine) StaleSessions(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	var stale []*model.Session
	err := m.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		all, err := tx.ListSessions(ctx)
		if err != nil {
			return err
		}
		for _, s := range all {
			if s.UpdatedAt.Before(cutoff) {
				stale = append(stale, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return stale, nil
}

// RestoreReservations rebuilds the reservation store from the durable store:
// every pending wager reserves its placer and every live session its human
// participants. It runs once at startup before any traffic.
func (m *SessionMachine) RestoreReservations(ctx context.Context) (wagers, sessions int, err error) {
	if err := m.reserver.Clear(ctx); err != nil {
		return 0, 0, err
	}

	var (
		ws []*model.PendingWager
		ss []*model.Session
	)
	err = m.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if ws, err = tx.ListWagers(ctx); err != nil {
			return err
		}
		ss, err = tx.ListSessions(ctx)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load live state: %w", err)
	}

	for _, s := range ss {
		if err := reserve.ReserveAll(ctx, m.reserver, s.ID, m.humans(s)...); err != nil {
			if !errors.Is(err, reserve.ErrReserved) {
				return wagers, sessions, err
			}
			log.Warn().Err(err).Str("session_id", s.ID).Msg("Session participant already reserved")
			continue
		}
		sessions++
	}
	for _, w := range ws {
		if err := m.reserver.Reserve(ctx, w.AccountID, w.ID); err != nil {
			if !errors.Is(err, reserve.ErrReserved) {
				return wagers, sessions, err
			}
			log.Warn().Err(err).Str("wager_id", w.ID).Msg("Wager placer already reserved")
			continue
		}
		wagers++
	}
	return wagers, sessions, nil
}

func (m *SessionMachine) wager(ctx context.Context, wagerID string) (*model.PendingWager, error) {
	var w *model.PendingWager
	err := m.ledger.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		w, err = tx.GetWager(ctx, wagerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// humans returns the participants that hold reservations.
func (m *SessionMachine) humans(s *model.Session) []int64 {
	if s.VsHouse {
		return []int64{s.ParticipantA}
	}
	return s.Participants()
}

// rebind moves the placer's reservation from the wager to the session. When
// the move fails the reservation is dropped and taken again under the session.
// If that fails too the account stays held under the wager id until the
// session ends and releaseSession drops both holders.
func (m *SessionMachine) rebind(ctx context.Context, accountID int64, from, to string) {
	err := m.reserver.Rebind(ctx, accountID, from, to)
	if err == nil {
		return
	}
	log.Warn().Err(err).Int64("account_id", accountID).Str("session_id", to).Msg("Failed to move reservation to session, re-reserving")

	m.release(ctx, accountID, from)
	if err := m.reserver.Reserve(ctx, accountID, to); err != nil {
		log.Error().Err(err).Int64("account_id", accountID).Str("session_id", to).Msg("Failed to reserve account for session")
	}
}

// releaseSession frees the human participants of an ended session, including
// a placer still held under the wager id.
func (m *SessionMachine) releaseSession(ctx context.Context, s *model.Session) {
	for _, id := range m.humans(s) {
		m.release(ctx, id, s.ID)
	}
	m.release(ctx, s.ParticipantA, s.WagerID)
}

func (m *SessionMachine) release(ctx context.Context, accountID int64, holder string) {
	if err := m.reserver.Release(ctx, accountID, holder); err != nil && !errors.Is(err, reserve.ErrNotHolder) {
		log.Error().Err(err).Int64("account_id", accountID).Str("holder", holder).Msg("Failed to release reservation")
	}
}

// keyLockTimeout bounds how long an action waits behind another action on the
// same wager or session.
const keyLockTimeout = 5 * time.Second

func lockKey(ctx context.Context, locks *lock.SessionLock, key string) (unlock func(), err error) {
	if err := locks.LockWithTimeout(ctx, key, keyLockTimeout); err != nil {
		return nil, err
	}
	return func() { locks.Unlock(key) }, nil
}
