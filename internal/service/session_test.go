package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/model"
)

func TestPvPDiceSettlesPool(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")

	w := env.place(t, 1, "10", model.KindDice, 1)
	sess, err := env.machine.AcceptWager(ctx, w.ID, 2)
	require.NoError(t, err)
	requireDec(t, "90", env.balance(t, 1))
	requireDec(t, "90", env.balance(t, 2))

	holder, ok := env.holder(t, 1)
	require.True(t, ok)
	assert.Equal(t, sess.ID, holder)

	res, err := env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDice, 5)
	require.NoError(t, err)
	assert.False(t, res.RoundResolved)
	assert.Nil(t, res.Settlement)
	assert.Equal(t, int64(2), res.Session.TurnHolder)

	res, err = env.machine.SubmitRoll(ctx, sess.ID, 2, model.KindDice, 3)
	require.NoError(t, err)
	require.True(t, res.RoundResolved)
	assert.Equal(t, dice.SideA, res.RoundWinner)
	require.NotNil(t, res.Settlement)
	require.NotNil(t, res.Settlement.Winner)
	assert.Equal(t, int64(1), *res.Settlement.Winner)
	requireDec(t, "1", res.Settlement.Fee)
	requireDec(t, "19", res.Settlement.Payout)
	assert.Equal(t, model.SessionResolved, res.Session.Status)

	winner := env.account(t, 1)
	loser := env.account(t, 2)
	requireDec(t, "109", winner.Balance)
	requireDec(t, "90", loser.Balance)
	assert.Equal(t, int64(1), winner.Wins)
	assert.Equal(t, int64(1), loser.Losses)
	requireDec(t, "10", winner.TotalWagered)
	requireDec(t, "19", winner.TotalWon)

	profits, err := env.ledger.Profits(ctx)
	require.NoError(t, err)
	requireDec(t, "1", profits.GameFee)
	requireDec(t, "1", profits.TotalProfit)

	_, err = env.machine.Session(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, ok = env.holder(t, 1)
	assert.False(t, ok)
	_, ok = env.holder(t, 2)
	assert.False(t, ok)

	history, err := env.machine.MatchHistory(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sess.ID, history[0].SessionID)
	assert.Equal(t, 1, history[0].ScoreA)
	assert.Equal(t, 0, history[0].ScoreB)
}

func TestSubmitRollValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")

	w := env.place(t, 1, "10", model.KindDarts, 2)
	sess, err := env.machine.AcceptWager(ctx, w.ID, 2)
	require.NoError(t, err)

	_, err = env.machine.SubmitRoll(ctx, sess.ID, 2, model.KindDarts, 4)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = env.machine.SubmitRoll(ctx, sess.ID, 3, model.KindDarts, 4)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDice, 4)
	assert.ErrorIs(t, err, ErrWrongGame)

	_, err = env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDarts, 7)
	assert.ErrorIs(t, err, dice.ErrInvalidRoll)

	_, err = env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDarts, 4)
	require.NoError(t, err)
	_, err = env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDarts, 4)
	assert.ErrorIs(t, err, ErrAlreadyActed)

	// A tied round awards nothing and the next round opens with A.
	res, err := env.machine.SubmitRoll(ctx, sess.ID, 2, model.KindDarts, 4)
	require.NoError(t, err)
	assert.True(t, res.RoundResolved)
	assert.Equal(t, dice.Tie, res.RoundWinner)
	assert.Nil(t, res.Settlement)
	assert.Equal(t, 2, res.Session.RoundIndex)
	assert.Equal(t, int64(1), res.Session.TurnHolder)
	assert.Equal(t, 0, res.Session.ScoreA+res.Session.ScoreB)
}

func TestDiceAgainstHouse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, testHouseID, "1000")

	w := env.place(t, 1, "10", model.KindDice, 2)
	sess, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
	require.NoError(t, err)
	assert.True(t, sess.VsHouse)
	assert.Equal(t, testHouseID, sess.ParticipantB)
	requireDec(t, "90", env.balance(t, 1))
	requireDec(t, "1000", env.balance(t, testHouseID))

	// fixedRand makes the house roll 3 every time.
	res, err := env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDice, 6)
	require.NoError(t, err)
	require.NotNil(t, res.HouseRoll)
	assert.Equal(t, 3, *res.HouseRoll)
	assert.True(t, res.RoundResolved)
	assert.Nil(t, res.Settlement)
	assert.Equal(t, 1, res.Session.ScoreA)

	res, err = env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDice, 4)
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, int64(1), *res.Settlement.Winner)

	requireDec(t, "109", env.balance(t, 1))
	requireDec(t, "990", env.balance(t, testHouseID))
	_, ok := env.holder(t, 1)
	assert.False(t, ok)
	_, ok = env.holder(t, testHouseID)
	assert.False(t, ok)
}

func TestAcceptWagerVsHouseRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "500")
	env.fund(t, 2, "100")

	t.Run("only the placer", func(t *testing.T) {
		w := env.place(t, 1, "10", model.KindDice, 1)
		_, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 2)
		assert.ErrorIs(t, err, ErrNotOwner)
		_, err = env.registry.CancelWager(ctx, w.ID, 1)
		require.NoError(t, err)
	})

	t.Run("stake above the house band", func(t *testing.T) {
		w := env.place(t, 1, "150", model.KindDice, 1)
		_, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
		assert.ErrorIs(t, err, game.ErrStakeOutOfRange)
		_, err = env.registry.CancelWager(ctx, w.ID, 1)
		require.NoError(t, err)
	})

	t.Run("grid games are head to head only", func(t *testing.T) {
		w := env.place(t, 1, "10", model.KindConnect4, 0)
		_, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
		assert.ErrorIs(t, err, ErrUnsupported)
		_, err = env.registry.CancelWager(ctx, w.ID, 1)
		require.NoError(t, err)
	})

	t.Run("mode must be selected", func(t *testing.T) {
		w := env.place(t, 1, "10", model.KindBowling, 0)
		assert.Equal(t, model.WagerProposed, w.Status)
		_, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
		assert.ErrorIs(t, err, ErrModeNotSelected)
		_, err = env.machine.AcceptWager(ctx, w.ID, 2)
		assert.ErrorIs(t, err, ErrModeNotSelected)
		_, err = env.registry.CancelWager(ctx, w.ID, 1)
		require.NoError(t, err)
	})

	requireDec(t, "500", env.balance(t, 1))
}

func TestAcceptWagerRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "5")

	w := env.place(t, 1, "10", model.KindDice, 1)

	_, err := env.machine.AcceptWager(ctx, w.ID, 1)
	assert.ErrorIs(t, err, ErrSelfAccept)

	_, err = env.machine.AcceptWager(ctx, w.ID, 2)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The failed accept left no trace.
	_, ok := env.holder(t, 2)
	assert.False(t, ok)
	requireDec(t, "5", env.balance(t, 2))
	requireDec(t, "100", env.balance(t, 1))
	_, err = env.registry.Wager(ctx, w.ID)
	require.NoError(t, err)

	_, err = env.machine.AcceptWager(ctx, "missing", 2)
	assert.ErrorIs(t, err, ErrWagerNotFound)
}

func TestMinesCashOut(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, testHouseID, "1000")

	w := env.place(t, 1, "10", model.KindMines, 3)
	sess, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, sess.Field)
	assert.Equal(t, []int{0, 1, 2}, sess.Field.Mines)

	_, err = env.machine.CashOut(ctx, sess.ID, 1)
	assert.ErrorIs(t, err, ErrNothingToCashOut)

	reveal, err := env.machine.RevealCell(ctx, sess.ID, 1, 3)
	require.NoError(t, err)
	assert.False(t, reveal.Mine)
	requireDec(t, "0.9888", reveal.Multiplier)

	_, err = env.machine.RevealCell(ctx, sess.ID, 1, 3)
	assert.ErrorIs(t, err, mines.ErrCellRevealed)

	reveal, err = env.machine.RevealCell(ctx, sess.ID, 1, 4)
	require.NoError(t, err)
	requireDec(t, "1.1071", reveal.Multiplier)
	assert.Nil(t, reveal.Settlement)

	out, err := env.machine.CashOut(ctx, sess.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, out.Settlement)
	requireDec(t, "11.07", out.Settlement.Payout)
	requireDec(t, "0", out.Settlement.Fee)

	player := env.account(t, 1)
	requireDec(t, "101.07", player.Balance)
	assert.Equal(t, int64(1), player.Wins)
	requireDec(t, "998.93", env.balance(t, testHouseID))

	_, err = env.machine.Session(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	history, err := env.machine.MatchHistory(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].ScoreA)
}

func TestMinesBust(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")

	w := env.place(t, 1, "10", model.KindMines, 3)
	sess, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
	require.NoError(t, err)

	reveal, err := env.machine.RevealCell(ctx, sess.ID, 1, 2)
	require.NoError(t, err)
	assert.True(t, reveal.Mine)
	require.NotNil(t, reveal.Settlement)
	assert.Equal(t, testHouseID, *reveal.Settlement.Winner)

	player := env.account(t, 1)
	requireDec(t, "90", player.Balance)
	assert.Equal(t, int64(1), player.Losses)
	requireDec(t, "10", player.TotalWagered)
	requireDec(t, "10", env.balance(t, testHouseID))
	_, ok := env.holder(t, 1)
	assert.False(t, ok)
}

func TestMinesAutoCashOut(t *testing.T) {
	ctx := context.Background()
	ladder, err := mines.NewLadder([][]decimal.Decimal{
		{dec("1.1"), dec("1.2")},
		{dec("1.5"), dec("2")},
	})
	require.NoError(t, err)
	env := newTestEnv(t, withMines(&mines.Config{Ladder: ladder, MaxMines: 2, DefaultMines: 2}))
	env.fund(t, 1, "100")
	env.fund(t, testHouseID, "1000")

	w := env.place(t, 1, "10", model.KindMines, 0)
	assert.Equal(t, 2, w.Mode)
	sess, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
	require.NoError(t, err)

	reveal, err := env.machine.RevealCell(ctx, sess.ID, 1, 10)
	require.NoError(t, err)
	assert.False(t, reveal.AutoCashOut)

	reveal, err = env.machine.RevealCell(ctx, sess.ID, 1, 11)
	require.NoError(t, err)
	assert.True(t, reveal.AutoCashOut)
	require.NotNil(t, reveal.Settlement)
	requireDec(t, "20", reveal.Settlement.Payout)
	requireDec(t, "110", env.balance(t, 1))
}

func TestConnect4Draw(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")

	w := env.place(t, 1, "10", model.KindConnect4, 0)
	assert.Equal(t, model.WagerModeSelected, w.Status)
	sess, err := env.machine.AcceptWager(ctx, w.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, sess.Grid)

	env.editSession(t, sess.ID, func(s *model.Session) {
		s.Grid = parseBoard(
			"BAB.BAB",
			"BABABAA",
			"BAAABBB",
			"ABBBABA",
			"ABABBBA",
			"BABABAA",
		)
		s.TurnHolder = 2
	})

	_, err = env.machine.DropPiece(ctx, sess.ID, 1, 3)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = env.machine.DropPiece(ctx, sess.ID, 2, 0)
	assert.ErrorIs(t, err, connect4.ErrColumnFull)

	res, err := env.machine.DropPiece(ctx, sess.ID, 2, 3)
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	assert.Nil(t, res.Settlement.Winner)
	requireDec(t, "0", res.Settlement.Fee)
	require.NotNil(t, res.Settlement.Match)
	assert.Nil(t, res.Settlement.Match.Winner)

	requireDec(t, "100", env.balance(t, 1))
	requireDec(t, "100", env.balance(t, 2))
	profits, err := env.ledger.Profits(ctx)
	require.NoError(t, err)
	requireDec(t, "0", profits.TotalProfit)
}

func TestConnect4Win(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")

	w := env.place(t, 1, "10", model.KindConnect4, 0)
	sess, err := env.machine.AcceptWager(ctx, w.ID, 2)
	require.NoError(t, err)

	// A stacks column 0 while B stacks column 1.
	var res *MoveResult
	for i := 0; i < 4; i++ {
		res, err = env.machine.DropPiece(ctx, sess.ID, 1, 0)
		require.NoError(t, err)
		if i < 3 {
			require.Nil(t, res.Settlement)
			_, err = env.machine.DropPiece(ctx, sess.ID, 2, 1)
			require.NoError(t, err)
		}
	}
	require.NotNil(t, res.Settlement)
	assert.Equal(t, int64(1), *res.Settlement.Winner)
	assert.Equal(t, 1, res.Session.ScoreA)
	requireDec(t, "109", env.balance(t, 1))
}

func TestConcurrentAcceptOneWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")
	env.fund(t, 3, "100")

	w := env.place(t, 1, "10", model.KindDice, 1)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, acceptor := range []int64{2, 3} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.machine.AcceptWager(ctx, w.ID, acceptor)
		}()
	}
	wg.Wait()

	succeeded, missing := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrWagerNotFound):
			missing++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, missing)

	total := env.balance(t, 1).Add(env.balance(t, 2)).Add(env.balance(t, 3))
	requireDec(t, "280", total)
	requireDec(t, "90", env.balance(t, 1))
}

func TestConcurrentAcceptAndCancel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")

	w := env.place(t, 1, "10", model.KindDice, 1)

	var (
		wg                   sync.WaitGroup
		acceptErr, cancelErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = env.machine.AcceptWager(ctx, w.ID, 2)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = env.registry.CancelWager(ctx, w.ID, 1)
	}()
	wg.Wait()

	require.True(t, (acceptErr == nil) != (cancelErr == nil), "accept=%v cancel=%v", acceptErr, cancelErr)
	if acceptErr == nil {
		assert.ErrorIs(t, cancelErr, ErrWagerNotFound)
		requireDec(t, "90", env.balance(t, 1))
	} else {
		assert.ErrorIs(t, acceptErr, ErrWagerNotFound)
		requireDec(t, "100", env.balance(t, 1))
		_, ok := env.holder(t, 1)
		assert.False(t, ok)
	}
}

func TestCoinFlipAlwaysHouse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, testHouseID, "1000")

	w := env.place(t, 1, "10", model.KindCoinFlip, 0)
	require.NotNil(t, w.Commit)
	assert.Empty(t, w.Commit.ServerSeed)

	_, err := env.machine.PickSide(ctx, w.ID, 2, model.Heads)
	assert.ErrorIs(t, err, ErrNotOwner)

	res, err := env.machine.PickSide(ctx, w.ID, 1, model.Heads)
	require.NoError(t, err)
	assert.False(t, res.Won)
	assert.Equal(t, model.Tails, res.Flip.Outcome)
	assert.Equal(t, model.Heads, res.Flip.Choice)
	require.NoError(t, coinflip.Verify(res.Flip.FairCommit, res.Flip.Derived))
	// The revealed seed matches the hash published at placement.
	assert.Equal(t, w.Commit.ServerSeedHash, coinflip.HashSeed(res.Flip.ServerSeed))

	require.NotNil(t, res.Settlement)
	assert.Equal(t, testHouseID, *res.Settlement.Winner)
	requireDec(t, "1", res.Settlement.Fee)

	player := env.account(t, 1)
	requireDec(t, "90", player.Balance)
	assert.Equal(t, int64(1), player.Losses)
	// The house put up no stake: it gains the pool minus the fee minus the stake it never escrowed.
	requireDec(t, "1009", env.balance(t, testHouseID))
	profits, err := env.ledger.Profits(ctx)
	require.NoError(t, err)
	requireDec(t, "1", profits.GameFee)

	flip, err := env.machine.CoinFlip(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Flip.ServerSeed, flip.ServerSeed)

	_, ok := env.holder(t, 1)
	assert.False(t, ok)
	_, err = env.registry.Wager(ctx, w.ID)
	assert.ErrorIs(t, err, ErrWagerNotFound)

	_, err = env.machine.PickSide(ctx, w.ID, 1, model.Tails)
	assert.ErrorIs(t, err, ErrWagerNotFound)
}

func TestCoinFlipRejectedByAcceptVsHouse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")

	w := env.place(t, 1, "10", model.KindCoinFlip, 0)
	_, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
	assert.ErrorIs(t, err, ErrWrongGame)
	_, err = env.machine.AcceptWager(ctx, w.ID, 2)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestAbandonRefunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")

	w := env.place(t, 1, "25", model.KindSoccer, 3)
	sess, err := env.machine.AcceptWager(ctx, w.ID, 2)
	require.NoError(t, err)
	_, err = env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindSoccer, 5)
	require.NoError(t, err)

	abandoned, err := env.machine.Abandon(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCancelled, abandoned.Status)

	requireDec(t, "100", env.balance(t, 1))
	requireDec(t, "100", env.balance(t, 2))
	history, err := env.machine.MatchHistory(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, ok := env.holder(t, 1)
	assert.False(t, ok)
	_, ok = env.holder(t, 2)
	assert.False(t, ok)

	_, err = env.machine.Abandon(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActiveSessionAndRestore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, 1, "100")
	env.fund(t, 2, "100")
	env.fund(t, 3, "100")

	w := env.place(t, 1, "10", model.KindBasketball, 1)
	sess, err := env.machine.AcceptWager(ctx, w.ID, 2)
	require.NoError(t, err)
	pending := env.place(t, 3, "10", model.KindDice, 1)

	active, err := env.machine.ActiveSession(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, active.ID)

	// A pending wager is not a session.
	_, err = env.machine.ActiveSession(ctx, 3)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, env.reserver.Clear(ctx))
	wagers, sessions, err := env.machine.RestoreReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, wagers)
	assert.Equal(t, 1, sessions)

	holder, ok := env.holder(t, 1)
	require.True(t, ok)
	assert.Equal(t, sess.ID, holder)
	holder, ok = env.holder(t, 3)
	require.True(t, ok)
	assert.Equal(t, pending.ID, holder)
}

func TestAcceptSurvivesFailedRebind(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		failReserve bool
		// heldUnderWager is set when the fallback reserve failed too.
		heldUnderWager bool
	}{
		{name: "re-reserved under the session"},
		{name: "left under the wager", failReserve: true, heldUnderWager: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.fund(t, 1, "100")
			env.fund(t, testHouseID, "1000")
			env.machine.reserver = &flakyReserver{
				MemoryReserver: env.reserver,
				err:            errors.New("connection reset"),
				failReserve:    tt.failReserve,
			}

			w := env.place(t, 1, "10", model.KindDice, 1)
			sess, err := env.machine.AcceptWagerVsHouse(ctx, w.ID, 1)
			require.NoError(t, err)

			holder, ok := env.holder(t, 1)
			require.True(t, ok)
			if tt.heldUnderWager {
				assert.Equal(t, w.ID, holder)
			} else {
				assert.Equal(t, sess.ID, holder)
			}

			res, err := env.machine.SubmitRoll(ctx, sess.ID, 1, model.KindDice, 6)
			require.NoError(t, err)
			require.NotNil(t, res.Settlement)

			_, ok = env.holder(t, 1)
			assert.False(t, ok, "a settled session must free its placer")
			env.place(t, 1, "5", model.KindDice, 1)
		})
	}
}
