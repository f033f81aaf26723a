// Tests run every case against the in-memory store and, when Docker is
// available, against a PostgreSQL container started with testcontainers-go.
package repository

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container, applies the schema and returns a pool.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// forEachStore runs fn against a fresh store of every kind.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("postgres", func(t *testing.T) {
		pool, cleanup := setupTestDB(t)
		defer cleanup()
		fn(t, NewPostgresStore(pool))
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAccount(id int64, balance string) *model.Account {
	return &model.Account{
		ID:               id,
		Username:         "user",
		Balance:          dec(balance),
		TotalWagered:     decimal.Zero,
		TotalWon:         decimal.Zero,
		ReferralCode:     uuid.NewString()[:8],
		ReferralEarnings: decimal.Zero,
	}
}

func mustTx(t *testing.T, store Store, fn func(ctx context.Context, tx Tx) error) {
	t.Helper()
	require.NoError(t, store.WithTx(context.Background(), fn))
}

// ============================================================================
// Account Tests
// ============================================================================

func TestStore_CreateAndGetAccount(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			created, err := tx.CreateAccount(ctx, newAccount(1, "100.50"))
			require.NoError(t, err)
			assert.True(t, created)

			// Second create is a no-op
			created, err = tx.CreateAccount(ctx, newAccount(1, "5"))
			require.NoError(t, err)
			assert.False(t, created)

			a, err := tx.GetAccount(ctx, 1)
			require.NoError(t, err)
			assert.True(t, a.Balance.Equal(dec("100.50")))
			assert.False(t, a.CreatedAt.IsZero())

			_, err = tx.GetAccount(ctx, 42)
			assert.ErrorIs(t, err, ErrAccountNotFound)
			return nil
		})
	})
}

func TestStore_SaveAccount(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		referrer := int64(2)
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			_, err := tx.CreateAccount(ctx, newAccount(1, "10"))
			require.NoError(t, err)

			a, err := tx.GetAccount(ctx, 1)
			require.NoError(t, err)
			a.Balance = dec("7.25")
			a.Wins = 3
			a.Losses = 1
			a.TotalWagered = dec("40")
			a.TotalWon = dec("30.5")
			a.ReferredBy = &referrer
			require.NoError(t, tx.SaveAccount(ctx, a))

			got, err := tx.GetAccount(ctx, 1)
			require.NoError(t, err)
			assert.True(t, got.Balance.Equal(dec("7.25")))
			assert.Equal(t, int64(3), got.Wins)
			assert.Equal(t, int64(1), got.Losses)
			assert.True(t, got.TotalWon.Equal(dec("30.5")))
			require.NotNil(t, got.ReferredBy)
			assert.Equal(t, referrer, *got.ReferredBy)

			assert.ErrorIs(t, tx.SaveAccount(ctx, newAccount(99, "1")), ErrAccountNotFound)
			return nil
		})
	})
}

func TestStore_GetAccountByReferralCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		a := newAccount(1, "0")
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			_, err := tx.CreateAccount(ctx, a)
			require.NoError(t, err)

			got, err := tx.GetAccountByReferralCode(ctx, a.ReferralCode)
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.ID)

			_, err = tx.GetAccountByReferralCode(ctx, "missing")
			assert.ErrorIs(t, err, ErrAccountNotFound)
			return nil
		})
	})
}

func TestStore_WithTxRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			_, err := tx.CreateAccount(ctx, newAccount(1, "10"))
			return err
		})

		errBoom := errors.New("boom")
		err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
			a, err := tx.GetAccount(ctx, 1)
			require.NoError(t, err)
			a.Balance = dec("0")
			require.NoError(t, tx.SaveAccount(ctx, a))
			_, err = tx.CreateAccount(ctx, newAccount(2, "5"))
			require.NoError(t, err)
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			a, err := tx.GetAccount(ctx, 1)
			require.NoError(t, err)
			assert.True(t, a.Balance.Equal(dec("10")), "balance change must be discarded")

			_, err = tx.GetAccount(ctx, 2)
			assert.ErrorIs(t, err, ErrAccountNotFound, "created account must be discarded")
			return nil
		})
	})
}

func TestStore_WithTxRollsBackLiveState(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		kept := &model.PendingWager{
			ID: uuid.NewString(), ChatID: -1, AccountID: 1, Amount: dec("5"),
			Kind: model.KindDice, Status: model.WagerProposed, CreatedAt: now,
		}
		sess := &model.Session{
			ID: uuid.NewString(), WagerID: uuid.NewString(), ChatID: -1, Kind: model.KindDice,
			ParticipantA: 2, ParticipantB: 3, Stake: dec("10"), RequiredWins: 1,
			TurnHolder: 2, RoundIndex: 1, Status: model.SessionInProgress,
			CreatedAt: now, UpdatedAt: now,
		}
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			require.NoError(t, tx.InsertWager(ctx, kept))
			return tx.InsertSession(ctx, sess)
		})

		errBoom := errors.New("boom")
		err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
			w, err := tx.GetWager(ctx, kept.ID)
			require.NoError(t, err)
			w.Mode = 3
			w.Status = model.WagerModeSelected
			require.NoError(t, tx.SaveWager(ctx, w))
			require.NoError(t, tx.DeleteWager(ctx, kept.ID))
			require.NoError(t, tx.InsertWager(ctx, &model.PendingWager{
				ID: uuid.NewString(), ChatID: -1, AccountID: 4, Amount: dec("1"),
				Kind: model.KindDice, Status: model.WagerProposed, CreatedAt: now,
			}))

			s, err := tx.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			s.ScoreA = 1
			require.NoError(t, tx.SaveSession(ctx, s))
			require.NoError(t, tx.DeleteSession(ctx, sess.ID))

			require.NoError(t, tx.InsertMatch(ctx, &model.MatchRecord{
				SessionID: sess.ID, ChatID: -1, Kind: model.KindDice,
				ParticipantA: 2, ParticipantB: 3, Stake: dec("10"), Fee: dec("1"), Payout: dec("19"),
				CreatedAt: now,
			}))
			require.NoError(t, tx.AddProfit(ctx, model.ProfitDelta{GameFee: dec("1"), WithdrawalFee: decimal.Zero}))
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			wagers, err := tx.ListWagers(ctx)
			require.NoError(t, err)
			require.Len(t, wagers, 1)
			assert.Equal(t, kept.ID, wagers[0].ID)
			assert.Equal(t, model.WagerProposed, wagers[0].Status)
			assert.Zero(t, wagers[0].Mode)

			s, err := tx.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Zero(t, s.ScoreA)

			matches, err := tx.ListMatches(ctx, 2, 10)
			require.NoError(t, err)
			assert.Empty(t, matches)

			p, err := tx.GetProfits(ctx)
			require.NoError(t, err)
			assert.True(t, p.TotalProfit.IsZero())
			return nil
		})
	})
}

func TestMemoryStore_RollbackLeavesUntouchedKeys(t *testing.T) {
	store := NewMemoryStore()
	mustTx(t, store, func(ctx context.Context, tx Tx) error {
		for id := int64(1); id <= 3; id++ {
			if _, err := tx.CreateAccount(ctx, newAccount(id, "10")); err != nil {
				return err
			}
		}
		return nil
	})
	before := store.state.accounts[3]

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, id := range []int64{1, 1, 2} {
			a, err := tx.GetAccount(ctx, id)
			require.NoError(t, err)
			a.Balance = a.Balance.Add(dec("1"))
			require.NoError(t, tx.SaveAccount(ctx, a))
		}
		_, err := tx.GetAccount(ctx, 3)
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	read := &memTx{state: store.state}
	for id := int64(1); id <= 3; id++ {
		a, err := read.GetAccount(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("10")), "account %d", id)
	}
	assert.Same(t, before, store.state.accounts[3], "a read-only key is neither copied nor replaced")
}

// ============================================================================
// Wager Tests
// ============================================================================

func TestStore_WagerLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		w := &model.PendingWager{
			ID:        uuid.NewString(),
			ChatID:    -100,
			AccountID: 1,
			Amount:    dec("12.50"),
			Kind:      model.KindDice,
			Status:    model.WagerProposed,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			require.NoError(t, tx.InsertWager(ctx, w))

			// Same account and chat may hold only one pending wager
			dup := *w
			dup.ID = uuid.NewString()
			assert.ErrorIs(t, tx.InsertWager(ctx, &dup), ErrWagerExists)
			return nil
		})

		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			got, err := tx.GetWager(ctx, w.ID)
			require.NoError(t, err)
			assert.True(t, got.Amount.Equal(w.Amount))
			assert.Nil(t, got.Commit)

			got.Mode = 2
			got.Status = model.WagerModeSelected
			require.NoError(t, tx.SaveWager(ctx, got))

			list, err := tx.ListWagers(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, 2, list[0].Mode)
			assert.Equal(t, model.WagerModeSelected, list[0].Status)

			require.NoError(t, tx.DeleteWager(ctx, w.ID))
			assert.ErrorIs(t, tx.DeleteWager(ctx, w.ID), ErrWagerNotFound)
			_, err = tx.GetWager(ctx, w.ID)
			assert.ErrorIs(t, err, ErrWagerNotFound)
			return nil
		})
	})
}

func TestStore_WagerCommitRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		w := &model.PendingWager{
			ID:        uuid.NewString(),
			ChatID:    -100,
			AccountID: 1,
			Amount:    dec("5"),
			Kind:      model.KindCoinFlip,
			Status:    model.WagerProposed,
			Commit: &model.FairCommit{
				ServerSeed:     "seed",
				ServerSeedHash: "hash",
				ClientSeed:     "client",
				Nonce:          1,
			},
			CreatedAt: time.Now(),
		}
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			require.NoError(t, tx.InsertWager(ctx, w))
			got, err := tx.GetWager(ctx, w.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Commit)
			assert.Equal(t, *w.Commit, *got.Commit)
			return nil
		})
	})
}

// ============================================================================
// Session Tests
// ============================================================================

func TestStore_SessionRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		four := 4
		now := time.Now().UTC().Truncate(time.Microsecond)
		cells := make([]int8, 42)
		cells[41] = 1
		cells[40] = 2

		sessions := []*model.Session{
			{
				ID: uuid.NewString(), WagerID: uuid.NewString(), ChatID: -1, Kind: model.KindDice,
				ParticipantA: 1, ParticipantB: 2, Stake: dec("10"), RequiredWins: 2,
				TurnHolder: 2, RoundIndex: 1, Round: model.RoundOutcomes{A: &four},
				Status: model.SessionInProgress, CreatedAt: now, UpdatedAt: now,
			},
			{
				ID: uuid.NewString(), WagerID: uuid.NewString(), ChatID: -1, Kind: model.KindConnect4,
				ParticipantA: 3, ParticipantB: 4, Stake: dec("1"), RequiredWins: 1,
				TurnHolder: 3, RoundIndex: 1, Status: model.SessionInProgress,
				Grid:      &model.Grid{Rows: 6, Cols: 7, Cells: cells},
				CreatedAt: now, UpdatedAt: now.Add(time.Second),
			},
			{
				ID: uuid.NewString(), WagerID: uuid.NewString(), ChatID: -1, Kind: model.KindMines,
				ParticipantA: 5, ParticipantB: 9999, VsHouse: true, Stake: dec("3"), RequiredWins: 1,
				TurnHolder: 5, RoundIndex: 1, Status: model.SessionInProgress,
				Field: &model.MineField{
					Rows: 5, Cols: 5, MineCount: 3,
					Mines: []int{2, 7, 19}, Revealed: []int{0, 1}, SafeHits: 2,
				},
				CreatedAt: now, UpdatedAt: now.Add(2 * time.Second),
			},
		}

		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			for _, s := range sessions {
				require.NoError(t, tx.InsertSession(ctx, s))
			}
			return nil
		})

		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			for _, want := range sessions {
				got, err := tx.GetSession(ctx, want.ID)
				require.NoError(t, err)
				assert.Equal(t, want.Kind, got.Kind)
				assert.Equal(t, want.TurnHolder, got.TurnHolder)
				assert.True(t, want.Stake.Equal(got.Stake))
				assert.Equal(t, want.Round.A == nil, got.Round.A == nil)
				assert.Nil(t, got.Round.B)
				assert.Equal(t, want.Grid, got.Grid)
				assert.Equal(t, want.Field, got.Field)
			}

			list, err := tx.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, sessions[0].ID, list[0].ID)
			return nil
		})
	})
}

func TestStore_SaveAndDeleteSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		now := time.Now()
		s := &model.Session{
			ID: uuid.NewString(), WagerID: uuid.NewString(), ChatID: -1, Kind: model.KindDarts,
			ParticipantA: 1, ParticipantB: 2, Stake: dec("2"), RequiredWins: 1,
			TurnHolder: 1, RoundIndex: 1, Status: model.SessionInProgress,
			CreatedAt: now, UpdatedAt: now,
		}
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			require.NoError(t, tx.InsertSession(ctx, s))

			a, b := 6, 3
			s.Round = model.RoundOutcomes{A: &a, B: &b}
			s.ScoreA = 1
			s.Status = model.SessionRoundResolving
			require.NoError(t, tx.SaveSession(ctx, s))

			got, err := tx.GetSession(ctx, s.ID)
			require.NoError(t, err)
			require.True(t, got.Round.Complete())
			assert.Equal(t, 6, *got.Round.A)
			assert.Equal(t, 3, *got.Round.B)
			assert.Equal(t, 1, got.ScoreA)
			assert.Equal(t, model.SessionRoundResolving, got.Status)

			require.NoError(t, tx.DeleteSession(ctx, s.ID))
			_, err = tx.GetSession(ctx, s.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
			assert.ErrorIs(t, tx.SaveSession(ctx, s), ErrSessionNotFound)
			return nil
		})
	})
}

// ============================================================================
// History and Profit Tests
// ============================================================================

func TestStore_Matches(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		winner := int64(1)
		base := time.Now().UTC().Truncate(time.Microsecond)
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			for i := 0; i < 3; i++ {
				m := &model.MatchRecord{
					SessionID: uuid.NewString(), ChatID: -1, Kind: model.KindDice,
					ParticipantA: 1, ParticipantB: int64(10 + i), Winner: &winner,
					Stake: dec("10"), Fee: dec("1"), Payout: dec("19"),
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}
				require.NoError(t, tx.InsertMatch(ctx, m))
				assert.NotZero(t, m.ID)

				dup := *m
				assert.ErrorIs(t, tx.InsertMatch(ctx, &dup), ErrMatchExists)
			}
			return nil
		})

		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			matches, err := tx.ListMatches(ctx, 1, 2)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			assert.Equal(t, int64(12), matches[0].ParticipantB, "newest first")
			assert.True(t, matches[0].Payout.Equal(dec("19")))

			matches, err = tx.ListMatches(ctx, 11, 10)
			require.NoError(t, err)
			require.Len(t, matches, 1)

			matches, err = tx.ListMatches(ctx, 77, 10)
			require.NoError(t, err)
			assert.Empty(t, matches)
			return nil
		})
	})
}

func TestStore_CoinFlip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		flip := &model.CoinFlip{
			SessionID: uuid.NewString(),
			AccountID: 1,
			Choice:    model.Heads,
			Derived:   model.Heads,
			Outcome:   model.Tails,
			FairCommit: model.FairCommit{
				ServerSeed: "s", ServerSeedHash: "h", ClientSeed: "c", Nonce: 1,
			},
			CreatedAt: time.Now(),
		}
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			require.NoError(t, tx.InsertCoinFlip(ctx, flip))
			got, err := tx.GetCoinFlip(ctx, flip.SessionID)
			require.NoError(t, err)
			assert.Equal(t, flip.FairCommit, got.FairCommit)
			assert.Equal(t, model.Tails, got.Outcome)

			_, err = tx.GetCoinFlip(ctx, "missing")
			assert.ErrorIs(t, err, ErrCoinFlipNotFound)
			return nil
		})
	})
}

func TestStore_Profits(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		mustTx(t, store, func(ctx context.Context, tx Tx) error {
			require.NoError(t, tx.AddProfit(ctx, model.ProfitDelta{GameFee: dec("1.50"), WithdrawalFee: decimal.Zero}))
			require.NoError(t, tx.AddProfit(ctx, model.ProfitDelta{GameFee: decimal.Zero, WithdrawalFee: dec("0.20")}))

			p, err := tx.GetProfits(ctx)
			require.NoError(t, err)
			assert.True(t, p.GameFee.Equal(dec("1.50")))
			assert.True(t, p.WithdrawalFee.Equal(dec("0.20")))
			assert.True(t, p.TotalProfit.Equal(dec("1.70")))
			return nil
		})
	})
}
