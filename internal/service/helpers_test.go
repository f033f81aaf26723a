package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/pkg/lock"
	"telegram-wager-bot/internal/pkg/reserve"
	"telegram-wager-bot/internal/repository"
)

const (
	testHouseID = int64(9999)
	testChatID  = int64(-1001)
)

// fixedRand always draws n mod the range. With n = 0 a mine field holds its
// mines in cells 0..count-1 and the house always rolls its first value.
type fixedRand struct{ n int }

func (r fixedRand) IntN(n int) int { return r.n % n }

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

type testEnv struct {
	store    *repository.MemoryStore
	reserver *reserve.MemoryReserver
	ledger   *Ledger
	settler  *Settler
	registry *BetRegistry
	machine  *SessionMachine
}

type envOptions struct {
	feeRate decimal.Decimal
	mines   *mines.Config
}

type envOption func(*envOptions)

func withFeeRate(rate decimal.Decimal) envOption {
	return func(o *envOptions) { o.feeRate = rate }
}

func withMines(cfg *mines.Config) envOption {
	return func(o *envOptions) { o.mines = cfg }
}

func newTestEnv(t testingT, opts ...envOption) *testEnv {
	t.Helper()

	o := envOptions{feeRate: decimal.RequireFromString("0.05")}
	for _, opt := range opts {
		opt(&o)
	}

	games := []game.Game{connect4.New(), mines.New(o.mines), coinflip.New(nil)}
	for _, g := range dice.All(nil) {
		games = append(games, g)
	}
	registry, err := game.NewRegistry(games...)
	require.NoError(t, err)

	roller, err := dice.NewHouseRoller([]int{3, 4, 5, 6}, []int{1, 2, 2, 1}, fixedRand{})
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	reserver := reserve.NewMemoryReserver()
	sessionLocks := lock.NewSessionLock()

	ledger := NewLedger(store, lock.NewUserLock(), reserver, LedgerConfig{
		MoneyPlaces:       2,
		WithdrawalFeeRate: decimal.RequireFromString("0.02"),
	})
	settler := NewSettler(SettlerConfig{
		FeeRate:        o.feeRate,
		ReferralShare:  decimal.RequireFromString("0.1"),
		MoneyPlaces:    2,
		HouseAccountID: testHouseID,
	}, nil)

	return &testEnv{
		store:    store,
		reserver: reserver,
		ledger:   ledger,
		settler:  settler,
		registry: NewBetRegistry(ledger, registry, reserver, sessionLocks),
		machine: NewSessionMachine(ledger, registry, reserver, sessionLocks, settler, SessionMachineConfig{
			HouseAccountID: testHouseID,
			HouseRoller:    roller,
			Rand:           fixedRand{},
		}),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDec(t testingT, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func (e *testEnv) fund(t testingT, id int64, amount string) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), id, dec(amount))
	require.NoError(t, err)
}

func (e *testEnv) balance(t testingT, id int64) decimal.Decimal {
	t.Helper()
	acct, err := e.ledger.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance
}

func (e *testEnv) account(t testingT, id int64) *model.Account {
	t.Helper()
	acct, err := e.ledger.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct
}

func (e *testEnv) place(t testingT, id int64, amount string, kind model.GameKind, mode int) *model.PendingWager {
	t.Helper()
	w, err := e.registry.PlaceWager(context.Background(), PlaceWagerRequest{
		ChatID:    testChatID,
		AccountID: id,
		Amount:    amount,
		Kind:      kind,
		Mode:      mode,
	})
	require.NoError(t, err)
	return w
}

func (e *testEnv) holder(t testingT, id int64) (string, bool) {
	t.Helper()
	h, ok, err := e.reserver.Holder(context.Background(), id)
	require.NoError(t, err)
	return h, ok
}

// editSession rewrites a live session in place.
func (e *testEnv) editSession(t testingT, id string, fn func(s *model.Session)) {
	t.Helper()
	err := e.store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		s, err := tx.GetSession(ctx, id)
		if err != nil {
			return err
		}
		fn(s)
		return tx.SaveSession(ctx, s)
	})
	require.NoError(t, err)
}

// parseBoard reads rows top first: '.' empty, 'A' and 'B' the markers.
func parseBoard(rows ...string) *model.Grid {
	g := connect4.NewGrid()
	for r, row := range rows {
		for c, ch := range row {
			switch ch {
			case 'A':
				g.Cells[r*g.Cols+c] = connect4.MarkerA
			case 'B':
				g.Cells[r*g.Cols+c] = connect4.MarkerB
			}
		}
	}
	return g
}

// flakyReserver fails Rebind, and Reserve when failReserve is set, with err.
type flakyReserver struct {
	*reserve.MemoryReserver
	err         error
	failReserve bool
}

func (f *flakyReserver) Rebind(context.Context, int64, string, string) error {
	return f.err
}

func (f *flakyReserver) Reserve(ctx context.Context, accountID int64, holder string) error {
	if f.failReserve {
		return f.err
	}
	return f.MemoryReserver.Reserve(ctx, accountID, holder)
}
