package repository

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/model"
)

var errReferralCodeTaken = errors.New("referral code already in use")

// memoryState is everything a MemoryStore holds. Stored values are never
// mutated in place: writes swap in a fresh copy, so a transaction can roll
// back by putting the old pointers back.
type memoryState struct {
	accounts  map[int64]*model.Account
	wagers    map[string]*model.PendingWager
	sessions  map[string]*model.Session
	matches   []*model.MatchRecord
	coinFlips map[string]*model.CoinFlip
	profits   model.ProfitLedger
	nextMatch int64
}

// undoLog holds the value each key had before its first write in the
// transaction. A nil entry means the key was absent.
type undoLog struct {
	accounts  map[int64]*model.Account
	wagers    map[string]*model.PendingWager
	sessions  map[string]*model.Session
	coinFlips map[string]*model.CoinFlip
	matches   int
	nextMatch int64
	profits   model.ProfitLedger
}

func newUndoLog(s *memoryState) *undoLog {
	return &undoLog{
		accounts:  make(map[int64]*model.Account),
		wagers:    make(map[string]*model.PendingWager),
		sessions:  make(map[string]*model.Session),
		coinFlips: make(map[string]*model.CoinFlip),
		matches:   len(s.matches),
		nextMatch: s.nextMatch,
		profits:   s.profits,
	}
}

func (u *undoLog) restore(s *memoryState) {
	restoreKeys(u.accounts, s.accounts)
	restoreKeys(u.wagers, s.wagers)
	restoreKeys(u.sessions, s.sessions)
	restoreKeys(u.coinFlips, s.coinFlips)
	clear(s.matches[u.matches:])
	s.matches = s.matches[:u.matches]
	s.nextMatch = u.nextMatch
	s.profits = u.profits
}

// remember records the current value of k unless it was already recorded.
func remember[K comparable, V any](undo, live map[K]*V, k K) {
	if _, ok := undo[k]; ok {
		return
	}
	undo[k] = live[k]
}

func restoreKeys[K comparable, V any](undo, live map[K]*V) {
	for k, prev := range undo {
		if prev == nil {
			delete(live, k)
		} else {
			live[k] = prev
		}
	}
}

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	if a.ReferredBy != nil {
		ref := *a.ReferredBy
		c.ReferredBy = &ref
	}
	return &c
}

// MemoryStore implements Store in process memory. Transactions are serialized
// by a single mutex; it backs tests and single-process deployments without a database.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			accounts:  make(map[int64]*model.Account),
			wagers:    make(map[string]*model.PendingWager),
			sessions:  make(map[string]*model.Session),
			coinFlips: make(map[string]*model.CoinFlip),
			profits: model.ProfitLedger{
				GameFee:       decimal.Zero,
				WithdrawalFee: decimal.Zero,
				TotalProfit:   decimal.Zero,
			},
		},
	}
}

// WithTx runs fn with exclusive access to the store and undoes its writes if
// fn fails. Only the keys fn wrote are restored.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state, undo: newUndoLog(m.state)}
	if err := fn(ctx, tx); err != nil {
		tx.undo.restore(m.state)
		return err
	}
	return nil
}

// memTx implements Tx over the live state. Values are copied in and out so
// callers never alias stored data.
type memTx struct {
	state *memoryState
	undo  *undoLog
}

func (t *memTx) GetAccount(_ context.Context, id int64) (*model.Account, error) {
	a, ok := t.state.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (t *memTx) CreateAccount(_ context.Context, a *model.Account) (bool, error) {
	if _, ok := t.state.accounts[a.ID]; ok {
		return false, nil
	}
	for _, existing := range t.state.accounts {
		if existing.ReferralCode == a.ReferralCode {
			return false, errReferralCodeTaken
		}
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	remember(t.undo.accounts, t.state.accounts, a.ID)
	t.state.accounts[a.ID] = cloneAccount(a)
	return true, nil
}

func (t *memTx) SaveAccount(_ context.Context, a *model.Account) error {
	if _, ok := t.state.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	a.UpdatedAt = time.Now()
	remember(t.undo.accounts, t.state.accounts, a.ID)
	t.state.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (t *memTx) GetAccountByReferralCode(_ context.Context, code string) (*model.Account, error) {
	for _, a := range t.state.accounts {
		if a.ReferralCode == code {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (t *memTx) InsertWager(_ context.Context, w *model.PendingWager) error {
	for _, existing := range t.state.wagers {
		if existing.ChatID == w.ChatID && existing.AccountID == w.AccountID {
			return ErrWagerExists
		}
	}
	remember(t.undo.wagers, t.state.wagers, w.ID)
	t.state.wagers[w.ID] = w.Clone()
	return nil
}

func (t *memTx) GetWager(_ context.Context, id string) (*model.PendingWager, error) {
	w, ok := t.state.wagers[id]
	if !ok {
		return nil, ErrWagerNotFound
	}
	return w.Clone(), nil
}

func (t *memTx) SaveWager(_ context.Context, w *model.PendingWager) error {
	existing, ok := t.state.wagers[w.ID]
	if !ok {
		return ErrWagerNotFound
	}
	updated := existing.Clone()
	updated.Mode = w.Mode
	updated.Status = w.Status
	remember(t.undo.wagers, t.state.wagers, w.ID)
	t.state.wagers[w.ID] = updated
	return nil
}

func (t *memTx) DeleteWager(_ context.Context, id string) error {
	if _, ok := t.state.wagers[id]; !ok {
		return ErrWagerNotFound
	}
	remember(t.undo.wagers, t.state.wagers, id)
	delete(t.state.wagers, id)
	return nil
}

func (t *memTx) ListWagers(_ context.Context) ([]*model.PendingWager, error) {
	wagers := make([]*model.PendingWager, 0, len(t.state.wagers))
	for _, w := range t.state.wagers {
		wagers = append(wagers, w.Clone())
	}
	slices.SortFunc(wagers, func(a, b *model.PendingWager) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return wagers, nil
}

func (t *memTx) InsertSession(_ context.Context, s *model.Session) error {
	remember(t.undo.sessions, t.state.sessions, s.ID)
	t.state.sessions[s.ID] = s.Clone()
	return nil
}

func (t *memTx) GetSession(_ context.Context, id string) (*model.Session, error) {
	s, ok := t.state.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (t *memTx) SaveSession(_ context.Context, s *model.Session) error {
	if _, ok := t.state.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	remember(t.undo.sessions, t.state.sessions, s.ID)
	t.state.sessions[s.ID] = s.Clone()
	return nil
}

func (t *memTx) DeleteSession(_ context.Context, id string) error {
	if _, ok := t.state.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	remember(t.undo.sessions, t.state.sessions, id)
	delete(t.state.sessions, id)
	return nil
}

func (t *memTx) ListSessions(_ context.Context) ([]*model.Session, error) {
	sessions := make([]*model.Session, 0, len(t.state.sessions))
	for _, s := range t.state.sessions {
		sessions = append(sessions, s.Clone())
	}
	slices.SortFunc(sessions, func(a, b *model.Session) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return sessions, nil
}

func (t *memTx) InsertMatch(_ context.Context, m *model.MatchRecord) error {
	for _, existing := range t.state.matches {
		if existing.SessionID == m.SessionID {
			return ErrMatchExists
		}
	}
	t.state.nextMatch++
	m.ID = t.state.nextMatch
	c := *m
	t.state.matches = append(t.state.matches, &c)
	return nil
}

func (t *memTx) ListMatches(_ context.Context, accountID int64, limit int) ([]*model.MatchRecord, error) {
	var matches []*model.MatchRecord
	for _, m := range t.state.matches {
		if m.ParticipantA == accountID || m.ParticipantB == accountID {
			c := *m
			matches = append(matches, &c)
		}
	}
	slices.SortFunc(matches, func(a, b *model.MatchRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (t *memTx) InsertCoinFlip(_ context.Context, c *model.CoinFlip) error {
	flip := *c
	remember(t.undo.coinFlips, t.state.coinFlips, c.SessionID)
	t.state.coinFlips[c.SessionID] = &flip
	return nil
}

func (t *memTx) GetCoinFlip(_ context.Context, sessionID string) (*model.CoinFlip, error) {
	c, ok := t.state.coinFlips[sessionID]
	if !ok {
		return nil, ErrCoinFlipNotFound
	}
	flip := *c
	return &flip, nil
}

func (t *memTx) AddProfit(_ context.Context, d model.ProfitDelta) error {
	p := &t.state.profits
	p.GameFee = p.GameFee.Add(d.GameFee)
	p.WithdrawalFee = p.WithdrawalFee.Add(d.WithdrawalFee)
	p.TotalProfit = p.TotalProfit.Add(d.GameFee).Add(d.WithdrawalFee)
	p.UpdatedAt = time.Now()
	return nil
}

func (t *memTx) GetProfits(_ context.Context) (*model.ProfitLedger, error) {
	p := t.state.profits
	return &p, nil
}
