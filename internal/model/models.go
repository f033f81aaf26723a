// Package model defines the data models for the wager settlement engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a player's balance and lifetime stats.
// The house actor is an ordinary account with a configured id.
type Account struct {
	ID               int64           `db:"id"`
	Username         string          `db:"username"`
	Balance          decimal.Decimal `db:"balance"`
	Wins             int64           `db:"wins"`
	Losses           int64           `db:"losses"`
	TotalWagered     decimal.Decimal `db:"total_wagered"`
	TotalWon         decimal.Decimal `db:"total_won"`
	ReferralCode     string          `db:"referral_code"`
	ReferredBy       *int64          `db:"referred_by"`
	ReferralEarnings decimal.Decimal `db:"referral_earnings"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// WinRate returns the share of decided matches the account won, in percent.
func (a *Account) WinRate() float64 {
	total := a.Wins + a.Losses
	if total == 0 {
		return 0
	}
	return float64(a.Wins) / float64(total) * 100
}

// StatsDelta is an increment applied to an account's lifetime stats.
type StatsDelta struct {
	Wins         int64
	Losses       int64
	TotalWagered decimal.Decimal
	TotalWon     decimal.Decimal
}

// GameKind identifies a game in the catalogue.
type GameKind string

// Game kinds.
const (
	KindDice       GameKind = "dice"
	KindBowling    GameKind = "bowling"
	KindDarts      GameKind = "darts"
	KindBasketball GameKind = "basketball"
	KindSoccer     GameKind = "soccer"
	KindConnect4   GameKind = "connect4"
	KindMines      GameKind = "mines"
	KindCoinFlip   GameKind = "coinflip"
)

// WagerStatus is the lifecycle state of a pending wager.
type WagerStatus string

// Pending wager states.
const (
	WagerProposed     WagerStatus = "proposed"
	WagerModeSelected WagerStatus = "mode_selected"
)

// PendingWager is a placed but unaccepted wager. Mode holds required_wins for
// turn-sequenced games and the mine count for mine fields.
type PendingWager struct {
	ID        string          `db:"id"`
	ChatID    int64           `db:"chat_id"`
	AccountID int64           `db:"account_id"`
	Amount    decimal.Decimal `db:"amount"`
	Kind      GameKind        `db:"game_kind"`
	Mode      int             `db:"mode"`
	Status    WagerStatus     `db:"status"`
	Commit    *FairCommit     `db:"-"`
	CreatedAt time.Time       `db:"created_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (w *PendingWager) Clone() *PendingWager {
	c := *w
	if w.Commit != nil {
		commit := *w.Commit
		c.Commit = &commit
	}
	return &c
}

// Published returns a copy with the commitment's server seed withheld.
func (w *PendingWager) Published() *PendingWager {
	c := w.Clone()
	if c.Commit != nil {
		pub := c.Commit.Published()
		c.Commit = &pub
	}
	return c
}

// FairCommit is a provably fair commitment. ServerSeed stays secret until the reveal.
type FairCommit struct {
	ServerSeed     string `db:"server_seed"`
	ServerSeedHash string `db:"server_seed_hash"`
	ClientSeed     string `db:"client_seed"`
	Nonce          int64  `db:"nonce"`
}

// Published returns the commitment with the server seed withheld.
func (c FairCommit) Published() FairCommit {
	c.ServerSeed = ""
	return c
}

// SessionStatus is the lifecycle state of an accepted wager.
type SessionStatus string

// Session states.
const (
	SessionInProgress     SessionStatus = "in_progress"
	SessionRoundResolving SessionStatus = "round_resolving"
	SessionResolved       SessionStatus = "resolved"
	SessionCancelled      SessionStatus = "cancelled"
)

// Terminal reports whether no further actions are accepted.
func (s SessionStatus) Terminal() bool {
	return s == SessionResolved || s == SessionCancelled
}

// RoundOutcomes holds the values submitted in the current round.
type RoundOutcomes struct {
	A *int `db:"round_a"`
	B *int `db:"round_b"`
}

// Complete reports whether both sides submitted.
func (r RoundOutcomes) Complete() bool {
	return r.A != nil && r.B != nil
}

// Grid is a drop-piece board stored row-major, row 0 at the top.
// A cell holds 0 when empty, 1 for participant A and 2 for participant B.
type Grid struct {
	Rows  int    `db:"grid_rows"`
	Cols  int    `db:"grid_cols"`
	Cells []int8 `db:"grid_cells"`
}

// MineField is the hidden mine layout plus the reveal progress of a session.
type MineField struct {
	Rows      int   `db:"field_rows"`
	Cols      int   `db:"field_cols"`
	MineCount int   `db:"mine_count"`
	Mines     []int `db:"mines"`
	Revealed  []int `db:"revealed"`
	SafeHits  int   `db:"safe_hits"`
}

// Session is an accepted wager in play.
type Session struct {
	ID           string          `db:"id"`
	WagerID      string          `db:"wager_id"`
	ChatID       int64           `db:"chat_id"`
	Kind         GameKind        `db:"game_kind"`
	ParticipantA int64           `db:"participant_a"`
	ParticipantB int64           `db:"participant_b"`
	VsHouse      bool            `db:"vs_house"`
	Stake        decimal.Decimal `db:"stake"`
	RequiredWins int             `db:"required_wins"`
	TurnHolder   int64           `db:"turn_holder"`
	RoundIndex   int             `db:"round_index"`
	Round        RoundOutcomes   `db:"-"`
	ScoreA       int             `db:"score_a"`
	ScoreB       int             `db:"score_b"`
	Status       SessionStatus   `db:"status"`
	Winner       *int64          `db:"-"`
	Grid         *Grid           `db:"-"`
	Field        *MineField      `db:"-"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (s *Session) Clone() *Session {
	c := *s
	if s.Round.A != nil {
		v := *s.Round.A
		c.Round.A = &v
	}
	if s.Round.B != nil {
		v := *s.Round.B
		c.Round.B = &v
	}
	if s.Winner != nil {
		w := *s.Winner
		c.Winner = &w
	}
	if s.Grid != nil {
		g := *s.Grid
		g.Cells = append([]int8(nil), s.Grid.Cells...)
		c.Grid = &g
	}
	if s.Field != nil {
		f := *s.Field
		f.Mines = append([]int(nil), s.Field.Mines...)
		f.Revealed = append([]int(nil), s.Field.Revealed...)
		c.Field = &f
	}
	return &c
}

// Participants returns both participant ids, A first.
func (s *Session) Participants() []int64 {
	return []int64{s.ParticipantA, s.ParticipantB}
}

// Has reports whether the account takes part in the session.
func (s *Session) Has(accountID int64) bool {
	return s.ParticipantA == accountID || s.ParticipantB == accountID
}

// Opponent returns the other participant.
func (s *Session) Opponent(accountID int64) int64 {
	if accountID == s.ParticipantA {
		return s.ParticipantB
	}
	return s.ParticipantA
}

// MatchRecord is the immutable history entry written once per resolved session.
// Winner is nil for a draw.
type MatchRecord struct {
	ID           int64           `db:"id"`
	SessionID    string          `db:"session_id"`
	ChatID       int64           `db:"chat_id"`
	Kind         GameKind        `db:"game_kind"`
	ParticipantA int64           `db:"participant_a"`
	ParticipantB int64           `db:"participant_b"`
	Winner       *int64          `db:"winner"`
	Stake        decimal.Decimal `db:"stake"`
	Fee          decimal.Decimal `db:"fee"`
	Payout       decimal.Decimal `db:"payout"`
	ScoreA       int             `db:"score_a"`
	ScoreB       int             `db:"score_b"`
	CreatedAt    time.Time       `db:"created_at"`
}

// CoinSide is one face of the coin.
type CoinSide string

// Coin sides.
const (
	Heads CoinSide = "heads"
	Tails CoinSide = "tails"
)

// Opposite returns the other face.
func (s CoinSide) Opposite() CoinSide {
	if s == Heads {
		return Tails
	}
	return Heads
}

// CoinFlip stores a revealed coin flip so anyone can re-derive its outcome.
type CoinFlip struct {
	SessionID string   `db:"session_id"`
	AccountID int64    `db:"account_id"`
	Choice    CoinSide `db:"choice"`
	Derived   CoinSide `db:"derived"`
	Outcome   CoinSide `db:"outcome"`
	FairCommit
	CreatedAt time.Time `db:"created_at"`
}

// ProfitLedger holds the house revenue accumulators.
type ProfitLedger struct {
	GameFee       decimal.Decimal `db:"game_fee"`
	WithdrawalFee decimal.Decimal `db:"withdrawal_fee"`
	TotalProfit   decimal.Decimal `db:"total_profit"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// ProfitDelta is an increment applied to the profit ledger.
type ProfitDelta struct {
	GameFee       decimal.Decimal
	WithdrawalFee decimal.Decimal
}
