// Package event publishes settled matches to downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/model"
)

// MatchSettled is the message body published for every resolved session.
// Winner is absent for a draw.
type MatchSettled struct {
	MatchID      int64           `json:"match_id"`
	SessionID    string          `json:"session_id"`
	ChatID       int64           `json:"chat_id"`
	Game         model.GameKind  `json:"game"`
	ParticipantA int64           `json:"participant_a"`
	ParticipantB int64           `json:"participant_b"`
	Winner       *int64          `json:"winner,omitempty"`
	Stake        decimal.Decimal `json:"stake"`
	Fee          decimal.Decimal `json:"fee"`
	Payout       decimal.Decimal `json:"payout"`
	ScoreA       int             `json:"score_a"`
	ScoreB       int             `json:"score_b"`
	SettledAt    time.Time       `json:"settled_at"`
}

// NewMatchSettled builds the event for a match record.
func NewMatchSettled(m *model.MatchRecord) MatchSettled {
	return MatchSettled{
		MatchID:      m.ID,
		SessionID:    m.SessionID,
		ChatID:       m.ChatID,
		Game:         m.Kind,
		ParticipantA: m.ParticipantA,
		ParticipantB: m.ParticipantB,
		Winner:       m.Winner,
		Stake:        m.Stake,
		Fee:          m.Fee,
		Payout:       m.Payout,
		ScoreA:       m.ScoreA,
		ScoreB:       m.ScoreB,
		SettledAt:    m.CreatedAt,
	}
}

// Encode returns the JSON wire form of the event.
func (e MatchSettled) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers settlement events. Publishing happens after the
// settlement committed, so a failure never undoes the settlement.
type Publisher interface {
	PublishMatch(ctx context.Context, m *model.MatchRecord) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishMatch(context.Context, *model.MatchRecord) error { return nil }

func (Nop) Close() error { return nil }
