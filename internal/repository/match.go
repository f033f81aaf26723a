package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-wager-bot/internal/model"
)

func scanMatch(row pgx.Row) (*model.MatchRecord, error) {
	var m model.MatchRecord
	err := row.Scan(
		&m.ID,
		&m.SessionID,
		&m.ChatID,
		&m.Kind,
		&m.ParticipantA,
		&m.ParticipantB,
		&m.Winner,
		&m.Stake,
		&m.Fee,
		&m.Payout,
		&m.ScoreA,
		&m.ScoreB,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMatch appends a history entry and sets m.ID.
// Returns ErrMatchExists if the session was already recorded.
func (t *pgTx) InsertMatch(ctx context.Context, m *model.MatchRecord) error {
	const query = `
		INSERT INTO match_records (session_id, chat_id, game_kind, participant_a, participant_b,
			winner, stake, fee, payout, score_a, score_b, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id
	`

	err := t.tx.QueryRow(ctx, query,
		m.SessionID, m.ChatID, m.Kind, m.ParticipantA, m.ParticipantB,
		m.Winner, m.Stake, m.Fee, m.Payout, m.ScoreA, m.ScoreB, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMatchExists
		}
		return fmt.Errorf("failed to insert match record: %w", err)
	}
	return nil
}

// ListMatches returns the most recent matches the account took part in, newest first.
func (t *pgTx) ListMatches(ctx context.Context, accountID int64, limit int) ([]*model.MatchRecord, error) {
	const query = `
		SELECT id, session_id, chat_id, game_kind, participant_a, participant_b,
			winner, stake, fee, payout, score_a, score_b, created_at
		FROM match_records
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := t.tx.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}
