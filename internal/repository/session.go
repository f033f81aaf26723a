package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-wager-bot/internal/model"
)

const sessionColumns = `id, wager_id, chat_id, game_kind, participant_a, participant_b, vs_house,
	stake, required_wins, turn_holder, round_index, round_a, round_b, score_a, score_b, status,
	grid_rows, grid_cols, grid_cells, field_rows, field_cols, mine_count, mines, revealed,
	safe_hits, created_at, updated_at`

// sessionRow carries the nullable variant columns between pgx and model.Session.
type sessionRow struct {
	gridRows, gridCols              *int
	gridCells                       []int16
	fieldRows, fieldCols, mineCount *int
	mines, revealed                 []int32
}

func newSessionRow(s *model.Session) sessionRow {
	var r sessionRow
	if s.Grid != nil {
		r.gridRows, r.gridCols = &s.Grid.Rows, &s.Grid.Cols
		r.gridCells = make([]int16, len(s.Grid.Cells))
		for i, c := range s.Grid.Cells {
			r.gridCells[i] = int16(c)
		}
	}
	if s.Field != nil {
		r.fieldRows, r.fieldCols, r.mineCount = &s.Field.Rows, &s.Field.Cols, &s.Field.MineCount
		r.mines = toInt32s(s.Field.Mines)
		r.revealed = toInt32s(s.Field.Revealed)
	}
	return r
}

func (r sessionRow) apply(s *model.Session, safeHits int) {
	if r.gridRows != nil && r.gridCols != nil {
		cells := make([]int8, len(r.gridCells))
		for i, c := range r.gridCells {
			cells[i] = int8(c)
		}
		s.Grid = &model.Grid{Rows: *r.gridRows, Cols: *r.gridCols, Cells: cells}
	}
	if r.fieldRows != nil && r.fieldCols != nil && r.mineCount != nil {
		s.Field = &model.MineField{
			Rows:      *r.fieldRows,
			Cols:      *r.fieldCols,
			MineCount: *r.mineCount,
			Mines:     fromInt32s(r.mines),
			Revealed:  fromInt32s(r.revealed),
			SafeHits:  safeHits,
		}
	}
}

func toInt32s(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

func fromInt32s(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s        model.Session
		r        sessionRow
		safeHits int
	)
	err := row.Scan(
		&s.ID,
		&s.WagerID,
		&s.ChatID,
		&s.Kind,
		&s.ParticipantA,
		&s.ParticipantB,
		&s.VsHouse,
		&s.Stake,
		&s.RequiredWins,
		&s.TurnHolder,
		&s.RoundIndex,
		&s.Round.A,
		&s.Round.B,
		&s.ScoreA,
		&s.ScoreB,
		&s.Status,
		&r.gridRows,
		&r.gridCols,
		&r.gridCells,
		&r.fieldRows,
		&r.fieldCols,
		&r.mineCount,
		&r.mines,
		&r.revealed,
		&safeHits,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.apply(&s, safeHits)
	return &s, nil
}

func safeHitsOf(s *model.Session) int {
	if s.Field == nil {
		return 0
	}
	return s.Field.SafeHits
}

// InsertSession stores a newly accepted session.
func (t *pgTx) InsertSession(ctx context.Context, s *model.Session) error {
	const query = `
		INSERT INTO sessions (id, wager_id, chat_id, game_kind, participant_a, participant_b, vs_house,
			stake, required_wins, turn_holder, round_index, round_a, round_b, score_a, score_b, status,
			grid_rows, grid_cols, grid_cells, field_rows, field_cols, mine_count, mines, revealed,
			safe_hits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	r := newSessionRow(s)
	_, err := t.tx.Exec(ctx, query,
		s.ID, s.WagerID, s.ChatID, s.Kind, s.ParticipantA, s.ParticipantB, s.VsHouse,
		s.Stake, s.RequiredWins, s.TurnHolder, s.RoundIndex, s.Round.A, s.Round.B,
		s.ScoreA, s.ScoreB, s.Status,
		r.gridRows, r.gridCols, r.gridCells, r.fieldRows, r.fieldCols, r.mineCount, r.mines, r.revealed,
		safeHitsOf(s), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session and locks its row.
// Returns ErrSessionNotFound if the session does not exist.
func (t *pgTx) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`

	s, err := scanSession(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// SaveSession writes the mutable session state.
func (t *pgTx) SaveSession(ctx context.Context, s *model.Session) error {
	const query = `
		UPDATE sessions
		SET turn_holder = $2, round_index = $3, round_a = $4, round_b = $5, score_a = $6,
			score_b = $7, status = $8, grid_cells = $9, revealed = $10, safe_hits = $11,
			updated_at = $12
		WHERE id = $1
	`

	r := newSessionRow(s)
	tag, err := t.tx.Exec(ctx, query,
		s.ID, s.TurnHolder, s.RoundIndex, s.Round.A, s.Round.B, s.ScoreA,
		s.ScoreB, s.Status, r.gridCells, r.revealed, safeHitsOf(s), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session from live state.
func (t *pgTx) DeleteSession(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListSessions returns every live session, least recently updated first.
func (t *pgTx) ListSessions(ctx context.Context) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at`

	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}
