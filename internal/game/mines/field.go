package mines

import (
	"errors"
	"fmt"
	"slices"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
)

// Field errors.
var (
	ErrInvalidCell  = errors.New("cell out of range")
	ErrCellRevealed = errors.New("cell already revealed")
	ErrTooManyMines = errors.New("mine count does not fit the field")
)

// Sample picks count distinct indices from [0, cells) uniformly without
// replacement using a partial Fisher-Yates shuffle. The result is sorted.
func Sample(cells, count int, rng game.RandSource) ([]int, error) {
	if count < 0 || count > cells {
		return nil, fmt.Errorf("%w: %d mines in %d cells", ErrTooManyMines, count, cells)
	}
	idx := make([]int, cells)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < count; i++ {
		j := i + rng.IntN(cells-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	picked := append([]int(nil), idx[:count]...)
	slices.Sort(picked)
	return picked, nil
}

// NewField lays out a rows x cols field with mineCount mines.
func NewField(rows, cols, mineCount int, rng game.RandSource) (*model.MineField, error) {
	if mineCount < 1 || mineCount >= rows*cols {
		return nil, fmt.Errorf("%w: %d mines in %dx%d", ErrTooManyMines, mineCount, rows, cols)
	}
	mines, err := Sample(rows*cols, mineCount, rng)
	if err != nil {
		return nil, err
	}
	return &model.MineField{
		Rows:      rows,
		Cols:      cols,
		MineCount: mineCount,
		Mines:     mines,
		Revealed:  []int{},
	}, nil
}

// IsMine reports whether cell holds a mine.
func IsMine(f *model.MineField, cell int) bool {
	_, found := slices.BinarySearch(f.Mines, cell)
	return found
}

// SafeCells returns the number of cells without a mine.
func SafeCells(f *model.MineField) int {
	return f.Rows*f.Cols - f.MineCount
}

// Reveal uncovers cell. It reports whether the cell was mined; a safe reveal
// increments SafeHits.
func Reveal(f *model.MineField, cell int) (bool, error) {
	if cell < 0 || cell >= f.Rows*f.Cols {
		return false, fmt.Errorf("%w: %d", ErrInvalidCell, cell)
	}
	if slices.Contains(f.Revealed, cell) {
		return false, ErrCellRevealed
	}
	f.Revealed = append(f.Revealed, cell)
	if IsMine(f, cell) {
		return true, nil
	}
	f.SafeHits++
	return false, nil
}

// Render draws the field. Unrevealed cells are hidden unless showMines is set.
func Render(f *model.MineField, showMines bool) string {
	out := make([]byte, 0, f.Rows*(f.Cols*4+1))
	for cell := 0; cell < f.Rows*f.Cols; cell++ {
		revealed := slices.Contains(f.Revealed, cell)
		var symbol string
		switch {
		case IsMine(f, cell) && (revealed || showMines):
			symbol = "💣"
		case revealed:
			symbol = "💎"
		default:
			symbol = "⬜"
		}
		out = append(out, symbol...)
		if (cell+1)%f.Cols == 0 {
			out = append(out, '\n')
		}
	}
	return string(out)
}
