// Package connect4 implements the drop-piece grid game.
package connect4

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
)

// Board dimensions and the run length that wins.
const (
	Rows    = 6
	Cols    = 7
	Connect = 4
)

// Cell markers.
const (
	Empty   int8 = 0
	MarkerA int8 = 1
	MarkerB int8 = 2
)

// Move errors.
var (
	ErrInvalidColumn = errors.New("column out of range")
	ErrColumnFull    = errors.New("column is full")
)

// Game is the connect-four catalogue entry. It is player versus player only.
type Game struct{}

// New creates the connect-four game.
func New() *Game { return &Game{} }

// Kind returns model.KindConnect4.
func (g *Game) Kind() model.GameKind { return model.KindConnect4 }

// Variant returns game.Grid.
func (g *Game) Variant() game.Variant { return game.Grid }

// Name returns the display name.
func (g *Game) Name() string { return "Connect 4" }

// Command returns the command that places a wager.
func (g *Game) Command() string { return "connect4" }

// Description returns a brief description of the game.
func (g *Game) Description() string {
	return "Drop pieces in turn, first to line up four wins. A full board refunds both stakes."
}

// ValidateMode rejects every mode, the game has none.
func (g *Game) ValidateMode(int) error { return game.ErrModeNotApplicable }

// DefaultMode is a single match.
func (g *Game) DefaultMode() int { return 1 }

// SupportsPvP returns true.
func (g *Game) SupportsPvP() bool { return true }

// SupportsHouse returns false.
func (g *Game) SupportsHouse() bool { return false }

// HouseBand returns an empty band.
func (g *Game) HouseBand() (decimal.Decimal, decimal.Decimal) {
	return decimal.Zero, decimal.Zero
}

// NewGrid returns an empty board.
func NewGrid() *model.Grid {
	return &model.Grid{Rows: Rows, Cols: Cols, Cells: make([]int8, Rows*Cols)}
}

// At returns the marker at row, col.
func At(g *model.Grid, row, col int) int8 {
	return g.Cells[row*g.Cols+col]
}

// Drop places marker in the lowest empty row of col and returns that row.
func Drop(g *model.Grid, col int, marker int8) (int, error) {
	if col < 0 || col >= g.Cols {
		return -1, fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	}
	for row := g.Rows - 1; row >= 0; row-- {
		if At(g, row, col) == Empty {
			g.Cells[row*g.Cols+col] = marker
			return row, nil
		}
	}
	return -1, ErrColumnFull
}

// Wins reports whether marker has Connect in a row horizontally,
// vertically or on either diagonal.
func Wins(g *model.Grid, marker int8) bool {
	directions := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {-1, 1}}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if At(g, row, col) != marker {
				continue
			}
			for _, d := range directions {
				if run(g, row, col, d[0], d[1], marker) {
					return true
				}
			}
		}
	}
	return false
}

func run(g *model.Grid, row, col, dr, dc int, marker int8) bool {
	for i := 1; i < Connect; i++ {
		r, c := row+dr*i, col+dc*i
		if r < 0 || r >= g.Rows || c < 0 || c >= g.Cols || At(g, r, c) != marker {
			return false
		}
	}
	return true
}

// Full reports whether no column accepts another piece.
func Full(g *model.Grid) bool {
	for col := 0; col < g.Cols; col++ {
		if At(g, 0, col) == Empty {
			return false
		}
	}
	return true
}

// Render draws the board with one emoji per cell, top row first.
func Render(g *model.Grid) string {
	symbols := map[int8]string{Empty: "⚪", MarkerA: "🔴", MarkerB: "🟡"}
	out := make([]byte, 0, g.Rows*(g.Cols*4+1))
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			out = append(out, symbols[At(g, row, col)]...)
		}
		out = append(out, '\n')
	}
	return string(out)
}
