package mines

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidLadder is returned for a table that is empty, ragged, non-positive
// or decreasing along either axis.
var ErrInvalidLadder = errors.New("invalid payout ladder")

// defaultLadder rows are safe hits 1..20, columns are mine counts 1..5.
var defaultLadder = [][]string{
	{"0.9388", "0.9588", "0.9888", "1.1071", "1.1625"},
	{"1.0109", "1.0568", "1.1071", "1.1625", "1.2237"},
	{"1.0568", "1.1071", "1.1625", "1.2237", "1.2917"},
	{"1.1071", "1.1625", "1.2237", "1.2917", "1.3676"},
	{"1.1625", "1.2237", "1.2917", "1.3676", "1.4531"},
	{"1.2237", "1.2917", "1.3676", "1.4531", "1.5500"},
	{"1.2917", "1.3676", "1.4531", "1.5500", "1.6607"},
	{"1.3676", "1.4531", "1.5500", "1.6607", "1.7885"},
	{"1.4531", "1.5500", "1.6607", "1.7885", "1.9375"},
	{"1.5500", "1.6607", "1.7885", "1.9375", "2.1136"},
	{"1.6607", "1.7885", "1.9375", "2.1136", "2.3250"},
	{"1.7885", "1.9375", "2.1136", "2.3250", "2.5833"},
	{"1.9375", "2.1136", "2.3250", "2.5833", "2.9062"},
	{"2.1136", "2.3250", "2.5833", "2.9062", "3.3214"},
	{"2.3250", "2.5833", "2.9062", "3.3214", "3.8750"},
	{"2.5833", "2.9062", "3.3214", "3.8750", "4.6500"},
	{"2.9062", "3.3214", "3.8750", "4.6500", "5.8125"},
	{"3.3214", "3.8750", "4.6500", "5.8125", "7.7500"},
	{"3.8750", "4.6500", "5.8125", "7.7500", "11.6250"},
	{"4.6500", "5.8125", "7.7500", "11.6250", "23.2500"},
}

// Ladder maps (safe hits, mine count) to a payout multiplier.
type Ladder struct {
	table [][]decimal.Decimal
}

// NewLadder validates table and wraps it. Row i holds safe hits i+1, column j
// holds mine count j+1.
func NewLadder(table [][]decimal.Decimal) (*Ladder, error) {
	if len(table) == 0 || len(table[0]) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidLadder)
	}
	width := len(table[0])
	copied := make([][]decimal.Decimal, len(table))
	for i, row := range table {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidLadder, i+1, len(row), width)
		}
		for j, m := range row {
			if !m.IsPositive() {
				return nil, fmt.Errorf("%w: multiplier at (%d,%d) is not positive", ErrInvalidLadder, i+1, j+1)
			}
			if j > 0 && m.LessThan(row[j-1]) {
				return nil, fmt.Errorf("%w: decreasing in mine count at (%d,%d)", ErrInvalidLadder, i+1, j+1)
			}
			if i > 0 && m.LessThan(table[i-1][j]) {
				return nil, fmt.Errorf("%w: decreasing in safe hits at (%d,%d)", ErrInvalidLadder, i+1, j+1)
			}
		}
		copied[i] = append([]decimal.Decimal(nil), row...)
	}
	return &Ladder{table: copied}, nil
}

// DefaultLadder returns the built-in 20x5 table.
func DefaultLadder() *Ladder {
	table := make([][]decimal.Decimal, len(defaultLadder))
	for i, row := range defaultLadder {
		table[i] = make([]decimal.Decimal, len(row))
		for j, v := range row {
			table[i][j] = decimal.RequireFromString(v)
		}
	}
	l, err := NewLadder(table)
	if err != nil {
		panic(err)
	}
	return l
}

// MaxSafeHits returns the highest tracked safe-hit count.
func (l *Ladder) MaxSafeHits() int { return len(l.table) }

// MaxMines returns the highest tracked mine count.
func (l *Ladder) MaxMines() int { return len(l.table[0]) }

// Multiplier looks up the multiplier, clamping both axes into the table.
func (l *Ladder) Multiplier(safeHits, mineCount int) decimal.Decimal {
	row := clamp(safeHits, 1, l.MaxSafeHits()) - 1
	col := clamp(mineCount, 1, l.MaxMines()) - 1
	return l.table[row][col]
}

// Payout returns stake x multiplier rounded to places.
func (l *Ladder) Payout(stake decimal.Decimal, safeHits, mineCount int, places int32) decimal.Decimal {
	return stake.Mul(l.Multiplier(safeHits, mineCount)).Round(places)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
