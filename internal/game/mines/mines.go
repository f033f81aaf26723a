// Package mines implements the progressive-reveal mine field game and its
// risk-ladder payout table.
package mines

import (
	"fmt"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
)

// Config holds mine field configuration.
type Config struct {
	Rows          int
	Cols          int
	MinMines      int
	MaxMines      int
	DefaultMines  int
	HouseMinStake decimal.Decimal
	HouseMaxStake decimal.Decimal
	Ladder        *Ladder
}

// Game is the mine field catalogue entry. It is played against the house only.
type Game struct {
	cfg Config
}

// New creates the mine game, filling unset fields with the observed defaults.
func New(cfg *Config) *Game {
	c := Config{
		Rows:          5,
		Cols:          5,
		MinMines:      1,
		MaxMines:      5,
		DefaultMines:  3,
		HouseMinStake: decimal.NewFromInt(1),
		HouseMaxStake: decimal.NewFromInt(100),
	}
	if cfg != nil {
		if cfg.Rows > 0 && cfg.Cols > 0 {
			c.Rows, c.Cols = cfg.Rows, cfg.Cols
		}
		if cfg.MinMines > 0 {
			c.MinMines = cfg.MinMines
		}
		if cfg.MaxMines > 0 {
			c.MaxMines = cfg.MaxMines
		}
		if cfg.DefaultMines > 0 {
			c.DefaultMines = cfg.DefaultMines
		}
		if cfg.HouseMinStake.IsPositive() {
			c.HouseMinStake = cfg.HouseMinStake
		}
		if cfg.HouseMaxStake.IsPositive() {
			c.HouseMaxStake = cfg.HouseMaxStake
		}
		c.Ladder = cfg.Ladder
	}
	if c.Ladder == nil {
		c.Ladder = DefaultLadder()
	}
	return &Game{cfg: c}
}

// Kind returns model.KindMines.
func (g *Game) Kind() model.GameKind { return model.KindMines }

// Variant returns game.ProgressiveReveal.
func (g *Game) Variant() game.Variant { return game.ProgressiveReveal }

// Name returns the display name.
func (g *Game) Name() string { return "Mines" }

// Command returns the command that places a wager.
func (g *Game) Command() string { return "mines" }

// Description returns a brief description of the game.
func (g *Game) Description() string {
	return "Uncover safe cells to climb the multiplier ladder, cash out before you hit a mine."
}

// ValidateMode checks the mine count.
func (g *Game) ValidateMode(mode int) error {
	if mode < g.cfg.MinMines || mode > g.cfg.MaxMines {
		return fmt.Errorf("%w: %d mines, allowed %d..%d", game.ErrInvalidMode, mode, g.cfg.MinMines, g.cfg.MaxMines)
	}
	return nil
}

// DefaultMode returns the default mine count.
func (g *Game) DefaultMode() int { return g.cfg.DefaultMines }

// SupportsPvP returns false.
func (g *Game) SupportsPvP() bool { return false }

// SupportsHouse returns true.
func (g *Game) SupportsHouse() bool { return true }

// HouseBand returns the stake band.
func (g *Game) HouseBand() (decimal.Decimal, decimal.Decimal) {
	return g.cfg.HouseMinStake, g.cfg.HouseMaxStake
}

// Ladder returns the payout table.
func (g *Game) Ladder() *Ladder { return g.cfg.Ladder }

// NewField lays out a field for this game.
func (g *Game) NewField(mineCount int, rng game.RandSource) (*model.MineField, error) {
	return NewField(g.cfg.Rows, g.cfg.Cols, mineCount, rng)
}

// AutoCashOutAt returns the safe-hit count that ends the session with a forced
// cash-out: the top of the ladder or the last safe cell, whichever comes first.
func (g *Game) AutoCashOutAt(f *model.MineField) int {
	return min(g.cfg.Ladder.MaxSafeHits(), SafeCells(f))
}
