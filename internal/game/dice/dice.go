// Package dice implements the turn-sequenced games: both participants send an
// animated dice-style emoji each round and the higher value takes the round.
package dice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
)

const (
	// MinRequiredWins and MaxRequiredWins bound the "first to N points" modes.
	MinRequiredWins = 1
	MaxRequiredWins = 3
)

// ErrInvalidRoll is returned for a value outside the game's roll range.
var ErrInvalidRoll = errors.New("roll value out of range")

// Config holds configuration shared by the turn-sequenced games.
type Config struct {
	HouseMinStake decimal.Decimal
	HouseMaxStake decimal.Decimal
}

// TurnGame is one of the dice-style games.
type TurnGame struct {
	kind        model.GameKind
	name        string
	emoji       string
	description string
	maxRoll     int
	houseMin    decimal.Decimal
	houseMax    decimal.Decimal
}

type spec struct {
	kind        model.GameKind
	name        string
	emoji       string
	description string
	maxRoll     int
}

var catalogue = []spec{
	{model.KindDice, "Dice", "🎲", "Highest dice wins the round.", 6},
	{model.KindBowling, "Bowling", "🎳", "Knock down more pins to win the round.", 6},
	{model.KindDarts, "Darts", "🎯", "Land closer to the bullseye to win the round.", 6},
	{model.KindBasketball, "Basketball", "🏀", "The better shot wins the round.", 5},
	{model.KindSoccer, "Soccer", "⚽", "The better kick wins the round.", 5},
}

// New creates the turn game for kind.
func New(kind model.GameKind, cfg *Config) (*TurnGame, error) {
	for _, s := range catalogue {
		if s.kind == kind {
			return newTurnGame(s, cfg), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", game.ErrUnknownGame, kind)
}

// All creates every turn-sequenced game.
func All(cfg *Config) []*TurnGame {
	games := make([]*TurnGame, 0, len(catalogue))
	for _, s := range catalogue {
		games = append(games, newTurnGame(s, cfg))
	}
	return games
}

func newTurnGame(s spec, cfg *Config) *TurnGame {
	g := &TurnGame{
		kind:        s.kind,
		name:        s.name,
		emoji:       s.emoji,
		description: s.description,
		maxRoll:     s.maxRoll,
		houseMin:    decimal.NewFromInt(1),
		houseMax:    decimal.NewFromInt(100),
	}
	if cfg != nil {
		if cfg.HouseMinStake.IsPositive() {
			g.houseMin = cfg.HouseMinStake
		}
		if cfg.HouseMaxStake.IsPositive() {
			g.houseMax = cfg.HouseMaxStake
		}
	}
	return g
}

// Kind returns the game kind.
func (g *TurnGame) Kind() model.GameKind { return g.kind }

// Variant returns game.TurnSequenced.
func (g *TurnGame) Variant() game.Variant { return game.TurnSequenced }

// Name returns the display name.
func (g *TurnGame) Name() string { return g.name }

// Command returns the command that places a wager.
func (g *TurnGame) Command() string { return string(g.kind) }

// Description returns a brief description of the game.
func (g *TurnGame) Description() string { return g.description }

// Emoji returns the chat dice emoji whose value is the roll.
func (g *TurnGame) Emoji() string { return g.emoji }

// MaxRoll returns the highest value the platform can roll for this game.
func (g *TurnGame) MaxRoll() int { return g.maxRoll }

// ValidateMode checks required_wins.
func (g *TurnGame) ValidateMode(mode int) error {
	if mode < MinRequiredWins || mode > MaxRequiredWins {
		return fmt.Errorf("%w: first to %d points", game.ErrInvalidMode, mode)
	}
	return nil
}

// DefaultMode is zero: the placer must pick how many points win the match.
func (g *TurnGame) DefaultMode() int { return 0 }

// SupportsPvP returns true.
func (g *TurnGame) SupportsPvP() bool { return true }

// SupportsHouse returns true.
func (g *TurnGame) SupportsHouse() bool { return true }

// HouseBand returns the stake band for play against the house.
func (g *TurnGame) HouseBand() (decimal.Decimal, decimal.Decimal) {
	return g.houseMin, g.houseMax
}

// ValidateRoll checks an externally supplied roll value.
func (g *TurnGame) ValidateRoll(value int) error {
	if value < 1 || value > g.maxRoll {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidRoll, value, g.maxRoll)
	}
	return nil
}
