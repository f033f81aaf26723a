// Package game defines the polymorphic game abstraction shared by every wager kind.
package game

import (
	"errors"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/model"
)

// Variant groups games by how their outcome is produced.
type Variant int

// Game variants.
const (
	// TurnSequenced games exchange one externally rolled value per participant per round.
	TurnSequenced Variant = iota + 1
	// Grid games drop pieces into a column grid until four connect or the board fills.
	Grid
	// ProgressiveReveal games uncover cells of a mine field and climb a payout ladder.
	ProgressiveReveal
	// CommitReveal games resolve a single provably fair coin outcome.
	CommitReveal
)

func (v Variant) String() string {
	switch v {
	case TurnSequenced:
		return "turn-sequenced"
	case Grid:
		return "grid"
	case ProgressiveReveal:
		return "progressive-reveal"
	case CommitReveal:
		return "commit-reveal"
	default:
		return "unknown"
	}
}

// Validation errors shared by all games.
var (
	ErrUnknownGame       = errors.New("unknown game")
	ErrInvalidMode       = errors.New("invalid game mode")
	ErrModeNotApplicable = errors.New("game has no selectable mode")
	ErrStakeOutOfRange   = errors.New("stake outside the allowed band")
)

// Game describes one wager kind. Implementations are stateless; session state
// lives in model.Session and is driven by the session machine.
type Game interface {
	Kind() model.GameKind
	Variant() Variant
	Name() string
	// Command is the chat command that places a wager on this game.
	Command() string
	Description() string

	// ValidateMode checks a mode value. For turn-sequenced games the mode is
	// required_wins, for mine fields it is the mine count.
	ValidateMode(mode int) error
	// DefaultMode is the mode used when none was chosen. Zero means a mode
	// must be selected before the wager can be accepted.
	DefaultMode() int

	SupportsPvP() bool
	SupportsHouse() bool
	// HouseBand returns the inclusive stake band for play against the house.
	HouseBand() (min, max decimal.Decimal)
}

// CheckHouseBand returns ErrStakeOutOfRange when stake is outside g's house band.
func CheckHouseBand(g Game, stake decimal.Decimal) error {
	lo, hi := g.HouseBand()
	if stake.LessThan(lo) || stake.GreaterThan(hi) {
		return ErrStakeOutOfRange
	}
	return nil
}

// RandSource draws uniform integers in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// SystemRand returns a RandSource backed by the math/rand/v2 global generator.
func SystemRand() RandSource {
	return globalRand{}
}
