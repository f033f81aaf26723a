package dice

import (
	"errors"
	"fmt"

	"telegram-wager-bot/internal/game"
)

// ErrInvalidDistribution is returned for an unusable house distribution.
var ErrInvalidDistribution = errors.New("invalid house roll distribution")

// HouseRoller draws the house actor's roll from a weighted distribution.
type HouseRoller struct {
	values  []int
	weights []int
	total   int
	rng     game.RandSource
}

// NewHouseRoller creates a roller that returns values[i] with probability
// weights[i] / sum(weights).
func NewHouseRoller(values, weights []int, rng game.RandSource) (*HouseRoller, error) {
	if len(values) == 0 || len(values) != len(weights) {
		return nil, fmt.Errorf("%w: %d values, %d weights", ErrInvalidDistribution, len(values), len(weights))
	}
	total := 0
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight for %d", ErrInvalidDistribution, values[i])
		}
		if values[i] < 1 {
			return nil, fmt.Errorf("%w: value %d below 1", ErrInvalidDistribution, values[i])
		}
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidDistribution)
	}
	if rng == nil {
		rng = game.SystemRand()
	}
	return &HouseRoller{
		values:  append([]int(nil), values...),
		weights: append([]int(nil), weights...),
		total:   total,
		rng:     rng,
	}, nil
}

// Roll draws a value for g, capped at the game's highest roll.
func (h *HouseRoller) Roll(g *TurnGame) int {
	n := h.rng.IntN(h.total)
	v := h.values[len(h.values)-1]
	for i, w := range h.weights {
		if n < w {
			v = h.values[i]
			break
		}
		n -= w
	}
	return min(v, g.MaxRoll())
}
