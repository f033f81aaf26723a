package dice

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
)

func TestResolveRound(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int
		expected Side
	}{
		{"a higher", 5, 3, SideA},
		{"b higher", 2, 6, SideB},
		{"tie", 4, 4, Tie},
		{"minimum tie", 1, 1, Tie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveRound(tt.a, tt.b))
		})
	}
}

func TestScoreWinner(t *testing.T) {
	s := Score{}
	s = s.Apply(SideA).Apply(Tie).Apply(SideB)
	_, done := s.Winner(2)
	assert.False(t, done)

	s = s.Apply(SideA)
	side, done := s.Winner(2)
	assert.True(t, done)
	assert.Equal(t, SideA, side)
}

func TestTurnGame_ValidateRoll(t *testing.T) {
	diceGame, err := New(model.KindDice, nil)
	require.NoError(t, err)
	soccer, err := New(model.KindSoccer, nil)
	require.NoError(t, err)

	assert.NoError(t, diceGame.ValidateRoll(1))
	assert.NoError(t, diceGame.ValidateRoll(6))
	assert.ErrorIs(t, diceGame.ValidateRoll(0), ErrInvalidRoll)
	assert.ErrorIs(t, diceGame.ValidateRoll(7), ErrInvalidRoll)
	assert.NoError(t, soccer.ValidateRoll(5))
	assert.ErrorIs(t, soccer.ValidateRoll(6), ErrInvalidRoll)
}

func TestTurnGame_ValidateMode(t *testing.T) {
	g, err := New(model.KindBowling, nil)
	require.NoError(t, err)

	for _, mode := range []int{1, 2, 3} {
		assert.NoError(t, g.ValidateMode(mode))
	}
	assert.ErrorIs(t, g.ValidateMode(0), game.ErrInvalidMode)
	assert.ErrorIs(t, g.ValidateMode(4), game.ErrInvalidMode)
	assert.Zero(t, g.DefaultMode())
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(model.KindMines, nil)
	assert.ErrorIs(t, err, game.ErrUnknownGame)
}

func TestHouseBandFromConfig(t *testing.T) {
	g, err := New(model.KindDarts, &Config{
		HouseMinStake: decimal.NewFromInt(5),
		HouseMaxStake: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	assert.NoError(t, game.CheckHouseBand(g, decimal.NewFromInt(5)))
	assert.NoError(t, game.CheckHouseBand(g, decimal.NewFromInt(50)))
	assert.ErrorIs(t, game.CheckHouseBand(g, decimal.NewFromInt(51)), game.ErrStakeOutOfRange)
	assert.ErrorIs(t, game.CheckHouseBand(g, decimal.RequireFromString("4.99")), game.ErrStakeOutOfRange)
}

func TestAllCoversTurnKinds(t *testing.T) {
	kinds := make([]model.GameKind, 0)
	for _, g := range All(nil) {
		kinds = append(kinds, g.Kind())
		assert.Equal(t, game.TurnSequenced, g.Variant())
	}
	assert.ElementsMatch(t, []model.GameKind{
		model.KindDice, model.KindBowling, model.KindDarts, model.KindBasketball, model.KindSoccer,
	}, kinds)
}

func TestNewHouseRollerRejectsBadDistribution(t *testing.T) {
	_, err := NewHouseRoller(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
	_, err = NewHouseRoller([]int{3, 4}, []int{1}, nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
	_, err = NewHouseRoller([]int{3}, []int{0}, nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
	_, err = NewHouseRoller([]int{0}, []int{1}, nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
}

func TestHouseRollerFollowsWeights(t *testing.T) {
	roller, err := NewHouseRoller([]int{3, 4, 5, 6}, []int{1, 2, 2, 1}, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	g, err := New(model.KindDice, nil)
	require.NoError(t, err)

	counts := map[int]int{}
	const draws = 60000
	for i := 0; i < draws; i++ {
		counts[roller.Roll(g)]++
	}

	assert.Len(t, counts, 4)
	assert.InDelta(t, draws/6, counts[3], draws*0.02)
	assert.InDelta(t, draws/3, counts[4], draws*0.02)
	assert.InDelta(t, draws/3, counts[5], draws*0.02)
	assert.InDelta(t, draws/6, counts[6], draws*0.02)
}

// TestHouseRollWithinRangeProperty checks that every house roll is one of the
// configured values and valid for the game it is drawn for.
// **Validates: house-opponent weighting**
func TestHouseRollWithinRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		values := rapid.SliceOfNDistinct(rapid.IntRange(1, 6), n, n, rapid.ID[int]).Draw(t, "values")
		weights := rapid.SliceOfN(rapid.IntRange(1, 10), n, n).Draw(t, "weights")
		seed := rapid.Uint64().Draw(t, "seed")
		kind := rapid.SampledFrom([]model.GameKind{model.KindDice, model.KindSoccer}).Draw(t, "kind")

		roller, err := NewHouseRoller(values, weights, rand.New(rand.NewPCG(seed, seed)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		g, _ := New(kind, nil)

		for i := 0; i < 20; i++ {
			v := roller.Roll(g)
			if err := g.ValidateRoll(v); err != nil {
				t.Fatalf("house roll %d invalid: %v", v, err)
			}
			if !slices.Contains(values, v) && v != g.MaxRoll() {
				t.Fatalf("house roll %d not drawn from %v", v, values)
			}
		}
	})
}

// TestResolveRoundAntisymmetryProperty checks that swapping the values swaps the winner.
// **Validates: strictly higher wins, ties award nothing**
func TestResolveRoundAntisymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(1, 6).Draw(t, "a")
		b := rapid.IntRange(1, 6).Draw(t, "b")

		forward := ResolveRound(a, b)
		backward := ResolveRound(b, a)

		switch forward {
		case SideA:
			if backward != SideB {
				t.Fatalf("expected SideB for swapped (%d,%d)", b, a)
			}
		case SideB:
			if backward != SideA {
				t.Fatalf("expected SideA for swapped (%d,%d)", b, a)
			}
		case Tie:
			if a != b || backward != Tie {
				t.Fatalf("tie only for equal values, got (%d,%d)", a, b)
			}
		}
	})
}
