package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	balance := decimal.RequireFromString("25.55")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "10", "10", false},
		{"dollar prefix", "$3.5", "3.5", false},
		{"rounded", "1.239", "1.24", false},
		{"all", "all", "25.55", false},
		{"all uppercase", " ALL ", "25.55", false},
		{"half rounds down", "half", "12.77", false},
		{"negative parses", "-4", "-4", false},
		{"garbage", "ten", "", true},
		{"empty", "   ", "", true},
		{"dollar only", "$", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input, balance, 2)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestFloor(t *testing.T) {
	assert.True(t, Floor(decimal.NewFromInt(-3)).IsZero())
	assert.True(t, Floor(decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)))
}

// TestHalfNeverExceedsBalanceProperty checks that the half shortcut is always
// affordable.
// **Validates: amount shortcuts**
func TestHalfNeverExceedsBalanceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 10_000_000).Draw(t, "cents")
		balance := decimal.New(cents, -2)

		half, err := Parse("half", balance, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if half.Add(half).GreaterThan(balance) {
			t.Fatalf("half %s doubled exceeds balance %s", half, balance)
		}
	})
}
