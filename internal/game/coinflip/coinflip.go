// Package coinflip implements the commit-reveal coin flip against the house.
//
// Before the player picks a side the house publishes sha256(server_seed).
// The flip is derived as HMAC-SHA256(key=server_seed, msg=client_seed:nonce)
// and its parity maps even to heads and odd to tails. After the flip the
// server seed is revealed so anyone can recompute both values.
package coinflip

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/model"
)

// Verification and input errors.
var (
	ErrInvalidSide     = errors.New("side must be heads or tails")
	ErrHashMismatch    = errors.New("server seed does not match the published hash")
	ErrOutcomeMismatch = errors.New("recorded outcome does not match the derived outcome")
	ErrSeedNotRevealed = errors.New("server seed not revealed")
)

// Config holds coin flip configuration.
type Config struct {
	MinStake decimal.Decimal
	MaxStake decimal.Decimal
	Nonce    int64
	// AlwaysHouse records the side opposite the player's choice regardless
	// of the derived flip.
	AlwaysHouse bool
}

// Game is the coin flip catalogue entry.
type Game struct {
	cfg Config
}

// New creates the coin flip game.
func New(cfg *Config) *Game {
	c := Config{
		MinStake:    decimal.NewFromInt(1),
		MaxStake:    decimal.NewFromInt(100),
		Nonce:       1,
		AlwaysHouse: true,
	}
	if cfg != nil {
		if cfg.MinStake.IsPositive() {
			c.MinStake = cfg.MinStake
		}
		if cfg.MaxStake.IsPositive() {
			c.MaxStake = cfg.MaxStake
		}
		if cfg.Nonce > 0 {
			c.Nonce = cfg.Nonce
		}
		c.AlwaysHouse = cfg.AlwaysHouse
	}
	return &Game{cfg: c}
}

// Kind returns model.KindCoinFlip.
func (g *Game) Kind() model.GameKind { return model.KindCoinFlip }

// Variant returns game.CommitReveal.
func (g *Game) Variant() game.Variant { return game.CommitReveal }

// Name returns the display name.
func (g *Game) Name() string { return "Coin Flip" }

// Command returns the command that places a wager.
func (g *Game) Command() string { return "coinflip" }

// Description returns a brief description of the game.
func (g *Game) Description() string {
	return "Pick heads or tails against the dealer. The game hash is published before you choose."
}

// ValidateMode rejects every mode, the game has none.
func (g *Game) ValidateMode(int) error { return game.ErrModeNotApplicable }

// DefaultMode is a single flip.
func (g *Game) DefaultMode() int { return 1 }

// SupportsPvP returns false.
func (g *Game) SupportsPvP() bool { return false }

// SupportsHouse returns true.
func (g *Game) SupportsHouse() bool { return true }

// HouseBand returns the stake band.
func (g *Game) HouseBand() (decimal.Decimal, decimal.Decimal) {
	return g.cfg.MinStake, g.cfg.MaxStake
}

// Commit generates a fresh commitment using the configured nonce.
func (g *Game) Commit() model.FairCommit {
	return NewCommit(g.cfg.Nonce)
}

// Resolve derives the flip for commit and applies the outcome policy.
func (g *Game) Resolve(commit model.FairCommit, choice model.CoinSide) (derived, outcome model.CoinSide) {
	derived = Derive(commit.ServerSeed, commit.ClientSeed, commit.Nonce)
	if g.cfg.AlwaysHouse {
		return derived, choice.Opposite()
	}
	return derived, derived
}

// ParseSide parses a side name.
func ParseSide(s string) (model.CoinSide, error) {
	switch model.CoinSide(strings.ToLower(strings.TrimSpace(s))) {
	case model.Heads:
		return model.Heads, nil
	case model.Tails:
		return model.Tails, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// NewCommit generates a server seed and client seed as uuid hex strings and
// publishes the server seed hash.
func NewCommit(nonce int64) model.FairCommit {
	serverSeed := newSeed()
	return model.FairCommit{
		ServerSeed:     serverSeed,
		ServerSeedHash: HashSeed(serverSeed),
		ClientSeed:     newSeed(),
		Nonce:          nonce,
	}
}

func newSeed() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// HashSeed returns the hex sha256 of seed.
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Digest returns the hex HMAC-SHA256 of client_seed:nonce keyed by server_seed.
func Digest(serverSeed, clientSeed string, nonce int64) string {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(clientSeed + ":" + strconv.FormatInt(nonce, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Derive maps the parity of the HMAC digest, read as a big-endian integer,
// to a side: even is heads, odd is tails.
func Derive(serverSeed, clientSeed string, nonce int64) model.CoinSide {
	sum, _ := hex.DecodeString(Digest(serverSeed, clientSeed, nonce))
	if sum[len(sum)-1]%2 == 0 {
		return model.Heads
	}
	return model.Tails
}

// Verify recomputes the hash and the flip from a revealed commitment and
// checks them against the published hash and the derived outcome on record.
func Verify(revealed model.FairCommit, derived model.CoinSide) error {
	if revealed.ServerSeed == "" {
		return ErrSeedNotRevealed
	}
	if !hmac.Equal([]byte(HashSeed(revealed.ServerSeed)), []byte(revealed.ServerSeedHash)) {
		return ErrHashMismatch
	}
	if Derive(revealed.ServerSeed, revealed.ClientSeed, revealed.Nonce) != derived {
		return ErrOutcomeMismatch
	}
	return nil
}
