// Package service implements the wager lifecycle: the ledger, the bet
// registry, the session state machine and settlement.
package service

import (
	"errors"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/pkg/lock"
	"telegram-wager-bot/internal/pkg/money"
	"telegram-wager-bot/internal/pkg/reserve"
	"telegram-wager-bot/internal/repository"
)

// Validation errors.
var (
	ErrInvalidAmount = money.ErrInvalidAmount
	ErrSelfTransfer  = errors.New("cannot transfer to self")
	ErrSelfAccept    = errors.New("cannot accept your own wager")
	ErrUnsupported   = errors.New("game cannot be played this way")
)

// State conflict errors.
var (
	ErrWagerNotFound    = repository.ErrWagerNotFound
	ErrSessionNotFound  = repository.ErrSessionNotFound
	ErrCoinFlipNotFound = repository.ErrCoinFlipNotFound
	ErrAlreadyActive    = reserve.ErrReserved
	ErrNotOwner         = errors.New("only the player who placed the wager can do that")
	ErrNotParticipant   = errors.New("you are not playing in this game")
	ErrNotYourTurn      = errors.New("it is not your turn")
	ErrAlreadyActed     = errors.New("you already played this round")
	ErrModeNotSelected  = errors.New("choose a mode before accepting")
	ErrWrongGame        = errors.New("action does not apply to this game")
	ErrNothingToCashOut = errors.New("reveal at least one safe cell before cashing out")
	ErrBusy             = lock.ErrLockTimeout
	ErrSessionActive    = errors.New("session was played since it went idle")
)

// Resource errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var userFacing = []error{
	ErrInvalidAmount,
	ErrSelfTransfer,
	ErrSelfAccept,
	ErrUnsupported,
	ErrWagerNotFound,
	ErrSessionNotFound,
	ErrCoinFlipNotFound,
	ErrAlreadyActive,
	ErrNotOwner,
	ErrNotParticipant,
	ErrNotYourTurn,
	ErrAlreadyActed,
	ErrModeNotSelected,
	ErrWrongGame,
	ErrNothingToCashOut,
	ErrBusy,
	ErrInsufficientFunds,
	game.ErrUnknownGame,
	game.ErrInvalidMode,
	game.ErrModeNotApplicable,
	game.ErrStakeOutOfRange,
	dice.ErrInvalidRoll,
	connect4.ErrInvalidColumn,
	connect4.ErrColumnFull,
	mines.ErrInvalidCell,
	mines.ErrCellRevealed,
	coinflip.ErrInvalidSide,
}

// IsUserFacing reports whether err is a validation, state conflict or
// resource error that should be shown to the acting user rather than logged
// as a fault.
func IsUserFacing(err error) bool {
	for _, target := range userFacing {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
