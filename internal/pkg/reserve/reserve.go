// Package reserve implements the reserve-or-fail step that keeps every account
// in at most one pending wager or live session at a time.
//
// A reservation maps an account id to an opaque holder id. A wager reserves
// its placer under the wager id; acceptance rebinds the placer to the session
// id and reserves the acceptor under it. Check and claim happen as one atomic
// step in every implementation.
package reserve

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrReserved is returned when the account is already held by another holder.
	ErrReserved = errors.New("account already has an active wager or session")
	// ErrNotHolder is returned when the caller does not hold the reservation it tries to move or drop.
	ErrNotHolder = errors.New("reservation is not held by this holder")
)

// Reserver claims accounts for a holder.
type Reserver interface {
	// Reserve claims accountID for holder. Reserving an account the same holder
	// already owns succeeds.
	Reserve(ctx context.Context, accountID int64, holder string) error
	// Rebind moves a reservation from one holder to another.
	Rebind(ctx context.Context, accountID int64, from, to string) error
	// Release drops the reservation if holder owns it.
	Release(ctx context.Context, accountID int64, holder string) error
	// Holder reports who holds accountID, if anyone.
	Holder(ctx context.Context, accountID int64) (string, bool, error)
	// Clear drops every reservation. It is used before restoring reservations
	// from the durable store at startup.
	Clear(ctx context.Context) error
}

// ReserveAll reserves every account for holder. If one fails, the ones already
// claimed by this call are released and the error is returned.
func ReserveAll(ctx context.Context, r Reserver, holder string, accountIDs ...int64) error {
	claimed := make([]int64, 0, len(accountIDs))
	for _, id := range accountIDs {
		if err := r.Reserve(ctx, id, holder); err != nil {
			for _, c := range claimed {
				_ = r.Release(ctx, c, holder)
			}
			return err
		}
		claimed = append(claimed, id)
	}
	return nil
}

// ReleaseAll releases every account held by holder and returns the first error.
func ReleaseAll(ctx context.Context, r Reserver, holder string, accountIDs ...int64) error {
	var first error
	for _, id := range accountIDs {
		if err := r.Release(ctx, id, holder); err != nil && !errors.Is(err, ErrNotHolder) && first == nil {
			first = fmt.Errorf("failed to release account %d: %w", id, err)
		}
	}
	return first
}
