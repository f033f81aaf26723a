package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// SweeperConfig holds the expiry windows.
type SweeperConfig struct {
	PendingTTL time.Duration
	SessionTTL time.Duration
	Interval   time.Duration
}

// Sweeper periodically cancels pending wagers nobody accepted and expires
// sessions that went idle.
type Sweeper struct {
	registry *BetRegistry
	machine  *SessionMachine
	cfg      SweeperConfig
	now      func() time.Time
}

// NewSweeper creates a new Sweeper instance.
func NewSweeper(registry *BetRegistry, machine *SessionMachine, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		registry: registry,
		machine:  machine,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		log.Warn().Msg("Sweeper disabled, interval is not positive")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			wagers, sessions := s.Sweep(ctx)
			if wagers > 0 || sessions > 0 {
				log.Info().
					Int("expired_wagers", wagers).
					Int("expired_sessions", sessions).
					Msg("Sweep finished")
			}
		}
	}
}

// Sweep runs one pass and returns how many wagers and sessions expired.
// Failures are logged and the pass continues.
func (s *Sweeper) Sweep(ctx context.Context) (wagers, sessions int) {
	now := s.now()

	if s.cfg.PendingTTL > 0 {
		expired, err := s.registry.ExpireWagers(ctx, now.Add(-s.cfg.PendingTTL))
		if err != nil {
			log.Error().Err(err).Msg("Failed to expire wagers")
		}
		wagers = len(expired)
	}

	if s.cfg.SessionTTL > 0 {
		cutoff := now.Add(-s.cfg.SessionTTL)
		stale, err := s.machine.StaleSessions(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list stale sessions")
			return wagers, 0
		}
		for _, sess := range stale {
			if ctx.Err() != nil {
				return wagers, sessions
			}
			if _, err := s.machine.Expire(ctx, sess.ID, cutoff); err != nil {
				// Played, settled or abandoned since it was listed.
				if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionActive) {
					continue
				}
				log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to expire idle session")
				continue
			}
			sessions++
		}
	}
	return wagers, sessions
}
