package store

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically removes expired sessions from a Store.
type Sweeper struct {
	store       Store
	interval    time.Duration
	idleTimeout time.Duration
	onSweep     func(removed int)
}

// NewSweeper configures a sweeper; onSweep may be nil.
func NewSweeper(store Store, interval, idleTimeout time.Duration, onSweep func(removed int)) *Sweeper {
	return &Sweeper{
		store:       store,
		interval:    interval,
		idleTimeout: idleTimeout,
		onSweep:     onSweep,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Intended to
// be launched as a goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.SweepExpired(ctx, s.idleTimeout)
			if err != nil {
				log.Printf("[sweeper] sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[sweeper] removed %d expired sessions", removed)
			}
			if s.onSweep != nil {
				s.onSweep(removed)
			}
		}
	}
}
