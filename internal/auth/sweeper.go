package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"esquadra.org/internal/obs"
)

// DefaultSweepInterval keeps staleness small relative to the 2 hour idle
// window: an expired session outlives its deadline by at most about a minute.
const DefaultSweepInterval = time.Minute

// Sweeper periodically deletes idle sessions from every registered force.
// Expiry is enforced only here, not on read, so a session may be briefly
// stale between sweeps.
type Sweeper struct {
	forces        ForceResolver
	interval      time.Duration
	idleTTL       time.Duration
	persistentTTL time.Duration
	now           func() time.Time
}

// SweeperOption configures the sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the sweep cadence.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweeperClock overrides the time source (useful for tests).
func WithSweeperClock(fn func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSweeper constructs a sweeper over the force registry.
func NewSweeper(forces ForceResolver, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		forces:        forces,
		interval:      DefaultSweepInterval,
		idleTTL:       SessionIdleTTL,
		persistentTTL: PersistentIdleTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on a fixed interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes expired sessions across all forces and returns the total
// number removed. A force whose store is unreachable is skipped and retried on
// the next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	var total int64
	now := s.now().UTC()
	for _, key := range s.forces.Keys() {
		fc, err := s.forces.Resolve(key)
		if err != nil {
			continue
		}
		n, err := fc.Sessions.DeleteExpired(ctx, now, s.idleTTL, s.persistentTTL)
		if err != nil {
			obs.Logger().Warn("session sweep failed", zap.String("force", key), zap.Error(err))
			continue
		}
		if n > 0 {
			obs.SessionsSwept(key, n)
			obs.Logger().Info("sessions swept", zap.String("force", key), zap.Int64("count", n))
		}
		total += n
	}
	return total
}
