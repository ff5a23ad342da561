package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/recrutech-auth/metrics"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically purges expired ledger rows. Correctness never depends
// on it running: an expired token is rejected on its exp claim first.
type Sweeper struct {
	ledger   Ledger
	interval time.Duration
	timeout  time.Duration
	nowFunc  func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperNowFunc sets the clock expiry is judged against.
func WithSweeperNowFunc(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.nowFunc = now
	}
}

// NewSweeper creates a sweeper that runs every interval, bounding each purge by timeout.
func NewSweeper(ledger Ledger, interval, timeout time.Duration, options ...SweeperOption) *Sweeper {
	s := &Sweeper{
		ledger:   ledger,
		interval: interval,
		timeout:  timeout,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// SweepOnce purges expired rows and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ledger.DeleteExpired(ctx, s.nowFunc())
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.SweepOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("refresh token sweep failed")
				continue
			}
			if deleted > 0 {
				metrics.AddLedgerSwept(deleted)
				log.Info().Int("deleted", deleted).Msg("purged expired refresh tokens")
			}
		}
	}
}
