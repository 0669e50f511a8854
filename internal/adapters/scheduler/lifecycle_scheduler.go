package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxBackoff = 5 * time.Minute

// Sweeper processes all expired listings once. Returns how many listings
// were dispositioned; an error means the sweep itself could not run (for
// example the repository is unreachable) and the tick should back off.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// LifecycleScheduler drives the expiry sweep on a fixed period. Ticks run
// synchronously in one goroutine, so a listing is never processed by two
// overlapping sweep passes, and repeated sweep failures back off
// exponentially up to maxBackoff.
type LifecycleScheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type LifecycleSchedulerParams struct {
	Sweeper  Sweeper
	Interval time.Duration
	Logger   zerolog.Logger
}

// NewLifecycleScheduler creates a new lifecycle scheduler
func NewLifecycleScheduler(params LifecycleSchedulerParams) *LifecycleScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &LifecycleScheduler{
		sweeper:  params.Sweeper,
		interval: params.Interval,
		logger:   params.Logger.With().Str("component", "lifecycle_scheduler").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the scheduler loop
func (s *LifecycleScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting lifecycle scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler
func (s *LifecycleScheduler) Stop() {
	s.logger.Info().Msg("Stopping lifecycle scheduler")
	s.cancel()
	s.wg.Wait()
}

// schedulerLoop runs the main scheduling loop
func (s *LifecycleScheduler) schedulerLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-timer.C:
			processed, err := s.sweeper.SweepExpired(s.ctx, time.Now())
			if err != nil {
				failures++
				delay := s.backoff(failures)
				s.logger.Error().Err(err).
					Int("consecutive_failures", failures).
					Dur("retry_in", delay).
					Msg("Sweep failed")
				timer.Reset(delay)
				continue
			}

			if processed > 0 {
				s.logger.Info().Int("processed", processed).Msg("Sweep completed")
			}
			failures = 0
			timer.Reset(s.interval)

		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// backoff doubles the sweep interval per consecutive failure, capped
func (s *LifecycleScheduler) backoff(failures int) time.Duration {
	delay := s.interval
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
