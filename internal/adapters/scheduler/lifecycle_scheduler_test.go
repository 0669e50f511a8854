package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int64
	fail  bool
}

func (s *countingSweeper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.fail {
		return 0, fmt.Errorf("store unavailable")
	}
	return 0, nil
}

func (s *countingSweeper) count() int64 {
	return atomic.LoadInt64(&s.calls)
}

func TestSchedulerSweepsOnInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewLifecycleScheduler(LifecycleSchedulerParams{
		Sweeper:  sweeper,
		Interval: 10 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	require.GreaterOrEqual(t, sweeper.count(), int64(3))
}

func TestSchedulerStopHaltsSweeps(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewLifecycleScheduler(LifecycleSchedulerParams{
		Sweeper:  sweeper,
		Interval: 10 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	settled := sweeper.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, sweeper.count())
}

func TestSchedulerBacksOffOnRepeatedFailure(t *testing.T) {
	failing := &countingSweeper{fail: true}
	s := NewLifecycleScheduler(LifecycleSchedulerParams{
		Sweeper:  failing,
		Interval: 10 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	// With doubling delays (10, 20, 40, 80ms...) far fewer ticks fit in the
	// window than the steady-state cadence would allow
	require.Less(t, failing.count(), int64(6))
	require.GreaterOrEqual(t, failing.count(), int64(1))
}
