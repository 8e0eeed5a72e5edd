package manager

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler drives Manager.DoWork on a fixed tick, the Go stand-in for the
// "do_work() tick driven by the enclosing event loop" cooperative
// scheduling spec §5 calls for.
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler builds (but does not start) a scheduler that calls
// m.DoWork() every interval.
func NewScheduler(m *Manager, interval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.DoWork),
	)
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: sched}, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() { s.sched.Start() }

// Stop halts the scheduler, blocking until the in-flight tick (if any)
// completes.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.sched.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
