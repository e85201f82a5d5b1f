package tapzero

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// DefaultScheduleDelay is the settle delay before an armed run fires,
// leaving registrations made in the same synchronous burst time to join.
const DefaultScheduleDelay = 5 * time.Millisecond

// Scheduler is responsible for scheduling a deferred test run.
type Scheduler interface {
	Arm(callback func())
	Stop()
	Stopped() bool
	WaitForShutdown(ctx context.Context) error
}

// OneShotScheduler implements the Scheduler interface: it fires its callback
// exactly once, after a fixed delay from the first Arm. Repeated Arm calls
// do not reschedule.
type OneShotScheduler struct {
	delay  time.Duration
	logger log.Logger

	armed   atomic.Bool
	running atomic.Bool
	mu      sync.Mutex
	timer   *time.Timer
	wg      sync.WaitGroup
}

// NewOneShotScheduler creates a new OneShotScheduler.
func NewOneShotScheduler(delay time.Duration, logger log.Logger) *OneShotScheduler {
	if logger == nil {
		logger = log.Root()
	}
	return &OneShotScheduler{
		delay:  delay,
		logger: logger,
	}
}

// Arm schedules the one-shot invocation of callback. Only the first call
// has any effect.
func (s *OneShotScheduler) Arm(callback func()) {
	if !s.armed.CompareAndSwap(false, true) {
		s.logger.Debug("Scheduler already armed, nothing to do")
		return
	}

	s.running.Store(true)
	s.wg.Add(1)
	s.logger.Debug("Arming one-shot run", "delay", s.delay)

	s.mu.Lock()
	s.timer = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.logger.Debug("One-shot run firing")
		callback()
	})
	s.mu.Unlock()
}

// Stop cancels a pending invocation. A callback that already started is not
// interrupted.
func (s *OneShotScheduler) Stop() {
	if !s.armed.Load() {
		s.logger.Debug("Scheduler not armed, nothing to do")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil && s.timer.Stop() {
		// The timer never fired, release the waiter.
		s.running.Store(false)
		s.wg.Done()
	}
}

// Stopped returns true if no invocation is pending or in flight.
func (s *OneShotScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the scheduled callback has finished.
func (s *OneShotScheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("Scheduled run terminated")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for scheduled run", "error", ctx.Err())
		return ctx.Err()
	}
}

var _ Scheduler = &OneShotScheduler{}
