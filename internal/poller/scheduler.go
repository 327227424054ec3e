package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/computergenieco/pimon/internal/logger"
)

const DefaultInterval = 5 * time.Minute

// OverlapMode decides what happens when a tick fires while the previous
// cycle is still running.
type OverlapMode int

const (
	// OverlapSkip drops the tick.
	OverlapSkip OverlapMode = iota
	// OverlapAllow starts another cycle alongside the running one.
	OverlapAllow
)

func (m OverlapMode) String() string {
	if m == OverlapAllow {
		return "allow"
	}
	return "skip"
}

// Cycler runs one scan cycle.
type Cycler interface {
	RunCycle(ctx context.Context) CycleReport
}

// SchedulerOptions configure a Scheduler.
type SchedulerOptions struct {
	Interval time.Duration

	Overlap OverlapMode

	Clock  Clock
	Logger logger.Logger
}

// Scheduler runs a cycle at start and then on every interval tick.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	overlap  OverlapMode
	clock    Clock
	log      logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	started atomic.Int64
	skipped atomic.Int64
}

// NewScheduler creates a Scheduler for c.
func NewScheduler(c Cycler, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		cycler:   c,
		interval: opts.Interval,
		overlap:  opts.Overlap,
		clock:    opts.Clock,
		log:      logger.OrDefault(opts.Logger),
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	return s
}

// Run blocks until ctx is cancelled, then waits for in-flight cycles.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	s.log.Info("scanning every %s (overlap: %s)", s.interval, s.overlap)

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.Chan():
			s.trigger(ctx)
		}
	}
}

// Started returns how many cycles have been started.
func (s *Scheduler) Started() int64 { return s.started.Load() }

// Skipped returns how many ticks were dropped because a cycle was running.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

func (s *Scheduler) trigger(ctx context.Context) {
	if s.overlap == OverlapSkip && !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous cycle still running, skipping this tick")
		return
	}

	s.started.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.overlap == OverlapSkip {
			defer s.running.Store(false)
		}

		start := s.clock.Now()
		report := s.cycler.RunCycle(ctx)
		if ctx.Err() != nil {
			s.log.Info("cycle cancelled after %s", s.clock.Now().Sub(start).Round(time.Millisecond))
			return
		}
		s.log.Debug("cycle took %s, %d readings", report.Duration.Round(time.Millisecond), report.Collected)
	}()
}
