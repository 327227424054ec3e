// Package poller runs scan cycles: discover SSH hosts, collect a reading
// from each one, and record the results.
package poller

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/publish"
	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/store"
)

const DefaultMaxSessions = 16

// Scanner produces one result per probed address and closes the channel
// when done.
type Scanner interface {
	Scan(ctx context.Context, addrs []netip.Addr, port int) <-chan scan.Result
}

// Collector fetches one reading from a host.
type Collector interface {
	Collect(ctx context.Context, host string) (store.Reading, error)
}

// Options configure a Poller.
type Options struct {
	// Targets is the scan range, see scan.ParseTargets.
	Targets string
	Port    int

	// MaxSessions bounds concurrent collections.
	MaxSessions int

	Scanner   Scanner
	Collector Collector
	Store     *store.Store
	Publisher publish.Publisher
	Logger    logger.Logger
}

// CycleReport summarises one RunCycle.
type CycleReport struct {
	Started  time.Time
	Duration time.Duration

	Probed    int
	Open      int
	Collected int
	Failed    int

	// TargetErr reports malformed scan targets; the valid ones were still scanned.
	TargetErr error

	// Faults counts probes that ended in scan.StatusError.
	Faults int

	// Errors holds the collection failure for each failed host.
	Errors map[string]error
}

// Poller owns the scan, collect and store pipeline.
type Poller struct {
	targets   string
	port      int
	sem       *semaphore.Weighted
	scanner   Scanner
	collector Collector
	store     *store.Store
	publisher publish.Publisher
	log       logger.Logger
}

// New creates a Poller. A nil Store gets a fresh one; a nil Publisher
// publishes nothing.
func New(opts Options) *Poller {
	p := &Poller{
		targets:   opts.Targets,
		port:      opts.Port,
		scanner:   opts.Scanner,
		collector: opts.Collector,
		store:     opts.Store,
		publisher: opts.Publisher,
		log:       logger.OrDefault(opts.Logger),
	}
	if p.port <= 0 {
		p.port = 22
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	p.sem = semaphore.NewWeighted(int64(maxSessions))
	if p.store == nil {
		p.store = store.New()
	}
	if p.publisher == nil {
		p.publisher = publish.Noop()
	}
	return p
}

// Store returns the store this poller writes to.
func (p *Poller) Store() *store.Store {
	return p.store
}

// RunCycle scans the configured range once, collects from every open host
// and waits for all collections to finish. Per-host failures are logged and
// counted; they never abort the cycle.
func (p *Poller) RunCycle(ctx context.Context) (report CycleReport) {
	report = CycleReport{Started: time.Now(), Errors: make(map[string]error)}
	defer func() { report.Duration = time.Since(report.Started) }()

	addrs, err := scan.ParseTargets(p.targets)
	if err != nil {
		report.TargetErr = err
		p.log.Error("scan targets: %s", errors.Oneline(err))
	}
	if len(addrs) == 0 {
		p.log.Warn("no addresses to scan")
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for res := range p.scanner.Scan(ctx, addrs, p.port) {
		report.Probed++

		switch res.Status {
		case scan.StatusOpen:
		case scan.StatusError:
			report.Faults++
			p.log.Warn("probe %s: %v", res.Addr, res.Err)
			continue
		default:
			continue
		}

		report.Open++
		host := res.Addr.String()
		if res.Banner != "" {
			p.log.Debug("%s open: %s", host, res.Banner)
		}

		wg.Add(1)
		go func(host string) {
			defer wg.Done()

			err := p.collect(ctx, host)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors[host] = err
				return
			}
			report.Collected++
		}(host)
	}

	wg.Wait()

	p.log.Info("cycle done: %d probed, %d open, %d collected, %d failed",
		report.Probed, report.Open, report.Collected, report.Failed)
	return report
}

// collect runs one host through the collector once a session slot is free.
func (p *Poller) collect(ctx context.Context, host string) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return errors.WrapWithCode(err, errors.ErrCollect, "Collection for "+host+" not started", "")
	}
	defer p.sem.Release(1)

	reading, err := p.collector.Collect(ctx, host)
	if err != nil {
		p.log.Warn("%s: %s", host, errors.Oneline(err))
		return err
	}

	p.store.Upsert(reading)
	p.log.Debug("%s: %.1f°C", host, reading.Temperature)

	if err := p.publisher.Publish(ctx, reading); err != nil {
		p.log.Warn("publish %s: %s", host, errors.Oneline(err))
	}
	return nil
}
