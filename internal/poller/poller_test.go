package poller

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/store"
)

func TestRunCycle_OneCollectionPerOpenHost(t *testing.T) {
	scanner := newFakeScanner(map[string]scan.Status{
		"10.0.0.2": scan.StatusOpen,
		"10.0.0.3": scan.StatusRefused,
		"10.0.0.5": scan.StatusOpen,
		"10.0.0.7": scan.StatusUnreachable,
	})
	collector := newFakeCollector()
	p := New(Options{Targets: "10.0.0.1-8", Scanner: scanner, Collector: collector, Logger: logger.Noop()})

	report := p.RunCycle(context.Background())

	assert.Equal(t, 8, report.Probed)
	assert.Equal(t, 2, report.Open)
	assert.Equal(t, 2, report.Collected)
	assert.Equal(t, 0, report.Failed)
	assert.NoError(t, report.TargetErr)

	assert.Equal(t, 1, collector.callsFor("10.0.0.2"))
	assert.Equal(t, 1, collector.callsFor("10.0.0.5"))
	assert.Equal(t, 0, collector.callsFor("10.0.0.3"))

	snap := p.Store().Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "10.0.0.2", snap[0].Host)
	assert.Equal(t, "10.0.0.5", snap[1].Host)
}

func TestRunCycle_FailureIsolation(t *testing.T) {
	st := store.New()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.Upsert(store.Reading{Host: "10.0.0.3", Temperature: 55, LastUpdate: old})

	scanner := newFakeScanner(map[string]scan.Status{
		"10.0.0.2": scan.StatusOpen,
		"10.0.0.3": scan.StatusOpen,
	})
	collector := newFakeCollector()
	collector.fail["10.0.0.3"] = errors.New(errors.ErrSSH, "auth failed", "")

	buf := logger.NewBufferLogger()
	p := New(Options{Targets: "10.0.0.2,10.0.0.3", Scanner: scanner, Collector: collector, Store: st, Logger: buf})

	report := p.RunCycle(context.Background())
	assert.Equal(t, 1, report.Collected)
	assert.Equal(t, 1, report.Failed)
	require.Contains(t, report.Errors, "10.0.0.3")
	assert.True(t, errors.IsCode(report.Errors["10.0.0.3"], errors.ErrSSH))

	a, ok := st.Get("10.0.0.2")
	require.True(t, ok)
	assert.InDelta(t, 42.0, a.Temperature, 1e-9)

	b, ok := st.Get("10.0.0.3")
	require.True(t, ok)
	assert.InDelta(t, 55.0, b.Temperature, 1e-9)
	assert.Equal(t, old, b.LastUpdate)

	assert.True(t, buf.Contains("warn", "10.0.0.3: auth failed"))
}

func TestRunCycle_BoundedSessions(t *testing.T) {
	status := map[string]scan.Status{}
	for i := 1; i <= 12; i++ {
		status[fmt.Sprintf("10.0.0.%d", i)] = scan.StatusOpen
	}
	collector := newFakeCollector()
	collector.delay = 20 * time.Millisecond

	p := New(Options{Targets: "10.0.0.1-12", MaxSessions: 3, Scanner: newFakeScanner(status), Collector: collector, Logger: logger.Noop()})
	report := p.RunCycle(context.Background())

	assert.Equal(t, 12, report.Collected)
	assert.LessOrEqual(t, collector.peak(), 3)
	assert.Equal(t, 12, p.Store().Len())
}

func TestRunCycle_DispatchDoesNotBlockScan(t *testing.T) {
	status := map[string]scan.Status{}
	for i := 1; i <= 5; i++ {
		status[fmt.Sprintf("10.0.0.%d", i)] = scan.StatusOpen
	}
	scanner := newFakeScanner(status)
	collector := newFakeCollector()
	collector.gate = make(chan struct{})

	p := New(Options{Targets: "10.0.0.1-5", MaxSessions: 1, Scanner: scanner, Collector: collector, Logger: logger.Noop()})

	done := make(chan CycleReport)
	go func() { done <- p.RunCycle(context.Background()) }()

	select {
	case <-scanner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan stream stalled behind blocked collections")
	}

	close(collector.gate)
	report := <-done
	assert.Equal(t, 5, report.Collected)
	assert.Equal(t, 1, collector.peak())
}

func TestRunCycle_MalformedTargetsStillScansValid(t *testing.T) {
	scanner := newFakeScanner(map[string]scan.Status{"10.0.0.9": scan.StatusOpen})
	buf := logger.NewBufferLogger()
	p := New(Options{Targets: "nope,10.0.0.9", Scanner: scanner, Collector: newFakeCollector(), Logger: buf})

	report := p.RunCycle(context.Background())
	require.Error(t, report.TargetErr)
	assert.True(t, errors.IsCode(report.TargetErr, errors.ErrScan))
	assert.Equal(t, 1, report.Collected)
	assert.True(t, buf.HasLevel("error"))
}

func TestRunCycle_NoTargets(t *testing.T) {
	p := New(Options{Targets: "bogus", Scanner: newFakeScanner(nil), Collector: newFakeCollector(), Logger: logger.Noop()})
	report := p.RunCycle(context.Background())
	assert.Error(t, report.TargetErr)
	assert.Zero(t, report.Probed)
}

func TestRunCycle_ScannerFaultsCounted(t *testing.T) {
	scanner := newFakeScanner(map[string]scan.Status{
		"10.0.0.1": scan.StatusError,
		"10.0.0.2": scan.StatusOpen,
	})
	buf := logger.NewBufferLogger()
	p := New(Options{Targets: "10.0.0.1-2", Scanner: scanner, Collector: newFakeCollector(), Logger: buf})

	report := p.RunCycle(context.Background())
	assert.Equal(t, 1, report.Faults)
	assert.Equal(t, 1, report.Collected)
	assert.True(t, buf.Contains("warn", "too many open files"))
}

func TestRunCycle_Publishes(t *testing.T) {
	scanner := newFakeScanner(map[string]scan.Status{
		"10.0.0.1": scan.StatusOpen,
		"10.0.0.2": scan.StatusOpen,
	})
	collector := newFakeCollector()
	collector.fail["10.0.0.2"] = stderrors.New("boom")
	pub := &recordingPublisher{err: errors.New(errors.ErrPublish, "broker down", "")}

	buf := logger.NewBufferLogger()
	p := New(Options{Targets: "10.0.0.1-2", Scanner: scanner, Collector: collector, Publisher: pub, Logger: buf})
	report := p.RunCycle(context.Background())

	assert.Equal(t, []string{"10.0.0.1"}, pub.published())
	assert.Equal(t, 1, report.Collected)
	assert.Equal(t, 1, p.Store().Len(), "publish failure must not undo the store write")
	assert.True(t, buf.Contains("warn", "broker down"))
}

func TestRunCycle_CancelledContext(t *testing.T) {
	scanner := newFakeScanner(map[string]scan.Status{"10.0.0.1": scan.StatusOpen})
	collector := newFakeCollector()
	collector.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	p := New(Options{Targets: "10.0.0.1", Scanner: scanner, Collector: collector, Logger: logger.Noop()})

	done := make(chan CycleReport)
	go func() { done <- p.RunCycle(ctx) }()
	<-scanner.done
	cancel()

	select {
	case report := <-done:
		assert.Equal(t, 1, report.Failed)
		assert.Zero(t, p.Store().Len())
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish after cancellation")
	}
}

func TestConcurrentCyclesNeverMixRecords(t *testing.T) {
	status := map[string]scan.Status{}
	for i := 1; i <= 6; i++ {
		status[fmt.Sprintf("10.0.0.%d", i)] = scan.StatusOpen
	}

	const cycles = 4
	st := store.New()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		starts []time.Time
		ends   []time.Time
	)
	for c := 0; c < cycles; c++ {
		// Slow collectors keep every cycle in flight at once; the slowest
		// cycle writes last.
		collector := newFakeCollector()
		collector.delay = time.Duration(c+1) * 30 * time.Millisecond
		temp := float64(30 + c)
		collector.temp = func(string) float64 { return temp }
		p := New(Options{Targets: "10.0.0.1-6", Scanner: newFakeScanner(status), Collector: collector, Store: st, Logger: logger.Noop()})

		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			p.RunCycle(context.Background())
			mu.Lock()
			starts = append(starts, started)
			ends = append(ends, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	lastStart, firstEnd := starts[0], ends[0]
	for i := 1; i < cycles; i++ {
		if starts[i].After(lastStart) {
			lastStart = starts[i]
		}
		if ends[i].Before(firstEnd) {
			firstEnd = ends[i]
		}
	}
	require.True(t, lastStart.Before(firstEnd), "cycles did not overlap")

	snap := st.Snapshot()
	require.Len(t, snap, 6)
	hosts := make([]string, 0, len(snap))
	for _, r := range snap {
		require.NotNil(t, r.Uptime)
		assert.Equal(t, int64(r.Temperature), *r.Uptime, "reading for %s mixes two cycles", r.Host)
		assert.Equal(t, float64(30+cycles-1), r.Temperature, "%s should hold the slowest cycle's write", r.Host)
		hosts = append(hosts, r.Host)
	}
	assert.True(t, sort.StringsAreSorted(hosts))
}
