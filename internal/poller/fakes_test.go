package poller

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/store"
)

// fakeScanner reports a fixed status per address; unknown addresses time out.
type fakeScanner struct {
	status map[string]scan.Status
	done   chan struct{}

	mu    sync.Mutex
	calls int
}

func newFakeScanner(status map[string]scan.Status) *fakeScanner {
	return &fakeScanner{status: status, done: make(chan struct{})}
}

func (f *fakeScanner) Scan(ctx context.Context, addrs []netip.Addr, port int) <-chan scan.Result {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	ch := make(chan scan.Result)
	go func() {
		defer close(ch)
		if first {
			defer close(f.done)
		}
		for _, a := range addrs {
			st, ok := f.status[a.String()]
			if !ok {
				st = scan.StatusTimeout
			}
			r := scan.Result{Addr: a, Port: port, Status: st}
			if st == scan.StatusError {
				r.Err = fmt.Errorf("socket: too many open files")
			}
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// fakeCollector returns a reading or error per host and tracks concurrency.
type fakeCollector struct {
	fail  map[string]error
	delay time.Duration
	gate  chan struct{}
	temp  func(host string) float64

	mu        sync.Mutex
	calls     map[string]int
	active    int
	maxActive int
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeCollector) Collect(ctx context.Context, host string) (store.Reading, error) {
	f.mu.Lock()
	f.calls[host]++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return store.Reading{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.fail[host]; err != nil {
		return store.Reading{}, err
	}

	temp := 42.0
	if f.temp != nil {
		temp = f.temp(host)
	}
	up := int64(temp)
	return store.Reading{Host: host, Temperature: temp, Uptime: &up, LastUpdate: time.Now()}, nil
}

func (f *fakeCollector) callsFor(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[host]
}

func (f *fakeCollector) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

type recordingPublisher struct {
	mu    sync.Mutex
	hosts []string
	err   error
}

func (r *recordingPublisher) Publish(_ context.Context, reading store.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts = append(r.hosts, reading.Host)
	return r.err
}

func (r *recordingPublisher) Close() {}

func (r *recordingPublisher) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.hosts...)
}
