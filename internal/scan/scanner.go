// Package scan discovers hosts by TCP-connect probing an address range.
package scan

import (
	"bufio"
	"context"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/computergenieco/pimon/internal/logger"
)

const (
	DefaultTimeout       = 2 * time.Second
	DefaultConcurrency   = 256
	DefaultBannerTimeout = 500 * time.Millisecond

	workQueueMultiplier = 2
	maxBannerLen        = 255
)

// Result is the outcome of one probe.
type Result struct {
	Addr   netip.Addr
	Port   int
	Status Status

	// Banner is the first line the service sent, when banner capture is on.
	Banner string

	RTT time.Duration

	// Err is the dial error for every status except StatusOpen.
	Err error
}

// Options tune a Scanner. Zero values pick the defaults.
type Options struct {
	Timeout       time.Duration
	Concurrency   int
	Banner        bool
	BannerTimeout time.Duration

	// Report restricts which statuses reach the result channel.
	// Empty reports every status.
	Report []Status

	Logger logger.Logger
}

// Scanner probes addresses with a fixed pool of workers.
type Scanner struct {
	timeout       time.Duration
	concurrency   int
	banner        bool
	bannerTimeout time.Duration
	report        map[Status]bool
	log           logger.Logger
	dialer        net.Dialer
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	s := &Scanner{
		timeout:       opts.Timeout,
		concurrency:   opts.Concurrency,
		banner:        opts.Banner,
		bannerTimeout: opts.BannerTimeout,
		log:           logger.OrDefault(opts.Logger),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.bannerTimeout <= 0 {
		s.bannerTimeout = DefaultBannerTimeout
	}
	if len(opts.Report) > 0 {
		s.report = make(map[Status]bool, len(opts.Report))
		for _, st := range opts.Report {
			s.report[st] = true
		}
	}
	return s
}

// Scan probes every address in addrs on port once. Results arrive on the
// returned channel, which is closed after the last probe finishes or ctx is
// cancelled.
func (s *Scanner) Scan(ctx context.Context, addrs []netip.Addr, port int) <-chan Result {
	if len(addrs) == 0 {
		ch := make(chan Result)
		close(ch)
		return ch
	}

	workers := s.concurrency
	if workers > len(addrs) {
		workers = len(addrs)
	}

	resultCh := make(chan Result, workers)
	workCh := make(chan netip.Addr, workers*workQueueMultiplier)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, port, workCh, resultCh)
		}()
	}

	go func() {
		defer close(workCh)
		for _, a := range addrs {
			select {
			case <-ctx.Done():
				return
			case workCh <- a:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	s.log.Debug("probing %d addresses on port %d with %d workers", len(addrs), port, workers)
	return resultCh
}

func (s *Scanner) worker(ctx context.Context, port int, workCh <-chan netip.Addr, resultCh chan<- Result) {
	for a := range workCh {
		if ctx.Err() != nil {
			return
		}

		r := s.probe(ctx, a, port)
		if s.report != nil && !s.report[r.Status] {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case resultCh <- r:
		}
	}
}

func (s *Scanner) probe(ctx context.Context, addr netip.Addr, port int) Result {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r := Result{Addr: addr, Port: port}
	start := time.Now()

	conn, err := s.dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	r.RTT = time.Since(start)
	if err != nil {
		if probeCtx.Err() != nil && ctx.Err() == nil {
			err = probeCtx.Err()
		}
		r.Status = classify(err)
		r.Err = err
		return r
	}
	defer conn.Close()

	r.Status = StatusOpen
	if s.banner {
		r.Banner = readBanner(conn, s.bannerTimeout)
	}
	return r
}

// readBanner returns the first line the peer sends, or "" if nothing
// arrives before the deadline.
func readBanner(conn net.Conn, timeout time.Duration) string {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	line, err := bufio.NewReaderSize(conn, maxBannerLen+1).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) > maxBannerLen {
		line = line[:maxBannerLen]
	}
	return line
}
