// Package weather keeps a lazily refreshed outdoor temperature for a postal
// code, sourced from Nominatim and the US National Weather Service.
package weather

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
)

const (
	DefaultMaxAge        = 30 * time.Minute
	DefaultTimeout       = 15 * time.Second
	DefaultUserAgent     = "PiMonitor/1.0"
	DefaultGeocodeURL    = "https://nominatim.openstreetmap.org/search"
	DefaultPointsURL     = "https://api.weather.gov/points"
	DefaultRetries       = 3
	DefaultRetryInterval = 500 * time.Millisecond
)

// Snapshot is the cached outdoor temperature. Both fields are nil until the
// first successful refresh.
type Snapshot struct {
	// Temp in degrees Fahrenheit.
	Temp       *int       `json:"temp"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

// Options configure a Client.
type Options struct {
	PostalCode string
	Country    string
	UserAgent  string
	GeocodeURL string
	PointsURL  string

	// MaxAge is how old the snapshot may get before Get refreshes it.
	MaxAge time.Duration

	// Timeout bounds one whole refresh (all three requests).
	Timeout time.Duration

	// Retries is the number of attempts per request for 5xx responses and
	// transport errors.
	Retries       int
	RetryInterval time.Duration

	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client serves a cached Snapshot and refreshes it when stale.
type Client struct {
	opts Options
	http *http.Client
	log  logger.Logger

	// refreshMu serializes refreshes; mu guards snap.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	snap      Snapshot
}

// New creates a Client with an empty snapshot.
func New(opts Options) *Client {
	if opts.Country == "" {
		opts.Country = "USA"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.GeocodeURL == "" {
		opts.GeocodeURL = DefaultGeocodeURL
	}
	if opts.PointsURL == "" {
		opts.PointsURL = DefaultPointsURL
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		opts: opts,
		http: httpClient,
		log:  logger.OrDefault(opts.Logger),
	}
}

// Snapshot returns the cached value without refreshing.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copySnapshot(c.snap)
}

// Get returns the cached snapshot, refreshing it first when it has never been
// fetched or is older than MaxAge at now. A failed refresh is logged and the
// previous snapshot is returned unchanged.
func (c *Client) Get(ctx context.Context, now time.Time) Snapshot {
	if !c.stale(now) {
		return c.Snapshot()
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if !c.stale(now) {
		return c.Snapshot()
	}

	if err := c.Refresh(ctx, now); err != nil {
		c.log.Warn("weather refresh failed: %s", errors.Oneline(err))
	}
	return c.Snapshot()
}

// Refresh fetches the current temperature and, on success, replaces the
// snapshot with lastUpdate set to now.
func (c *Client) Refresh(ctx context.Context, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	temp, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	ts := now
	c.mu.Lock()
	c.snap = Snapshot{Temp: &temp, LastUpdate: &ts}
	c.mu.Unlock()

	c.log.Info("outdoor temperature for %s: %d°F", c.opts.PostalCode, temp)
	return nil
}

func (c *Client) stale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap.LastUpdate == nil {
		return true
	}
	return now.Sub(*c.snap.LastUpdate) > c.opts.MaxAge
}

func copySnapshot(s Snapshot) Snapshot {
	var out Snapshot
	if s.Temp != nil {
		t := *s.Temp
		out.Temp = &t
	}
	if s.LastUpdate != nil {
		ts := *s.LastUpdate
		out.LastUpdate = &ts
	}
	return out
}
