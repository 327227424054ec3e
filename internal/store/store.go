// Package store holds the latest reading collected from each device.
package store

import (
	"sort"
	"sync"
	"time"
)

// Reading is the most recent telemetry collected from one host.
type Reading struct {
	// Host is the device address and the store key.
	Host string `json:"ip"`

	// Temperature in degrees Celsius.
	Temperature float64 `json:"temp"`

	// Uptime in seconds, nil when the device script did not report it.
	Uptime *int64 `json:"uptime,omitempty"`

	LastUpdate time.Time `json:"lastUpdate"`
}

// Store maps host address to its latest Reading. Entries are replaced,
// never removed: a device that goes offline keeps its last reading.
type Store struct {
	mu       sync.RWMutex
	readings map[string]Reading
}

// New creates an empty Store.
func New() *Store {
	return &Store{readings: make(map[string]Reading)}
}

// Upsert stores r, replacing any previous reading for r.Host.
func (s *Store) Upsert(r Reading) {
	r = cloneReading(r)
	s.mu.Lock()
	s.readings[r.Host] = r
	s.mu.Unlock()
}

// Get returns the reading for host.
func (s *Store) Get(host string) (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[host]
	return cloneReading(r), ok
}

// Len returns the number of hosts with a reading.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Snapshot returns a copy of every reading, sorted by host.
func (s *Store) Snapshot() []Reading {
	s.mu.RLock()
	out := make([]Reading, 0, len(s.readings))
	for _, r := range s.readings {
		out = append(out, cloneReading(r))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return hostLess(out[i].Host, out[j].Host)
	})
	return out
}

// cloneReading returns r with its own copy of Uptime, so callers and the
// store never share the pointer.
func cloneReading(r Reading) Reading {
	if r.Uptime != nil {
		v := *r.Uptime
		r.Uptime = &v
	}
	return r
}
