// Package flood limits how often a single client may submit scans.
package flood

import (
	"sync"
	"time"
)

const (
	// window is the sliding window submissions are counted in
	window = time.Minute
	// sweepInterval is how often idle clients are forgotten
	sweepInterval = 10 * time.Minute
	// idleTimeout is how long a client may stay silent before it is forgotten
	idleTimeout = 10 * time.Minute
)

// Floodgate counts submissions per client in a sliding one-minute window.
type Floodgate struct {
	limit   int
	clients map[string]*client
	now     func() time.Time
	mutex   sync.Mutex
	stop    chan struct{}
	once    sync.Once
}

type client struct {
	hits     []time.Time
	lastSeen time.Time
}

// New creates a floodgate admitting limitPerMinute submissions per client.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limit:   limitPerMinute,
		clients: make(map[string]*client),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go fg.sweepLoop()
	return fg
}

func (fg *Floodgate) Stop() {
	fg.once.Do(func() { close(fg.stop) })
}

// Allow records a submission from key and reports whether it is within the limit.
// Rejected submissions are not counted.
func (fg *Floodgate) Allow(key string) bool {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	now := fg.now()
	c, ok := fg.clients[key]
	if !ok {
		c = &client{hits: make([]time.Time, 0, fg.limit)}
		fg.clients[key] = c
	}
	c.lastSeen = now

	cutoff := now.Add(-window)
	kept := c.hits[:0]
	for _, hit := range c.hits {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	c.hits = kept

	if len(c.hits) >= fg.limit {
		return false
	}
	c.hits = append(c.hits, now)
	return true
}

func (fg *Floodgate) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.sweep()
		case <-fg.stop:
			return
		}
	}
}

func (fg *Floodgate) sweep() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-idleTimeout)
	for key, c := range fg.clients {
		if c.lastSeen.Before(cutoff) {
			delete(fg.clients, key)
		}
	}
}

// Stats returns the limiter's current counters.
func (fg *Floodgate) Stats() Stats {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	return Stats{
		Clients:        len(fg.clients),
		LimitPerMinute: fg.limit,
		WindowSeconds:  int(window.Seconds()),
	}
}

type Stats struct {
	Clients        int `json:"clients"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
