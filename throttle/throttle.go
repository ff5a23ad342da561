// Package throttle limits how often a client may call the authentication
// entry points. Each client key gets a fixed-window counter and, once the
// limit is exceeded, a hard block window.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/recrutech-auth/metrics"
	"github.com/rs/zerolog/log"
)

// Limiter is what the HTTP middleware needs from a throttle.
type Limiter interface {
	AllowRequest(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Limit         int           // Requests allowed per window
	RefreshPeriod time.Duration // Window length
	Timeout       time.Duration // Block length once the limit is exceeded
}

// DefaultConfig allows 10 requests per minute and blocks for 30 seconds.
func DefaultConfig() Config {
	return Config{
		Limit:         10,
		RefreshPeriod: 60 * time.Second,
		Timeout:       30 * time.Second,
	}
}

type counter struct {
	mu           sync.Mutex
	count        int
	windowStart  time.Time
	blockedUntil time.Time
	evicted      bool // set by Sweep; a holder must look the key up again
}

var _ Limiter = (*Throttle)(nil)

// Throttle is the in-process Limiter. The counter map is guarded by lock and
// every counter by its own mutex, so different keys never contend.
type Throttle struct {
	config   Config
	counters map[string]*counter
	lock     sync.RWMutex
	nowFunc  func() time.Time
}

type Option func(*Throttle)

func WithNowFunc(now func() time.Time) Option {
	return func(t *Throttle) {
		t.nowFunc = now
	}
}

func New(config Config, options ...Option) *Throttle {
	t := &Throttle{
		config:   config,
		counters: make(map[string]*counter),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Allow records a request from key and reports whether it may proceed.
func (t *Throttle) Allow(key string) bool {
	now := t.nowFunc()
	for {
		c := t.counter(key, now)
		c.mu.Lock()
		if c.evicted {
			c.mu.Unlock()
			continue
		}
		allowed := t.step(c, now)
		c.mu.Unlock()
		return allowed
	}
}

// AllowRequest adapts Allow to the Limiter interface. It never fails.
func (t *Throttle) AllowRequest(_ context.Context, key string) (bool, error) {
	return t.Allow(key), nil
}

func (t *Throttle) step(c *counter, now time.Time) bool {
	if now.Before(c.blockedUntil) {
		return false
	}
	if now.Sub(c.windowStart) > t.config.RefreshPeriod {
		c.count = 0
		c.windowStart = now
	}
	c.count++
	if c.count > t.config.Limit {
		c.blockedUntil = now.Add(t.config.Timeout)
		return false
	}
	return true
}

func (t *Throttle) counter(key string, now time.Time) *counter {
	t.lock.RLock()
	c, ok := t.counters[key]
	t.lock.RUnlock()
	if ok {
		return c
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if c, ok = t.counters[key]; ok {
		return c
	}
	c = &counter{windowStart: now}
	t.counters[key] = c
	return c
}

// Sweep evicts counters whose window and block have both lapsed at now and
// returns how many were removed. Evicting such a counter is unobservable:
// the next request would reset it anyway.
func (t *Throttle) Sweep(now time.Time) int {
	t.lock.Lock()
	defer t.lock.Unlock()

	evicted := 0
	for key, c := range t.counters {
		c.mu.Lock()
		idle := !now.Before(c.blockedUntil) && now.Sub(c.windowStart) > t.config.RefreshPeriod
		if idle {
			c.evicted = true
			delete(t.counters, key)
			evicted++
		}
		c.mu.Unlock()
	}
	return evicted
}

// Len is the number of tracked client keys.
func (t *Throttle) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.counters)
}

// Run sweeps every interval until ctx is cancelled.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := t.Sweep(t.nowFunc()); evicted > 0 {
				log.Debug().Int("evicted", evicted).Msg("throttle sweep")
			}
			metrics.SetThrottleTrackedClients(t.Len())
		}
	}
}
