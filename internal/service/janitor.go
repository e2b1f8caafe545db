package service

import (
	"log"
	"sync"
	"time"

	"cardmarket/internal/metrics"
	"cardmarket/internal/session"
)

// JanitorConfig holds configuration for the session janitor.
type JanitorConfig struct {
	// MaxIdle is how long a browse session may go untouched.
	// Default: 15 minutes
	MaxIdle time.Duration

	// Interval is how often idle sessions are swept.
	// Default: 1 minute
	Interval time.Duration
}

// DefaultJanitorConfig returns default janitor configuration.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		MaxIdle:  15 * time.Minute,
		Interval: 1 * time.Minute,
	}
}

// IdleEvicter drops entries untouched within maxIdle and returns how many.
type IdleEvicter interface {
	EvictIdle(maxIdle time.Duration) int
}

// SessionJanitor periodically evicts idle browse sessions and any other
// per-actor state registered with Sweep.
type SessionJanitor struct {
	tracker   *session.Tracker
	extra     []IdleEvicter
	metrics   metrics.Recorder
	config    JanitorConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewSessionJanitor creates a new janitor. rec may be nil.
func NewSessionJanitor(tracker *session.Tracker, config JanitorConfig, rec metrics.Recorder) *SessionJanitor {
	defaults := DefaultJanitorConfig()
	if config.MaxIdle == 0 {
		config.MaxIdle = defaults.MaxIdle
	}
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	return &SessionJanitor{
		tracker: tracker,
		metrics: rec,
		config:  config,
		stopCh:  make(chan struct{}),
	}
}

// Sweep adds e to every sweep. Call before Start.
func (j *SessionJanitor) Sweep(e ...IdleEvicter) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.extra = append(j.extra, e...)
}

// Start begins periodic sweeps.
func (j *SessionJanitor) Start() {
	j.mu.Lock()
	if j.isRunning {
		j.mu.Unlock()
		return
	}
	j.isRunning = true
	j.ticker = time.NewTicker(j.config.Interval)
	j.mu.Unlock()

	log.Printf("[SessionJanitor] Started - Interval: %v, MaxIdle: %v", j.config.Interval, j.config.MaxIdle)
	go j.run()
}

func (j *SessionJanitor) run() {
	for {
		select {
		case <-j.ticker.C:
			j.RunNow()
		case <-j.stopCh:
			log.Printf("[SessionJanitor] Stopped")
			return
		}
	}
}

// RunNow sweeps immediately and returns how many entries were evicted.
func (j *SessionJanitor) RunNow() int {
	evicted := j.tracker.EvictIdle(j.config.MaxIdle)
	if evicted > 0 {
		log.Printf("[SessionJanitor] Evicted %d idle browse sessions", evicted)
	}
	j.metrics.SessionsActive(j.tracker.Len())

	j.mu.Lock()
	extra := j.extra
	j.mu.Unlock()
	for _, e := range extra {
		if n := e.EvictIdle(j.config.MaxIdle); n > 0 {
			log.Printf("[SessionJanitor] Evicted %d idle entries from %T", n, e)
			evicted += n
		}
	}
	return evicted
}

// Stop stops the janitor.
func (j *SessionJanitor) Stop() {
	j.stopOnce.Do(func() {
		j.mu.Lock()
		defer j.mu.Unlock()

		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.stopCh)
		j.isRunning = false
	})
}
