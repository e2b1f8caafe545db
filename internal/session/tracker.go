// Package session tracks per-viewer browse state. Sessions live in memory
// only and are keyed by (viewer, category).
package session

import (
	"sync"
	"time"
)

// Key identifies one viewer's browse of one category.
type Key struct {
	ViewerID string
	Category string
}

// Session is the browse position of a viewer.
type Session struct {
	Key
	Page     int
	PageSize int
	LastSeen time.Time
}

// Tracker owns all browse sessions.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[Key]Session
	now      func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[Key]Session),
		now:      time.Now,
	}
}

// Start creates or resets the session at page 0.
func (t *Tracker) Start(viewerID, category string, pageSize int) Session {
	s := Session{
		Key:      Key{ViewerID: viewerID, Category: category},
		Page:     0,
		PageSize: pageSize,
		LastSeen: t.now(),
	}
	t.mu.Lock()
	t.sessions[s.Key] = s
	t.mu.Unlock()
	return s
}

// Get returns the session for (viewer, category).
func (t *Tracker) Get(viewerID, category string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[Key{ViewerID: viewerID, Category: category}]
	return s, ok
}

// Save stores s and refreshes its last-seen time.
func (t *Tracker) Save(s Session) {
	s.LastSeen = t.now()
	t.mu.Lock()
	t.sessions[s.Key] = s
	t.mu.Unlock()
}

// Close deletes the session. It reports whether one existed.
func (t *Tracker) Close(viewerID, category string) bool {
	k := Key{ViewerID: viewerID, Category: category}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[k]
	delete(t.sessions, k)
	return ok
}

// EvictIdle removes sessions not touched within maxIdle and returns how many
// were removed.
func (t *Tracker) EvictIdle(maxIdle time.Duration) int {
	cutoff := t.now().Add(-maxIdle)
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, s := range t.sessions {
		if s.LastSeen.Before(cutoff) {
			delete(t.sessions, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
