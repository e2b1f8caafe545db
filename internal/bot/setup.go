package bot

import (
	"sync"
	"time"

	"cardmarket/internal/model"
)

// SetupKind is the multi-message flow an actor is in.
type SetupKind int

const (
	SetupSeller SetupKind = iota + 1
	SetupCard
)

// SetupStep is the input a flow is waiting for.
type SetupStep int

const (
	StepName SetupStep = iota + 1
	StepPostingChannel
	StepConfirmPostingChannel
	StepTrackingChannel
	StepConfirmTrackingChannel
	StepFrontImage
	StepBackImage
)

// Setup is one actor's in-progress flow.
type Setup struct {
	Kind SetupKind
	Step SetupStep

	SellerName       string
	PostingChannelID string
	Candidates       []Channel

	Card model.NewCard

	UpdatedAt time.Time
}

// SetupStore holds in-progress flows keyed by actor. An entry exists from the
// command that starts a flow until the flow completes or is cancelled.
type SetupStore struct {
	mu     sync.Mutex
	setups map[string]Setup
	now    func() time.Time
}

// NewSetupStore creates an empty store.
func NewSetupStore() *SetupStore {
	return &SetupStore{setups: make(map[string]Setup), now: time.Now}
}

// Get returns the actor's flow.
func (s *SetupStore) Get(actorID string) (Setup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.setups[actorID]
	return st, ok
}

// Save stores the actor's flow, replacing any previous one.
func (s *SetupStore) Save(actorID string, st Setup) {
	st.UpdatedAt = s.now()
	s.mu.Lock()
	s.setups[actorID] = st
	s.mu.Unlock()
}

// Delete ends the actor's flow. It reports whether one existed.
func (s *SetupStore) Delete(actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.setups[actorID]
	delete(s.setups, actorID)
	return ok
}

// EvictIdle drops flows not advanced within maxIdle.
func (s *SetupStore) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.setups {
		if st.UpdatedAt.Before(cutoff) {
			delete(s.setups, id)
			n++
		}
	}
	return n
}

// Len returns the number of flows in progress.
func (s *SetupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.setups)
}
