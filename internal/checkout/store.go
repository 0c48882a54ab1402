package checkout

import (
	"sync"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
)

var ErrSessionNotFound = domain.NotFound("checkout.session", "Checkout session not found. Please start checkout again.")

// Store keeps checkout sessions in process memory. Sessions are lost on restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put stores s, replacing any session with the same ID.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns the session owned by ownerID.
// A session belonging to someone else is reported as not found.
func (st *Store) Get(id, ownerID string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok || s.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Expire removes sessions idle since before cutoff and returns how many it dropped.
// Sessions held by a running placement are kept.
func (st *Store) Expire(cutoff time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, s := range st.sessions {
		if s.Busy() || !s.IdleSince().Before(cutoff) {
			continue
		}
		delete(st.sessions, id)
		n++
	}
	return n
}
