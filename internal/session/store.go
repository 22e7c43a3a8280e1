package session

import (
	"errors"
	"sync"
)

// ErrNotFound reports a turn addressed to an evicted or unknown connection.
var ErrNotFound = errors.New("session not found")

// Store is the process-wide registry mapping connection ids to sessions.
// It is the only state shared across connection workers.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for the connection id, creating and
// registering it atomically if absent. Racing calls for the same id always
// observe the same *Session; exactly one object exists per id for its
// lifetime. The second return reports whether the session was created.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s, false
	}
	s = newSession(id)
	st.sessions[id] = s
	return s, true
}

// Get returns the session for the id or ErrNotFound. Turn processing uses Get
// so a stale event after disconnect cannot resurrect the session.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove evicts the session on disconnect. An in-flight turn keeps working on
// its own pointer and finishes; subsequent lookups fail with ErrNotFound.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len reports the number of registered sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
