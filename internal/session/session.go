package session

import (
	"sync"
	"time"

	"github.com/antoniostano/garagevoice/internal/booking"
)

// Exchange is one completed (user utterance, assistant reply) pair.
type Exchange struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	At        time.Time `json:"at"`
}

// Session is the per-connection conversational state. History and Booking are
// mutated only by the turn holding the session's single-flight lock; the
// accessors below exist for readers outside the turn pipeline (perf/debug).
type Session struct {
	ID        string
	CreatedAt time.Time

	// turnMu serializes turns: at most one turn may be in flight per session.
	turnMu sync.Mutex

	mu      sync.RWMutex
	history []Exchange
	booking booking.State
}

func newSession(id string) *Session {
	return &Session{ID: id, CreatedAt: time.Now().UTC()}
}

// BeginTurn blocks until this session's previous turn has finished.
func (s *Session) BeginTurn() { s.turnMu.Lock() }

// EndTurn releases the single-flight lock.
func (s *Session) EndTurn() { s.turnMu.Unlock() }

// AppendExchange records a completed turn in insertion order.
func (s *Session) AppendExchange(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Exchange{User: user, Assistant: assistant, At: time.Now().UTC()})
}

// History returns a copy of the accumulated exchanges.
func (s *Session) History() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Booking returns a copy of the collected slot state.
func (s *Session) Booking() booking.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.booking
}

// ObserveUtterance lets the booking state scan a confirmed transcript.
func (s *Session) ObserveUtterance(utterance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booking.Observe(utterance)
}

// PromptContext snapshots what the prompt builder needs in one lock hold.
func (s *Session) PromptContext() (booking.State, []booking.Exchange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]booking.Exchange, len(s.history))
	for i, ex := range s.history {
		history[i] = booking.Exchange{User: ex.User, Assistant: ex.Assistant}
	}
	return s.booking, history
}
