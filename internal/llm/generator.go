package llm

import (
	"context"
	"sync"
)

// Generator produces one assistant reply for the latest user utterance, given
// the booking system prompt. Any failure is reported as an error; the turn
// pipeline substitutes a fixed fallback reply rather than surfacing it.
type Generator interface {
	Reply(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Mock replays scripted replies; used in tests and keyless local runs.
type Mock struct {
	mu      sync.Mutex
	scripts []string
	next    int

	// Err, when set, is returned for every call.
	Err error
	// Fn, when set, overrides the scripted behavior entirely.
	Fn func(ctx context.Context, systemPrompt, userText string) (string, error)
}

func NewMock(scripts ...string) *Mock {
	return &Mock{scripts: scripts}
}

func (m *Mock) Reply(ctx context.Context, systemPrompt, userText string) (string, error) {
	if m.Fn != nil {
		return m.Fn(ctx, systemPrompt, userText)
	}
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scripts) == 0 {
		return "What day works best for you?", nil
	}
	s := m.scripts[m.next%len(m.scripts)]
	m.next++
	return s, nil
}
