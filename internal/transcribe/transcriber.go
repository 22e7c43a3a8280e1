package transcribe

import (
	"context"
	"sync"
)

// Transcriber converts a raw audio blob into text. An empty transcript with a
// nil error means the service heard no speech.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// Mock replays scripted transcripts; used in tests and keyless local runs.
type Mock struct {
	mu      sync.Mutex
	scripts []string
	next    int

	// Err, when set, is returned for every call.
	Err error
	// Fn, when set, overrides the scripted behavior entirely.
	Fn func(ctx context.Context, audio []byte, language string) (string, error)
}

func NewMock(scripts ...string) *Mock {
	return &Mock{scripts: scripts}
}

func (m *Mock) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if m.Fn != nil {
		return m.Fn(ctx, audio, language)
	}
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scripts) == 0 {
		return "hello", nil
	}
	s := m.scripts[m.next%len(m.scripts)]
	m.next++
	return s, nil
}
