package recording

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Metadata
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Metadata)}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	s.records[meta.ConnectionID] = append(s.records[meta.ConnectionID], meta)
	return nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, connectionID string, limit int) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[connectionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Metadata, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
