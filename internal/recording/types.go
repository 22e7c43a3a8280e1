package recording

import (
	"context"
	"time"
)

// Metadata describes one processed turn for offline analysis. The raw audio
// itself is not retained, only its size.
type Metadata struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Transcript   string    `json:"transcript"`
	Reply        string    `json:"reply"`
	AudioBytes   int       `json:"audio_bytes"`
	ASRMillis    float64   `json:"asr_ms"`
	LLMMillis    float64   `json:"llm_ms"`
	TotalMillis  float64   `json:"total_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists and retrieves turn recording metadata.
type Store interface {
	SaveTurn(ctx context.Context, meta Metadata) error
	RecentTurns(ctx context.Context, connectionID string, limit int) ([]Metadata, error)
	Close() error
}
