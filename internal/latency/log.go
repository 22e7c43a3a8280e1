package latency

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Record is one line of the append-only metrics log. The conversion, vad and
// trim fields are always zero in this pipeline; they are kept so existing
// stats.jsonl consumers keep parsing without a schema migration.
type Record struct {
	Total      float64 `json:"total"`
	Conversion float64 `json:"conversion"`
	VAD        float64 `json:"vad"`
	Trim       float64 `json:"trim"`
	ASR        float64 `json:"asr"`
	LLM        float64 `json:"llm"`
	Timestamp  string  `json:"timestamp"`
}

// RecordFrom flattens a finalized TurnLatency into the log schema.
func RecordFrom(t TurnLatency) Record {
	return Record{
		Total:     t.TotalMS,
		ASR:       t.StageMS(StageASR),
		LLM:       t.StageMS(StageLLM),
		Timestamp: t.FinalizedAt.Format("2006-01-02 15:04:05"),
	}
}

// Log is an append-only newline-delimited JSON sink shared by all connection
// workers. Each record is written with a single Write call so concurrent
// appends never interleave within one line.
type Log struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// OpenLog opens (creating if needed) the JSONL file at path in append mode.
func OpenLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	return &Log{w: f, c: f}, nil
}

// NewLogWriter wraps an arbitrary writer; used by tests.
func NewLogWriter(w io.Writer) *Log {
	return &Log{w: w}
}

// Append serializes a finalized turn latency and appends it as one line.
func (l *Log) Append(t TurnLatency) error {
	data, err := json.Marshal(RecordFrom(t))
	if err != nil {
		return fmt.Errorf("marshal latency record: %w", err)
	}
	line := append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		return fmt.Errorf("append latency record: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}
