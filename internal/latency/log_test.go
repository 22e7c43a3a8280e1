package latency

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogAppendSchema(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogWriter(&buf)

	snap := TurnLatency{
		Stages:      map[string]float64{StageASR: 101.5, StageLLM: 350.25},
		TotalMS:     470.75,
		FinalizedAt: time.Date(2026, 8, 28, 9, 30, 12, 0, time.UTC),
	}
	if err := l.Append(snap); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	var rec Record
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.ASR != 101.5 || rec.LLM != 350.25 || rec.Total != 470.75 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Conversion != 0 || rec.VAD != 0 || rec.Trim != 0 {
		t.Fatalf("reserved fields must be zero: %+v", rec)
	}
	if rec.Timestamp != "2026-08-28 09:30:12" {
		t.Fatalf("timestamp = %q", rec.Timestamp)
	}
}

func TestLogConcurrentAppendsKeepLinesIntact(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	l := NewLogWriter(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := TurnLatency{
				Stages:      map[string]float64{StageASR: 1, StageLLM: 2},
				TotalMS:     3,
				FinalizedAt: time.Now(),
			}
			if err := l.Append(snap); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}()
	}
	wg.Wait()

	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	lines := 0
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != n {
		t.Fatalf("lines = %d, want %d", lines, n)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
