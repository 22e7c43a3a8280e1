package latency

import (
	"fmt"
	"math"
	"time"
)

// Stage names used by the turn pipeline.
const (
	StageASR = "asr"
	StageLLM = "llm"
)

// TurnLatency is an immutable per-turn latency snapshot.
type TurnLatency struct {
	// Stages maps stage name to elapsed milliseconds.
	Stages map[string]float64
	// Order lists stage names in first-Start order.
	Order []string
	// TotalMS spans turn receipt to Finalize.
	TotalMS float64
	// FinalizedAt is the wall-clock time Finalize was called.
	FinalizedAt time.Time
}

// StageMS returns the recorded duration for a stage, zero if absent.
func (t TurnLatency) StageMS(stage string) float64 {
	return t.Stages[stage]
}

// Recorder accumulates named stage durations for a single turn.
// It is not safe for concurrent use; a turn is single-flight by design.
type Recorder struct {
	begin   time.Time
	started map[string]time.Time
	elapsed map[string]float64
	order   []string
	now     func() time.Time
}

// NewRecorder marks the receipt of the turn's audio.
func NewRecorder() *Recorder {
	return newRecorderAt(time.Now)
}

func newRecorderAt(now func() time.Time) *Recorder {
	return &Recorder{
		begin:   now(),
		started: make(map[string]time.Time),
		elapsed: make(map[string]float64),
		now:     now,
	}
}

// Start marks the begin time of a stage. Restarting a stage resets it.
func (r *Recorder) Start(stage string) {
	if _, seen := r.elapsed[stage]; !seen {
		if _, pending := r.started[stage]; !pending {
			r.order = append(r.order, stage)
		}
	}
	r.started[stage] = r.now()
}

// Stop records the elapsed time since Start for the stage. Stopping a stage
// that was never started is a programming error and panics so it cannot slip
// through as a silent zero measurement.
func (r *Recorder) Stop(stage string) {
	at, ok := r.started[stage]
	if !ok {
		panic(fmt.Sprintf("latency: Stop(%q) without Start", stage))
	}
	delete(r.started, stage)
	r.elapsed[stage] = round2(float64(r.now().Sub(at).Microseconds()) / 1000.0)
}

// Finalize computes the total and returns an immutable snapshot.
func (r *Recorder) Finalize() TurnLatency {
	now := r.now()
	stages := make(map[string]float64, len(r.elapsed))
	for k, v := range r.elapsed {
		stages[k] = v
	}
	order := make([]string, len(r.order))
	copy(order, r.order)
	return TurnLatency{
		Stages:      stages,
		Order:       order,
		TotalMS:     round2(float64(now.Sub(r.begin).Microseconds()) / 1000.0),
		FinalizedAt: now,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
