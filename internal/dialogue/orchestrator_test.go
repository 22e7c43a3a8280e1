package dialogue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/antoniostano/garagevoice/internal/latency"
	"github.com/antoniostano/garagevoice/internal/llm"
	"github.com/antoniostano/garagevoice/internal/observability"
	"github.com/antoniostano/garagevoice/internal/protocol"
	"github.com/antoniostano/garagevoice/internal/recording"
	"github.com/antoniostano/garagevoice/internal/session"
	"github.com/antoniostano/garagevoice/internal/transcribe"
)

type fixture struct {
	orch     *Orchestrator
	sessions *session.Store
	stt      *transcribe.Mock
	gen      *llm.Mock
	stats    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var stats bytes.Buffer
	f := &fixture{
		sessions: session.NewStore(),
		stt:      transcribe.NewMock(),
		gen:      llm.NewMock(),
		stats:    &stats,
	}
	f.orch = NewOrchestrator(
		f.sessions,
		f.stt,
		f.gen,
		recording.NewInMemoryStore(),
		latency.NewLogWriter(&stats),
		observability.NewMetricsWith("test", prometheus.NewRegistry()),
		nil,
		Options{Language: "en"},
		zerolog.Nop(),
	)
	return f
}

func audioEvent(payload string) protocol.AudioData {
	return protocol.AudioData{
		Type:  protocol.TypeAudioData,
		Audio: base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

func (f *fixture) statsRecords(t *testing.T) []latency.Record {
	t.Helper()
	var out []latency.Record
	sc := bufio.NewScanner(strings.NewReader(f.stats.String()))
	for sc.Scan() {
		var rec latency.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("stats line not valid JSON: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestTurnSuccessEmitsResponseAndMetricsRecord(t *testing.T) {
	f := newFixture(t)
	f.stt.Fn = func(context.Context, []byte, string) (string, error) { return "book an oil change", nil }
	f.gen.Fn = func(context.Context, string, string) (string, error) { return "Sure, what day?", nil }
	f.sessions.GetOrCreate("conn-1")

	event, respond := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	if !respond {
		t.Fatalf("expected a response")
	}
	res, ok := event.(protocol.BotResponse)
	if !ok {
		t.Fatalf("event type = %T, want BotResponse", event)
	}
	if res.UserText != "book an oil change" || res.BotText != "Sure, what day?" {
		t.Fatalf("response = %+v", res)
	}

	recs := f.statsRecords(t)
	if len(recs) != 1 {
		t.Fatalf("metrics records = %d, want 1", len(recs))
	}
	if recs[0].ASR < 0 || recs[0].LLM < 0 {
		t.Fatalf("negative stage latency: %+v", recs[0])
	}
	if recs[0].Total < recs[0].ASR+recs[0].LLM {
		t.Fatalf("total %v < asr+llm %v", recs[0].Total, recs[0].ASR+recs[0].LLM)
	}
	if recs[0].Conversion != 0 || recs[0].VAD != 0 || recs[0].Trim != 0 {
		t.Fatalf("reserved fields must stay zero: %+v", recs[0])
	}
}

func TestEmptySpeechRespondsWithoutHistoryOrMetrics(t *testing.T) {
	f := newFixture(t)
	f.stt.Fn = func(context.Context, []byte, string) (string, error) { return "   ", nil }
	sess, _ := f.sessions.GetOrCreate("conn-1")

	event, respond := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	if !respond {
		t.Fatalf("expected a response")
	}
	res := event.(protocol.BotResponse)
	if res.UserText != EmptySpeechUserText {
		t.Fatalf("UserText = %q, want %q", res.UserText, EmptySpeechUserText)
	}
	if res.BotText != EmptySpeechReply {
		t.Fatalf("BotText = %q, want %q", res.BotText, EmptySpeechReply)
	}
	if len(f.statsRecords(t)) != 0 {
		t.Fatalf("no metrics record should be appended for empty speech")
	}
	if len(sess.History()) != 0 {
		t.Fatalf("history should be unchanged")
	}
}

func TestGenerationFailureFallsBackAndAppendsHistory(t *testing.T) {
	f := newFixture(t)
	f.stt.Fn = func(context.Context, []byte, string) (string, error) { return "anyone there", nil }
	f.gen.Err = errors.New("model overloaded")
	sess, _ := f.sessions.GetOrCreate("conn-1")

	event, _ := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	res, ok := event.(protocol.BotResponse)
	if !ok {
		t.Fatalf("event type = %T, want BotResponse", event)
	}
	if res.BotText != FallbackReply {
		t.Fatalf("BotText = %q, want fallback", res.BotText)
	}

	h := sess.History()
	if len(h) != 1 || h[0].User != "anyone there" || h[0].Assistant != FallbackReply {
		t.Fatalf("history = %+v", h)
	}
	if len(f.statsRecords(t)) != 1 {
		t.Fatalf("a fallback turn still appends its metrics record")
	}
}

func TestTranscriptionFailureSurfacesError(t *testing.T) {
	f := newFixture(t)
	f.stt.Err = errors.New("stt unreachable")
	sess, _ := f.sessions.GetOrCreate("conn-1")

	event, respond := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	if !respond {
		t.Fatalf("expected an error event")
	}
	errEvent, ok := event.(protocol.ErrorEvent)
	if !ok {
		t.Fatalf("event type = %T, want ErrorEvent", event)
	}
	if !strings.Contains(errEvent.Message, "transcription failed") {
		t.Fatalf("message = %q", errEvent.Message)
	}
	if len(sess.History()) != 0 {
		t.Fatalf("history must not change on transcription failure")
	}
	if len(f.statsRecords(t)) != 0 {
		t.Fatalf("no metrics record on transcription failure")
	}
}

func TestEmptyInputIsSilentlyDropped(t *testing.T) {
	f := newFixture(t)
	f.sessions.GetOrCreate("conn-1")

	event, respond := f.orch.HandleAudio(context.Background(), "conn-1", protocol.AudioData{Type: protocol.TypeAudioData})
	if respond || event != nil {
		t.Fatalf("empty audio must produce no outbound event, got %+v", event)
	}
}

func TestHistoryAccumulatesAcrossTurns(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.stt.Fn = func(context.Context, []byte, string) (string, error) {
		calls++
		return fmt.Sprintf("utterance %d", calls), nil
	}
	f.gen.Fn = func(_ context.Context, _, user string) (string, error) {
		return "re: " + user, nil
	}
	sess, _ := f.sessions.GetOrCreate("conn-1")

	for i := 0; i < 2; i++ {
		if _, respond := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm")); !respond {
			t.Fatalf("turn %d produced no response", i+1)
		}
	}

	h := sess.History()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].User != "utterance 1" || h[1].User != "utterance 2" {
		t.Fatalf("history out of call order: %+v", h)
	}
	if h[1].Assistant != "re: utterance 2" {
		t.Fatalf("assistant reply = %q", h[1].Assistant)
	}
}

func TestConcurrentSessionsDoNotLeak(t *testing.T) {
	f := newFixture(t)
	f.stt.Fn = func(_ context.Context, audio []byte, _ string) (string, error) {
		return "transcript for " + string(audio), nil
	}
	f.gen.Fn = func(_ context.Context, _, user string) (string, error) {
		return "reply to " + user, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]protocol.BotResponse, n)
	for i := 0; i < n; i++ {
		connID := fmt.Sprintf("conn-%d", i)
		f.sessions.GetOrCreate(connID)
		wg.Add(1)
		go func(i int, connID string) {
			defer wg.Done()
			event, respond := f.orch.HandleAudio(context.Background(), connID, audioEvent(connID))
			if !respond {
				t.Errorf("conn %s got no response", connID)
				return
			}
			results[i] = event.(protocol.BotResponse)
		}(i, connID)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		want := fmt.Sprintf("transcript for conn-%d", i)
		if results[i].UserText != want {
			t.Fatalf("conn-%d UserText = %q, want %q", i, results[i].UserText, want)
		}
		if results[i].BotText != "reply to "+want {
			t.Fatalf("conn-%d BotText = %q", i, results[i].BotText)
		}
	}
}

func TestTurnAfterDisconnectDoesNotRecreateSession(t *testing.T) {
	f := newFixture(t)
	f.sessions.GetOrCreate("conn-1")
	f.sessions.Remove("conn-1")

	event, respond := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	if !respond {
		t.Fatalf("expected an error event")
	}
	if _, ok := event.(protocol.ErrorEvent); !ok {
		t.Fatalf("event type = %T, want ErrorEvent", event)
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("stale turn must not recreate the session")
	}
}

func TestPanicInGatewayIsContained(t *testing.T) {
	f := newFixture(t)
	f.stt.Fn = func(context.Context, []byte, string) (string, error) { return "hello", nil }
	f.gen.Fn = func(context.Context, string, string) (string, error) { panic("generator exploded") }
	f.sessions.GetOrCreate("conn-1")

	event, respond := f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	if !respond {
		t.Fatalf("expected an error event")
	}
	errEvent, ok := event.(protocol.ErrorEvent)
	if !ok {
		t.Fatalf("event type = %T, want ErrorEvent", event)
	}
	if !strings.Contains(errEvent.Message, "internal error") {
		t.Fatalf("message = %q", errEvent.Message)
	}

	// The worker survives: the next turn on the same session still runs.
	f.gen.Fn = func(context.Context, string, string) (string, error) { return "recovered", nil }
	event, _ = f.orch.HandleAudio(context.Background(), "conn-1", audioEvent("webm"))
	if res, ok := event.(protocol.BotResponse); !ok || res.BotText != "recovered" {
		t.Fatalf("follow-up turn failed: %+v", event)
	}
}

func TestRunConnectionAcknowledgesAndResponds(t *testing.T) {
	f := newFixture(t)
	f.stt.Fn = func(context.Context, []byte, string) (string, error) { return "hi", nil }
	f.gen.Fn = func(context.Context, string, string) (string, error) { return "hello there", nil }
	f.sessions.GetOrCreate("conn-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inbound := make(chan any, 4)
	outbound := make(chan any, 4)
	done := make(chan error, 1)
	go func() {
		done <- f.orch.RunConnection(ctx, "conn-1", inbound, outbound)
	}()

	status := (<-outbound).(protocol.Status)
	if status.Type != protocol.TypeStatus || status.Message == "" {
		t.Fatalf("status ack = %+v", status)
	}

	inbound <- audioEvent("webm")
	res := (<-outbound).(protocol.BotResponse)
	if res.UserText != "hi" || res.BotText != "hello there" {
		t.Fatalf("response = %+v", res)
	}

	close(inbound)
	if err := <-done; err != nil {
		t.Fatalf("RunConnection() error = %v", err)
	}
}
