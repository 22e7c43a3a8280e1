package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/garagevoice/internal/audio"
	"github.com/antoniostano/garagevoice/internal/booking"
	"github.com/antoniostano/garagevoice/internal/latency"
	"github.com/antoniostano/garagevoice/internal/llm"
	"github.com/antoniostano/garagevoice/internal/observability"
	"github.com/antoniostano/garagevoice/internal/protocol"
	"github.com/antoniostano/garagevoice/internal/recording"
	"github.com/antoniostano/garagevoice/internal/reliability"
	"github.com/antoniostano/garagevoice/internal/session"
	"github.com/antoniostano/garagevoice/internal/transcribe"
)

// Fixed user-facing strings. Generation failures degrade to FallbackReply so
// the caller always hears something once transcription has succeeded.
const (
	EmptySpeechUserText = "..."
	EmptySpeechReply    = "Sorry, I didn't catch that. Could you say it again?"
	FallbackReply       = "The system is a little busy right now. Could you repeat that in a moment?"
)

const recordingSaveTimeout = 2 * time.Second

// Options carries the orchestrator's tunables from config.
type Options struct {
	Language          string
	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
}

// Orchestrator drives the per-turn pipeline: transcription, session update,
// reply generation, response emission, with latency accounting at each stage.
type Orchestrator struct {
	sessions    *session.Store
	transcriber transcribe.Transcriber
	generator   llm.Generator
	recordings  recording.Store
	stats       *latency.Log
	metrics     *observability.Metrics
	calendar    *booking.Calendar
	opts        Options
	log         zerolog.Logger
}

func NewOrchestrator(
	sessions *session.Store,
	transcriber transcribe.Transcriber,
	generator llm.Generator,
	recordings recording.Store,
	stats *latency.Log,
	metrics *observability.Metrics,
	calendar *booking.Calendar,
	opts Options,
	logger zerolog.Logger,
) *Orchestrator {
	if opts.TranscribeTimeout <= 0 {
		opts.TranscribeTimeout = 20 * time.Second
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 30 * time.Second
	}
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = "en"
	}
	return &Orchestrator{
		sessions:    sessions,
		transcriber: transcriber,
		generator:   generator,
		recordings:  recordings,
		stats:       stats,
		metrics:     metrics,
		calendar:    calendar,
		opts:        opts,
		log:         logger.With().Str("component", "dialogue").Logger(),
	}
}

// RunConnection services one websocket connection: it acknowledges the
// connect, then processes inbound audio events strictly in arrival order.
// It returns when the inbound channel closes or the context is canceled.
func (o *Orchestrator) RunConnection(ctx context.Context, connID string, inbound <-chan any, outbound chan<- any) error {
	o.emit(ctx, outbound, protocol.Status{Type: protocol.TypeStatus, Message: "Connected to server"})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			audioMsg, ok := msg.(protocol.AudioData)
			if !ok {
				continue
			}
			if event, respond := o.HandleAudio(ctx, connID, audioMsg); respond {
				o.emit(ctx, outbound, event)
			}
		}
	}
}

// HandleAudio runs exactly one turn. It returns the single outbound event for
// the turn and whether anything should be sent at all (false only for the
// empty-input no-op). Failures are contained: whatever happens inside the
// turn, the worker survives and other sessions are unaffected.
func (o *Orchestrator) HandleAudio(ctx context.Context, connID string, msg protocol.AudioData) (event any, respond bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("conn", connID).Interface("panic", r).Msg("turn panicked")
			o.metrics.Turns.WithLabelValues(observability.OutcomeFailed).Inc()
			event = protocol.ErrorEvent{Type: protocol.TypeError, Message: fmt.Sprintf("internal error: %v", r)}
			respond = true
		}
	}()

	raw, err := msg.DecodeAudio()
	if err != nil {
		o.metrics.Turns.WithLabelValues(observability.OutcomeFailed).Inc()
		return protocol.ErrorEvent{Type: protocol.TypeError, Message: err.Error()}, true
	}
	if len(raw) == 0 {
		// No payload: drop silently, not an error.
		o.metrics.Turns.WithLabelValues(observability.OutcomeDropped).Inc()
		return nil, false
	}

	o.log.Debug().
		Str("conn", connID).
		Int("audio_bytes", len(raw)).
		Str("format", audio.DetectFormat(raw)).
		Msg("audio received")

	sess, err := o.sessions.Get(connID)
	if err != nil {
		o.metrics.Turns.WithLabelValues(observability.OutcomeFailed).Inc()
		return protocol.ErrorEvent{Type: protocol.TypeError, Message: "session not found"}, true
	}

	// Single-flight: a second turn for this session waits here until the
	// previous one has completed or failed.
	sess.BeginTurn()
	defer sess.EndTurn()

	rec := latency.NewRecorder()

	transcript, err := o.transcribeStage(ctx, rec, raw)
	if err != nil {
		class := reliability.ClassifyGatewayError(err)
		o.metrics.GatewayErrors.WithLabelValues("stt", class).Inc()
		o.metrics.Turns.WithLabelValues(observability.OutcomeTranscriptionFailed).Inc()
		o.log.Warn().
			Str("conn", connID).
			Str("class", class).
			Bool("retryable", reliability.IsRetryable(err)).
			Err(err).
			Msg("transcription failed")
		return protocol.ErrorEvent{Type: protocol.TypeError, Message: "transcription failed: " + err.Error()}, true
	}

	if strings.TrimSpace(transcript) == "" {
		// Heard nothing usable: friendly non-error reply, no history or
		// metrics mutation, generation never runs.
		o.metrics.Turns.WithLabelValues(observability.OutcomeEmptySpeech).Inc()
		return protocol.BotResponse{
			Type:     protocol.TypeBotResponse,
			UserText: EmptySpeechUserText,
			BotText:  EmptySpeechReply,
		}, true
	}

	reply := o.generateStage(ctx, rec, connID, sess, transcript)

	sess.AppendExchange(transcript, reply)
	sess.ObserveUtterance(transcript)

	snap := rec.Finalize()
	o.recordTurn(connID, transcript, reply, len(raw), snap)

	o.log.Info().
		Str("conn", connID).
		Float64("asr_ms", snap.StageMS(latency.StageASR)).
		Float64("llm_ms", snap.StageMS(latency.StageLLM)).
		Float64("total_ms", snap.TotalMS).
		Msg("turn completed")

	return protocol.BotResponse{
		Type:      protocol.TypeBotResponse,
		UserText:  transcript,
		BotText:   reply,
		LatencyMS: protocol.LatencyMS{Backend: int64(snap.TotalMS)},
	}, true
}

func (o *Orchestrator) transcribeStage(ctx context.Context, rec *latency.Recorder, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.TranscribeTimeout)
	defer cancel()

	rec.Start(latency.StageASR)
	defer rec.Stop(latency.StageASR)
	return o.transcriber.Transcribe(ctx, audio, o.opts.Language)
}

// generateStage never fails: any generator error is degraded to the fixed
// fallback reply so the turn still completes.
func (o *Orchestrator) generateStage(ctx context.Context, rec *latency.Recorder, connID string, sess *session.Session, transcript string) string {
	state, history := sess.PromptContext()
	prompt := booking.BuildSystemPrompt(state, history, o.calendar)

	genCtx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()

	rec.Start(latency.StageLLM)
	reply, err := o.generator.Reply(genCtx, prompt, transcript)
	rec.Stop(latency.StageLLM)
	if err != nil {
		class := reliability.ClassifyGatewayError(err)
		o.metrics.GatewayErrors.WithLabelValues("llm", class).Inc()
		o.metrics.GenerationFallbacks.Inc()
		o.log.Warn().
			Str("conn", connID).
			Str("class", class).
			Bool("retryable", reliability.IsRetryable(err)).
			Err(err).
			Msg("generation failed, using fallback reply")
		return FallbackReply
	}
	return reply
}

// recordTurn persists the latency record and recording metadata. Both sinks
// are best-effort: a sink failure is logged, never surfaced to the caller.
func (o *Orchestrator) recordTurn(connID, transcript, reply string, audioBytes int, snap latency.TurnLatency) {
	if o.stats != nil {
		if err := o.stats.Append(snap); err != nil {
			o.log.Error().Err(err).Msg("append latency record")
		}
	}

	o.metrics.Turns.WithLabelValues(observability.OutcomeCompleted).Inc()
	o.metrics.TurnLatency.Observe(snap.TotalMS)
	o.metrics.ObserveStage(latency.StageASR, snap.StageMS(latency.StageASR))
	o.metrics.ObserveStage(latency.StageLLM, snap.StageMS(latency.StageLLM))
	o.metrics.ObserveStage("total", snap.TotalMS)

	if o.recordings == nil {
		return
	}
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), recordingSaveTimeout)
		defer cancel()
		err := o.recordings.SaveTurn(saveCtx, recording.Metadata{
			ConnectionID: connID,
			Transcript:   transcript,
			Reply:        reply,
			AudioBytes:   audioBytes,
			ASRMillis:    snap.StageMS(latency.StageASR),
			LLMMillis:    snap.StageMS(latency.StageLLM),
			TotalMillis:  snap.TotalMS,
		})
		if err != nil {
			o.log.Error().Err(err).Msg("save recording metadata")
		}
	}()
}

func (o *Orchestrator) emit(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}
