package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/antoniostano/garagevoice/internal/booking"
	"github.com/antoniostano/garagevoice/internal/config"
	"github.com/antoniostano/garagevoice/internal/dialogue"
	"github.com/antoniostano/garagevoice/internal/httpapi"
	"github.com/antoniostano/garagevoice/internal/latency"
	"github.com/antoniostano/garagevoice/internal/llm"
	"github.com/antoniostano/garagevoice/internal/observability"
	"github.com/antoniostano/garagevoice/internal/recording"
	"github.com/antoniostano/garagevoice/internal/session"
	"github.com/antoniostano/garagevoice/internal/transcribe"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	recordings, err := recording.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("recording store init failed")
	}
	defer recordings.Close()
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("recording store: in-memory (no DATABASE_URL)")
	} else {
		logger.Info().Msg("recording store: postgres")
	}

	var transcriber transcribe.Transcriber
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		transcriber = transcribe.NewMock()
		logger.Info().Msg("transcriber: mock (no ELEVENLABS_API_KEY)")
	} else {
		transcriber = transcribe.NewElevenLabs(transcribe.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			ModelID: cfg.ElevenLabsSTTModel,
			Timeout: cfg.TranscribeTimeout,
		})
		logger.Info().Str("model", cfg.ElevenLabsSTTModel).Msg("transcriber: elevenlabs")
	}

	generator := pickGenerator(cfg, logger)

	stats, err := latency.OpenLog(cfg.StatsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stats log failed")
	}
	defer stats.Close()

	sessions := session.NewStore()
	calendar := booking.NewCalendar(cfg.CalendarOpenHour, cfg.CalendarCloseHour, cfg.CalendarSlotMinutes, cfg.CalendarDays)

	orchestrator := dialogue.NewOrchestrator(
		sessions,
		transcriber,
		generator,
		recordings,
		stats,
		metrics,
		calendar,
		dialogue.Options{
			Language:          cfg.TranscribeLanguage,
			TranscribeTimeout: cfg.TranscribeTimeout,
			GenerateTimeout:   cfg.GenerateTimeout,
		},
		logger,
	)

	api := httpapi.New(cfg, sessions, orchestrator, recordings, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
}

// pickGenerator resolves the reply backend. "auto" prefers Cohere, falls back
// to OpenRouter, and degrades to the mock when no key is configured so the
// service still comes up for local development.
func pickGenerator(cfg config.Config, logger zerolog.Logger) llm.Generator {
	newCohere := func() llm.Generator {
		return llm.NewCohere(llm.CohereConfig{
			APIKey:  cfg.CohereAPIKey,
			BaseURL: cfg.CohereBaseURL,
			Model:   cfg.CohereModel,
			Timeout: cfg.GenerateTimeout,
		})
	}
	newOpenRouter := func() llm.Generator {
		return llm.NewOpenRouter(llm.OpenRouterConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.OpenRouterModel,
			Timeout: cfg.GenerateTimeout,
		})
	}

	switch cfg.LLMProvider {
	case "cohere":
		if strings.TrimSpace(cfg.CohereAPIKey) == "" {
			logger.Fatal().Msg("LLM_PROVIDER=cohere but COHERE_API_KEY is not set")
		}
		logger.Info().Str("model", cfg.CohereModel).Msg("generator: cohere")
		return newCohere()
	case "openrouter":
		if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
			logger.Fatal().Msg("LLM_PROVIDER=openrouter but OPENROUTER_API_KEY is not set")
		}
		logger.Info().Str("model", cfg.OpenRouterModel).Msg("generator: openrouter")
		return newOpenRouter()
	case "mock":
		logger.Info().Msg("generator: mock")
		return llm.NewMock()
	default: // auto
		if strings.TrimSpace(cfg.CohereAPIKey) != "" {
			logger.Info().Str("model", cfg.CohereModel).Msg("generator: cohere")
			return newCohere()
		}
		if strings.TrimSpace(cfg.OpenRouterAPIKey) != "" {
			logger.Info().Str("model", cfg.OpenRouterModel).Msg("generator: openrouter")
			return newOpenRouter()
		}
		logger.Info().Msg("generator: mock (no provider key configured)")
		return llm.NewMock()
	}
}
