package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the booking voice service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	ElevenLabsAPIKey   string
	ElevenLabsBaseURL  string
	ElevenLabsSTTModel string
	// TranscribeLanguage is sent with every request so the STT service never
	// spends time on language detection.
	TranscribeLanguage string
	TranscribeTimeout  time.Duration

	LLMProvider       string
	CohereAPIKey      string
	CohereBaseURL     string
	CohereModel       string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string
	GenerateTimeout   time.Duration

	StatsPath   string
	DatabaseURL string

	CalendarOpenHour    int
	CalendarCloseHour   int
	CalendarSlotMinutes int
	CalendarDays        int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":5001"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "garagevoice"),
		AllowAnyOrigin:     false,
		ElevenLabsAPIKey:   envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:  envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsSTTModel: envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v2"),
		TranscribeLanguage: envOrDefault("TRANSCRIBE_LANGUAGE", "en"),
		LLMProvider:        strings.ToLower(envOrDefault("LLM_PROVIDER", "auto")),
		CohereAPIKey:       envTrimmed("COHERE_API_KEY"),
		CohereBaseURL:      envOrDefault("COHERE_BASE_URL", "https://api.cohere.com"),
		CohereModel:        envOrDefault("COHERE_MODEL", "command-r7b-12-2024"),
		OpenRouterAPIKey:   envTrimmed("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:  envOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:    envOrDefault("OPENROUTER_MODEL", "meta-llama/llama-3.1-8b-instruct"),
		StatsPath:          envOrDefault("APP_STATS_PATH", "stats.jsonl"),
		DatabaseURL:        envTrimmed("DATABASE_URL"),
		ShutdownTimeout:    15 * time.Second,
		TranscribeTimeout:  20 * time.Second,
		GenerateTimeout:    30 * time.Second,

		CalendarOpenHour:    8,
		CalendarCloseHour:   18,
		CalendarSlotMinutes: 60,
		CalendarDays:        7,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeTimeout, err = durationFromEnv("APP_TRANSCRIBE_TIMEOUT", cfg.TranscribeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTimeout, err = durationFromEnv("APP_GENERATE_TIMEOUT", cfg.GenerateTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarOpenHour, err = intFromEnv("APP_CALENDAR_OPEN_HOUR", cfg.CalendarOpenHour)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarCloseHour, err = intFromEnv("APP_CALENDAR_CLOSE_HOUR", cfg.CalendarCloseHour)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarSlotMinutes, err = intFromEnv("APP_CALENDAR_SLOT_MINUTES", cfg.CalendarSlotMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarDays, err = intFromEnv("APP_CALENDAR_DAYS", cfg.CalendarDays)
	if err != nil {
		return Config{}, err
	}

	switch cfg.LLMProvider {
	case "auto", "cohere", "openrouter", "mock":
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER must be one of auto|cohere|openrouter|mock, got %q", cfg.LLMProvider)
	}
	if cfg.TranscribeTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_TRANSCRIBE_TIMEOUT must be at least 1s")
	}
	if cfg.GenerateTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_GENERATE_TIMEOUT must be at least 1s")
	}
	if strings.TrimSpace(cfg.TranscribeLanguage) == "" {
		return Config{}, fmt.Errorf("TRANSCRIBE_LANGUAGE must not be empty")
	}
	if strings.TrimSpace(cfg.StatsPath) == "" {
		return Config{}, fmt.Errorf("APP_STATS_PATH must not be empty")
	}
	if cfg.CalendarOpenHour < 0 || cfg.CalendarCloseHour > 24 || cfg.CalendarCloseHour <= cfg.CalendarOpenHour {
		return Config{}, fmt.Errorf("calendar hours must satisfy 0 <= open < close <= 24")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
