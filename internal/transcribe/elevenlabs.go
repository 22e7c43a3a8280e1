package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/garagevoice/internal/reliability"
)

// ElevenLabsConfig configures the speech-to-text HTTP client.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// ElevenLabs calls the ElevenLabs speech-to-text endpoint. The audio bytes are
// uploaded exactly as captured (WebM container); no resampling or re-encoding
// happens on this side, which keeps a whole conversion stage out of the turn's
// critical path. Every request carries an explicit language code so the
// service never spends time on language detection.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "scribe_v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &ElevenLabs{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type sttResponse struct {
	Text string `json:"text"`
}

func (e *ElevenLabs) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("model_id", e.cfg.ModelID); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if strings.TrimSpace(language) != "" {
		if err := form.WriteField("language_code", language); err != nil {
			return "", fmt.Errorf("build form: %w", err)
		}
	}
	// The filename extension is how the API learns the container format.
	part, err := form.CreateFormFile("file", "audio.webm")
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/v1/speech-to-text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	res, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("speech-to-text: %w", &reliability.HTTPStatusError{
			Status: res.StatusCode,
			Body:   strings.TrimSpace(string(detail)),
		})
	}

	var out sttResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Text, nil
}
