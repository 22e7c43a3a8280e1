package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/garagevoice/internal/reliability"
)

// CohereConfig configures the Cohere chat client.
type CohereConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Cohere generates replies through the Cohere v2 chat endpoint.
type Cohere struct {
	cfg    CohereConfig
	client *http.Client
}

func NewCohere(cfg CohereConfig) *Cohere {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "command-r7b-12-2024"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Cohere{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereChatRequest struct {
	Model    string          `json:"model"`
	Messages []cohereMessage `json:"messages"`
}

type cohereChatResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

func (c *Cohere) Reply(ctx context.Context, systemPrompt, userText string) (string, error) {
	payload, err := json.Marshal(cohereChatRequest{
		Model: c.cfg.Model,
		Messages: []cohereMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v2/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("cohere chat: %w", &reliability.HTTPStatusError{
			Status: res.StatusCode,
			Body:   strings.TrimSpace(string(detail)),
		})
	}

	var out cohereChatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var b strings.Builder
	for _, part := range out.Message.Content {
		if part.Type == "" || part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("cohere chat: empty completion")
	}
	return text, nil
}
