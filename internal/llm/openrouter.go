package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterConfig configures the OpenRouter chat client. OpenRouter speaks
// the OpenAI chat-completions dialect, so the client is the OpenAI SDK
// pointed at the OpenRouter base URL.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OpenRouter struct {
	cfg    OpenRouterConfig
	client *openai.Client
}

func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "meta-llama/llama-3.1-8b-instruct"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenRouter{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

func (o *OpenRouter) Reply(ctx context.Context, systemPrompt, userText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	res, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openrouter chat: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("openrouter chat: no choices returned")
	}
	text := strings.TrimSpace(res.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openrouter chat: empty completion")
	}
	return text, nil
}
