package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenRouterReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer or-key" {
			t.Errorf("auth = %q", auth)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Friday morning is open."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenRouter(OpenRouterConfig{APIKey: "or-key", BaseURL: srv.URL, Model: "test-model"})
	reply, err := o.Reply(context.Background(), "sys", "book me in")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != "Friday morning is open." {
		t.Fatalf("reply = %q", reply)
	}
}

func TestOpenRouterReplyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOpenRouter(OpenRouterConfig{BaseURL: srv.URL})
	if _, err := o.Reply(context.Background(), "sys", "hi"); err == nil {
		t.Fatalf("expected error")
	}
}
