package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kratos/stepflow"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1717200000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": " calm and mild "},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 21, "completion_tokens": 4, "total_tokens": 25}
}`

func TestChatInvoke(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	chat := NewChat("gpt-4o-mini", Config{APIKey: "test-key", BaseURL: srv.URL, Temperature: 0.3})
	if chat.Name() != "gpt-4o-mini" {
		t.Fatalf("unexpected name %s", chat.Name())
	}
	msg, err := chat.Invoke(context.Background(), []*stepflow.Message{
		stepflow.SystemMessage("You forecast weather."),
		stepflow.UserMessage("Scotland, 2025-06-01"),
	}, stepflow.MaxOutputTokens(32))
	if err != nil {
		t.Fatalf("invoke error: %v", err)
	}
	if msg.Text != "calm and mild" || msg.Role != stepflow.RoleAssistant {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.FinishReason != "stop" || msg.Usage.InputTokens != 21 || msg.Usage.OutputTokens != 4 {
		t.Fatalf("unexpected metadata %+v", msg)
	}

	if got["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model in request: %v", got["model"])
	}
	if got["temperature"] != 0.3 {
		t.Fatalf("expected configured temperature, got %v", got["temperature"])
	}
	if got["max_completion_tokens"] != float64(32) {
		t.Fatalf("expected max tokens 32, got %v", got["max_completion_tokens"])
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %v", got["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("expected system role first, got %v", first["role"])
	}
}

func TestChatInvokeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	chat := NewChat("gpt-4o-mini", Config{APIKey: "bad", BaseURL: srv.URL})
	if _, err := chat.Invoke(context.Background(), nil); err != stepflow.ErrNoMessages {
		t.Fatalf("expected no messages error, got %v", err)
	}
	_, err := chat.Invoke(context.Background(), []*stepflow.Message{stepflow.UserMessage("hi")})
	if err == nil || !strings.Contains(err.Error(), "openai: chat completion") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestChoiceToMessageEmpty(t *testing.T) {
	if _, err := choiceToMessage(nil); err != stepflow.ErrEmptyResponse {
		t.Fatalf("expected empty response error, got %v", err)
	}
}
