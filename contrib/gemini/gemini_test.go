package gemini

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-kratos/stepflow"
	"google.golang.org/genai"
)

func TestConvertMessages(t *testing.T) {
	system, contents, err := convertMessages([]*stepflow.Message{
		stepflow.SystemMessage("You forecast weather."),
		stepflow.SystemMessage("Answer in three words."),
		stepflow.UserMessage("Scotland"),
		stepflow.AssistantMessage("calm"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system == nil || len(system.Parts) != 1 {
		t.Fatalf("expected single system instruction, got %+v", system)
	}
	if got := system.Parts[0].Text; got != "You forecast weather.\nAnswer in three words." {
		t.Fatalf("unexpected system instruction %q", got)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) || contents[1].Role != string(genai.RoleModel) {
		t.Fatalf("unexpected roles %s, %s", contents[0].Role, contents[1].Role)
	}

	if _, _, err := convertMessages([]*stepflow.Message{stepflow.SystemMessage("x")}); !errors.Is(err, stepflow.ErrNoMessages) {
		t.Fatalf("expected no messages error, got %v", err)
	}
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: " calm and mild "},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 3},
	}
	msg, err := convertResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "calm and mild" || msg.FinishReason != "STOP" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Usage.InputTokens != 12 || msg.Usage.OutputTokens != 3 {
		t.Fatalf("unexpected usage %+v", msg.Usage)
	}

	if _, err := convertResponse(&genai.GenerateContentResponse{}); !errors.Is(err, stepflow.ErrEmptyResponse) {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "genai", config: Config{APIKey: "k"}},
		{name: "genai without key", config: Config{Backend: BackendGenAI}, wantErr: "api key"},
		{name: "vertex", config: Config{Backend: BackendVertexAI, Project: "p", Location: "europe-west2"}},
		{name: "vertex without project", config: Config{Backend: BackendVertexAI}, wantErr: "project and location"},
		{name: "unknown", config: Config{Backend: "bedrock"}, wantErr: "unknown backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerateConfig(t *testing.T) {
	m := &Gemini{model: "gemini-2.5-flash", config: Config{Temperature: 0.4, MaxOutputTokens: 128}}
	config := m.toGenerateConfig(stepflow.NewModelOptions(stepflow.MaxOutputTokens(32)))
	if config.Temperature == nil || *config.Temperature != float32(0.4) {
		t.Fatalf("expected configured temperature, got %v", config.Temperature)
	}
	if config.MaxOutputTokens != 32 {
		t.Fatalf("expected request max tokens, got %d", config.MaxOutputTokens)
	}
}
