package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/stepflow"
	"google.golang.org/genai"
)

var _ stepflow.ModelInvoker = (*Gemini)(nil)

// Gemini implements stepflow.ModelInvoker on the Gemini and Vertex AI APIs.
type Gemini struct {
	model  string
	config Config
	client *genai.Client
}

// NewModel creates a new Gemini invoker.
func NewModel(ctx context.Context, model string, config Config) (*Gemini, error) {
	cc, err := config.clientConfig()
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Gemini{
		model:  model,
		config: config,
		client: client,
	}, nil
}

// Name returns the name of the model.
func (m *Gemini) Name() string {
	return m.model
}

// Invoke generates content for messages.
func (m *Gemini) Invoke(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
	system, contents, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	config := m.toGenerateConfig(stepflow.NewModelOptions(opts...))
	config.SystemInstruction = system
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generating content: %w", err)
	}
	return convertResponse(resp)
}

func (m *Gemini) toGenerateConfig(opt stepflow.ModelOptions) *genai.GenerateContentConfig {
	var config genai.GenerateContentConfig
	temperature := m.config.Temperature
	if opt.Temperature > 0 {
		temperature = float32(opt.Temperature)
	}
	if temperature > 0 {
		config.Temperature = &temperature
	}
	if opt.TopP > 0 {
		topP := float32(opt.TopP)
		config.TopP = &topP
	}
	config.MaxOutputTokens = m.config.MaxOutputTokens
	if opt.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opt.MaxOutputTokens)
	}
	return &config
}

// convertMessages splits messages into a system instruction and contents.
// System messages are concatenated into a single instruction without a role.
func convertMessages(messages []*stepflow.Message) (*genai.Content, []*genai.Content, error) {
	var (
		system   []string
		contents = make([]*genai.Content, 0, len(messages))
	)
	for _, msg := range messages {
		switch msg.Role {
		case stepflow.RoleSystem:
			system = append(system, msg.Text)
		case stepflow.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case stepflow.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		default:
			return nil, nil, fmt.Errorf("gemini: unsupported role %q", msg.Role)
		}
	}
	if len(contents) == 0 {
		return nil, nil, stepflow.ErrNoMessages
	}
	var instruction *genai.Content
	if len(system) > 0 {
		instruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(strings.Join(system, "\n"))}}
	}
	return instruction, contents, nil
}

// convertResponse collects the non-thought text parts of the first candidate.
func convertResponse(resp *genai.GenerateContentResponse) (*stepflow.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, stepflow.ErrEmptyResponse
	}
	candidate := resp.Candidates[0]
	var buf strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		buf.WriteString(part.Text)
	}
	msg := stepflow.AssistantMessage(strings.TrimSpace(buf.String()))
	msg.FinishReason = string(candidate.FinishReason)
	if usage := resp.UsageMetadata; usage != nil {
		msg.Usage = stepflow.TokenUsage{
			InputTokens:  int64(usage.PromptTokenCount),
			OutputTokens: int64(usage.CandidatesTokenCount),
		}
	}
	return msg, nil
}
