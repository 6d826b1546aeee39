package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-kratos/stepflow"
)

// defaultMaxTokens is used when no output limit is configured; the Messages
// API requires one.
const defaultMaxTokens = 1024

var _ stepflow.ModelInvoker = (*Claude)(nil)

// Config holds configuration options for the Claude client.
type Config struct {
	BaseURL         string
	APIKey          string
	MaxOutputTokens int64
	Temperature     float64
	MaxRetries      int
	RequestOptions  []option.RequestOption
}

// Claude implements stepflow.ModelInvoker on the Anthropic Messages API.
type Claude struct {
	model  string
	config Config
	client anthropic.Client
}

// NewModel creates a new Claude invoker with the given model name and configuration.
func NewModel(model string, config Config) *Claude {
	opts := []option.RequestOption{option.WithMaxRetries(config.MaxRetries)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	opts = append(opts, config.RequestOptions...)
	return &Claude{
		model:  model,
		config: config,
		client: anthropic.NewClient(opts...),
	}
}

// Name returns the name of the Claude model.
func (m *Claude) Name() string {
	return m.model
}

// Invoke sends messages to the Messages API and returns the assistant text.
func (m *Claude) Invoke(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
	if len(messages) == 0 {
		return nil, stepflow.ErrNoMessages
	}
	params, err := m.toClaudeParams(messages, stepflow.NewModelOptions(opts...))
	if err != nil {
		return nil, fmt.Errorf("anthropic: converting request: %w", err)
	}
	message, err := m.client.Messages.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: generating content: %w", err)
	}
	return convertClaudeMessage(message)
}

// toClaudeParams converts messages and options to Claude MessageNewParams.
// System messages are joined into the system prompt.
func (m *Claude) toClaudeParams(messages []*stepflow.Message, opt stepflow.ModelOptions) (*anthropic.MessageNewParams, error) {
	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: defaultMaxTokens,
	}
	if m.config.MaxOutputTokens > 0 {
		params.MaxTokens = m.config.MaxOutputTokens
	}
	if opt.MaxOutputTokens > 0 {
		params.MaxTokens = opt.MaxOutputTokens
	}
	temperature := m.config.Temperature
	if opt.Temperature > 0 {
		temperature = opt.Temperature
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}
	if opt.TopP > 0 {
		params.TopP = anthropic.Float(opt.TopP)
	}
	for _, msg := range messages {
		switch msg.Role {
		case stepflow.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Text})
		case stepflow.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case stepflow.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		default:
			return nil, fmt.Errorf("unsupported role %q", msg.Role)
		}
	}
	if len(params.Messages) == 0 {
		return nil, stepflow.ErrNoMessages
	}
	return params, nil
}

// convertClaudeMessage collects the text blocks of a Claude message.
func convertClaudeMessage(message *anthropic.Message) (*stepflow.Message, error) {
	if message == nil {
		return nil, stepflow.ErrEmptyResponse
	}
	var texts []string
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			texts = append(texts, b.Text)
		}
	}
	msg := stepflow.AssistantMessage(strings.TrimSpace(strings.Join(texts, "")))
	msg.FinishReason = string(message.StopReason)
	msg.Usage = stepflow.TokenUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	return msg, nil
}
