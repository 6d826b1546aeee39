package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/stepflow"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

var _ stepflow.ModelInvoker = (*Chat)(nil)

// Config holds configuration for an OpenAI-compatible chat model.
// Zero values fall back to the SDK defaults except for the API key,
// which is never read from the environment.
type Config struct {
	APIKey          string
	BaseURL         string
	MaxOutputTokens int64
	Temperature     float64
	MaxRetries      int
	RequestOptions  []option.RequestOption
}

// Chat implements stepflow.ModelInvoker for OpenAI-compatible chat completions.
type Chat struct {
	model  string
	config Config
	client openai.Client
}

// NewChat constructs a chat invoker for model.
func NewChat(model string, config Config) *Chat {
	opts := []option.RequestOption{option.WithMaxRetries(config.MaxRetries)}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	opts = append(opts, config.RequestOptions...)
	return &Chat{
		model:  model,
		config: config,
		client: openai.NewClient(opts...),
	}
}

// Name returns the model name.
func (c *Chat) Name() string {
	return c.model
}

// Invoke executes a non-streaming chat completion request.
func (c *Chat) Invoke(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
	if len(messages) == 0 {
		return nil, stepflow.ErrNoMessages
	}
	params, err := c.toChatCompletionParams(messages, stepflow.NewModelOptions(opts...))
	if err != nil {
		return nil, err
	}
	res, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	return choiceToMessage(res)
}

// toChatCompletionParams converts messages and options into OpenAI params.
// Request options override the configured defaults.
func (c *Chat) toChatCompletionParams(messages []*stepflow.Message, opt stepflow.ModelOptions) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	maxTokens, temperature := c.config.MaxOutputTokens, c.config.Temperature
	if opt.MaxOutputTokens > 0 {
		maxTokens = opt.MaxOutputTokens
	}
	if opt.Temperature > 0 {
		temperature = opt.Temperature
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(maxTokens)
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	if opt.TopP > 0 {
		params.TopP = openai.Float(opt.TopP)
	}
	for _, msg := range messages {
		switch msg.Role {
		case stepflow.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Text))
		case stepflow.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Text))
		case stepflow.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Text))
		default:
			return params, fmt.Errorf("openai: unsupported role %q", msg.Role)
		}
	}
	return params, nil
}

// choiceToMessage converts the first choice of a completion to a message.
func choiceToMessage(cc *openai.ChatCompletion) (*stepflow.Message, error) {
	if cc == nil || len(cc.Choices) == 0 {
		return nil, stepflow.ErrEmptyResponse
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("openai: model refused: %s", choice.Message.Refusal)
	}
	msg := stepflow.AssistantMessage(strings.TrimSpace(choice.Message.Content))
	msg.FinishReason = choice.FinishReason
	msg.Usage = stepflow.TokenUsage{
		InputTokens:  cc.Usage.PromptTokens,
		OutputTokens: cc.Usage.CompletionTokens,
	}
	return msg, nil
}
