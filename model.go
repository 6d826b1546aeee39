package stepflow

import (
	"context"
	"strings"
)

// ModelOption configures a single request. Invokers may ignore options
// they do not support.
type ModelOption func(*ModelOptions)

// ModelOptions holds common request-time controls.
type ModelOptions struct {
	MaxOutputTokens int64
	Temperature     float64
	TopP            float64
}

// NewModelOptions applies opts over the zero options.
func NewModelOptions(opts ...ModelOption) ModelOptions {
	o := ModelOptions{}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// ModelInvoker turns a role-tagged list of messages into a single response.
// Implementations are configured explicitly when they are constructed and
// must not depend on process-wide state.
type ModelInvoker interface {
	// Name returns the model name, used for logging and tracing.
	Name() string
	// Invoke sends messages to the model and returns the assistant response.
	Invoke(context.Context, []*Message, ...ModelOption) (*Message, error)
}

// InvokerFunc adapts a function to the ModelInvoker interface.
type InvokerFunc func(context.Context, []*Message, ...ModelOption) (*Message, error)

// Name returns a fixed name for function invokers.
func (f InvokerFunc) Name() string {
	return "func"
}

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, messages []*Message, opts ...ModelOption) (*Message, error) {
	return f(ctx, messages, opts...)
}

// Generate invokes the model and returns the trimmed response text.
// An empty response is reported as ErrEmptyResponse.
func Generate(ctx context.Context, invoker ModelInvoker, messages []*Message, opts ...ModelOption) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}
	res, err := invoker.Invoke(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

type staticInvoker struct {
	name string
	text string
}

// StaticInvoker returns an invoker that always answers with text.
// It is used for offline runs and tests.
func StaticInvoker(name, text string) ModelInvoker {
	return &staticInvoker{name: name, text: text}
}

func (s *staticInvoker) Name() string {
	return s.name
}

func (s *staticInvoker) Invoke(ctx context.Context, messages []*Message, opts ...ModelOption) (*Message, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	msg := AssistantMessage(s.text)
	msg.FinishReason = "stop"
	return msg, nil
}
