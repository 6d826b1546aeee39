package stepflow

import "strings"

// Role indicates who authored a message.
type Role string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleUser carries the request.
	RoleUser Role = "user"
	// RoleAssistant carries a model response.
	RoleAssistant Role = "assistant"
)

// TokenUsage reports the tokens consumed by a single invocation.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// Message is a single role-tagged text message.
type Message struct {
	Role         Role       `json:"role"`
	Text         string     `json:"text"`
	FinishReason string     `json:"finishReason,omitempty"`
	Usage        TokenUsage `json:"usage"`
}

// String returns the message text.
func (m *Message) String() string {
	if m == nil {
		return ""
	}
	return m.Text
}

// SystemMessage creates a system message from the given text parts.
func SystemMessage(parts ...string) *Message {
	return &Message{Role: RoleSystem, Text: strings.Join(parts, "\n")}
}

// UserMessage creates a user message from the given text parts.
func UserMessage(parts ...string) *Message {
	return &Message{Role: RoleUser, Text: strings.Join(parts, "\n")}
}

// AssistantMessage creates an assistant message from the given text parts.
func AssistantMessage(parts ...string) *Message {
	return &Message{Role: RoleAssistant, Text: strings.Join(parts, "\n")}
}
