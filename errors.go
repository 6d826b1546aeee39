package stepflow

import "errors"

var (
	// ErrEmptyResponse is returned when a model answers with no text.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrNoMessages is returned when an invocation carries no messages.
	ErrNoMessages = errors.New("no messages to send")
)
