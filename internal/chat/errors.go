package chat

import "errors"

var (
	// ErrDisabled is returned when the chat backend is not configured.
	ErrDisabled = errors.New("chat: backend disabled")

	// ErrEmptyMessage is returned when the user message is blank.
	ErrEmptyMessage = errors.New("chat: message is required")

	// ErrBackend is returned when the LLM backend call fails.
	ErrBackend = errors.New("chat: backend request failed")
)
