package chat

import (
	"sync"
	"time"
)

// DefaultHistoryWindow is how many trailing exchanges accompany each
// backend request.
const DefaultHistoryWindow = 5

// maxStoredExchanges bounds the in-memory transcript.
const maxStoredExchanges = 100

// History is an in-memory conversation transcript. Safe for concurrent
// use.
type History struct {
	mu        sync.Mutex
	exchanges []Exchange
	window    int
}

// NewHistory creates a transcript with the given trailing window size.
// A non-positive window falls back to DefaultHistoryWindow.
func NewHistory(window int) *History {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &History{window: window}
}

// Append records one completed exchange.
func (h *History) Append(userMessage, assistantResponse string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, Exchange{
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		Timestamp:         time.Now().UTC(),
	})
	if len(h.exchanges) > maxStoredExchanges {
		h.exchanges = h.exchanges[len(h.exchanges)-maxStoredExchanges:]
	}
}

// Window returns the trailing exchanges flattened into messages, oldest
// first, ready to splice into a backend request.
func (h *History) Window() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := 0
	if len(h.exchanges) > h.window {
		start = len(h.exchanges) - h.window
	}
	var messages []Message
	for _, ex := range h.exchanges[start:] {
		messages = append(messages,
			Message{Role: RoleUser, Content: ex.UserMessage},
			Message{Role: RoleAssistant, Content: ex.AssistantResponse})
	}
	return messages
}

// All returns a copy of the full stored transcript, oldest first.
func (h *History) All() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Exchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

// Clear drops the transcript.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = nil
}
