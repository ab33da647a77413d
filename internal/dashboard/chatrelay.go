package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/jmorrell/homedeck/internal/chat"
)

// ErrEmptyMessage is returned for a blank chat input.
var ErrEmptyMessage = errors.New("dashboard: message is empty")

// chatWindow is the number of trailing exchanges sent as context.
const chatWindow = 5

// ChatAPI is the slice of the API client the relay needs.
type ChatAPI interface {
	Chat(ctx context.Context, message string, history []chat.Message) (*chat.Reply, error)
}

// DeviceCache is the slice of the store the relay mutates.
type DeviceCache interface {
	ApplyConfirmed(deviceID, property string, value any)
}

// Relay forwards natural-language commands to the server's chat endpoint
// and folds confirmed device mutations back into the local cache.
//
// The server already executed every action it returns; the relay never
// re-issues control calls, it only mirrors results with success=true.
type Relay struct {
	api   ChatAPI
	cache DeviceCache

	mu        sync.Mutex
	exchanges []chat.Exchange
}

// NewRelay creates a chat relay over the given API client and cache.
func NewRelay(api ChatAPI, cache DeviceCache) *Relay {
	return &Relay{api: api, cache: cache}
}

// Send relays one message with the trailing five exchanges as context.
func (r *Relay) Send(ctx context.Context, message string) (*chat.Reply, error) {
	if message == "" {
		return nil, ErrEmptyMessage
	}

	reply, err := r.api.Chat(ctx, message, r.historyMessages())
	if err != nil {
		return nil, err
	}

	// Mirror successful server-side mutations into the local cache.
	for _, result := range reply.ExecutionResults {
		if !result.Success || result.DeviceID == "" || result.Property == "" {
			continue
		}
		if r.cache != nil {
			r.cache.ApplyConfirmed(result.DeviceID, result.Property, result.Value)
		}
	}

	r.mu.Lock()
	r.exchanges = append(r.exchanges, chat.Exchange{
		UserMessage:       message,
		AssistantResponse: reply.Response,
		Timestamp:         reply.Timestamp,
	})
	if len(r.exchanges) > chatWindow {
		r.exchanges = r.exchanges[len(r.exchanges)-chatWindow:]
	}
	r.mu.Unlock()

	return reply, nil
}

// History returns the locally retained exchanges, oldest first.
func (r *Relay) History() []chat.Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.Exchange, len(r.exchanges))
	copy(out, r.exchanges)
	return out
}

// Clear drops the local exchange window.
func (r *Relay) Clear() {
	r.mu.Lock()
	r.exchanges = nil
	r.mu.Unlock()
}

// historyMessages flattens the exchange window into role-tagged messages.
func (r *Relay) historyMessages() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	messages := make([]chat.Message, 0, len(r.exchanges)*2)
	for _, ex := range r.exchanges {
		messages = append(messages,
			chat.Message{Role: "user", Content: ex.UserMessage},
			chat.Message{Role: "assistant", Content: ex.AssistantResponse},
		)
	}
	return messages
}
