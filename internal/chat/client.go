package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to an OpenAI-compatible chat-completions backend.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a backend client.
//
// Parameters:
//   - baseURL: API root, e.g. https://api.openai.com/v1
//   - model: model identifier sent with each request
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// controlDevicesFunction is the single function exposed to the model.
var controlDevicesFunction = map[string]any{
	"name":        "control_devices",
	"description": "Control smart home devices based on user commands",
	"parameters": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"device_id":   map[string]any{"type": "string"},
						"device_type": map[string]any{"type": "string"},
						"property":    map[string]any{"type": "string"},
						"value":       map[string]any{"type": []string{"string", "number", "boolean"}},
						"room":        map[string]any{"type": "string"},
					},
					"required": []string{"device_type", "property", "value"},
				},
			},
			"response": map[string]any{"type": "string"},
		},
		"required": []string{"response"},
	},
}

type completionRequest struct {
	Model        string    `json:"model"`
	Messages     []Message `json:"messages"`
	MaxTokens    int       `json:"max_tokens"`
	Temperature  float64   `json:"temperature"`
	FunctionCall string    `json:"function_call"`
	Functions    []any     `json:"functions"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content      string `json:"content"`
			FunctionCall *struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function_call"`
		} `json:"message"`
	} `json:"choices"`
}

type functionArguments struct {
	Response string   `json:"response"`
	Actions  []Action `json:"actions"`
}

// Complete sends the conversation and returns the assistant's text
// along with any device actions it requested.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, []Action, error) {
	body, err := json.Marshal(completionRequest{
		Model:        c.model,
		Messages:     messages,
		MaxTokens:    500,
		Temperature:  0.7,
		FunctionCall: "auto",
		Functions:    []any{controlDevicesFunction},
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck // diagnostic only
		return "", nil, fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, payload)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", nil, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", nil, fmt.Errorf("%w: empty choices", ErrBackend)
	}

	message := completion.Choices[0].Message
	if message.FunctionCall == nil {
		return message.Content, nil, nil
	}

	var args functionArguments
	if err := json.Unmarshal([]byte(message.FunctionCall.Arguments), &args); err != nil {
		return "", nil, fmt.Errorf("decoding function arguments: %w", err)
	}
	response := args.Response
	if response == "" {
		response = "I'll help you with that."
	}
	return response, args.Actions, nil
}
