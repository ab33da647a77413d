package chat

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in the conversation sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Action is one device control instruction returned by the backend.
// DeviceID may be empty, in which case the device is resolved by type
// and room.
type Action struct {
	DeviceID   string `json:"device_id,omitempty"`
	DeviceType string `json:"device_type"`
	Property   string `json:"property"`
	Value      any    `json:"value"`
	Room       string `json:"room,omitempty"`
}

// ExecutionResult reports the outcome of one action.
type ExecutionResult struct {
	Success    bool   `json:"success"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	Property   string `json:"property,omitempty"`
	Value      any    `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
	Action     Action `json:"action"`
}

// Reply is the full answer to one chat message.
type Reply struct {
	Response         string            `json:"response"`
	Actions          []Action          `json:"actions"`
	ExecutionResults []ExecutionResult `json:"execution_results,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Exchange is one stored user/assistant round trip.
type Exchange struct {
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Timestamp         time.Time `json:"timestamp"`
}
