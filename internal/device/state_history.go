package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourceControl = "control"
	StateHistorySourceChat    = "chat"
	StateHistorySourceImport  = "import"
	StateHistorySourceMQTT    = "mqtt"
)

// StateHistoryEntry represents a single device state change record.
//
// Each entry stores a full snapshot of the device state at the time the
// change was applied, giving every device a local audit trail.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID string `json:"device_id"`

	// State is the JSON snapshot of the device state.
	State State `json:"state"`

	// Source identifies how the change was recorded (control, chat, import, mqtt).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the state change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves device state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a device state change.
	RecordStateChange(ctx context.Context, deviceID string, state State, source string) error

	// GetHistory returns recent state change history for the device,
	// newest first. Implementations may clamp the limit.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
