package ota

import (
	"time"

	"github.com/google/uuid"
)

// Update statuses.
const (
	StatusInitiated   = "initiated"
	StatusDownloading = "downloading"
	StatusInstalling  = "installing"
	StatusRestarting  = "restarting"
	StatusInProgress  = "in_progress"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)

// StepOrder is the canonical progression a healthy update walks.
var StepOrder = []string{
	StatusInitiated,
	StatusDownloading,
	StatusInstalling,
	StatusRestarting,
	StatusCompleted,
}

// IsTerminal reports whether a status ends the update's lifecycle.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Update is one firmware rollout attempt for one device.
type Update struct {
	ID              string     `json:"id"`
	DeviceID        string     `json:"device_id"`
	FirmwareVersion string     `json:"firmware_version"`
	Status          string     `json:"update_status"`
	Progress        int        `json:"progress_percentage"`
	FileSize        int64      `json:"file_size,omitempty"`
	Checksum        string     `json:"checksum,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Active reports whether the update is still running.
func (u *Update) Active() bool {
	return u != nil && !IsTerminal(u.Status)
}

// Options carries device-side flags for an update request.
type Options struct {
	BackupConfig bool `json:"backup_config"`
	AutoRestart  bool `json:"auto_restart"`
	SafeMode     bool `json:"safe_mode"`
}

// GenerateID returns a new unique update identifier.
func GenerateID() string {
	return uuid.NewString()
}
