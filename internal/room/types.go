package room

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxNameLength bounds room names to keep dashboard labels sane.
const maxNameLength = 100

// Room is a physical space devices are assigned to.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks that the room has the minimum required fields.
func (r *Room) Validate() error {
	if r == nil {
		return ErrInvalidRoom
	}
	name := strings.TrimSpace(r.Name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	return nil
}

// GenerateID returns a new unique room identifier.
func GenerateID() string {
	return uuid.NewString()
}
