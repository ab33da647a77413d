package provision

import (
	"time"

	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/room"
)

// exportVersion tags export documents for forward compatibility.
const exportVersion = "1.0"

// ExportDocument is the full portable configuration of the home.
type ExportDocument struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Rooms      []room.Room     `json:"rooms"`
	Devices    []device.Device `json:"devices"`
}

// ImportResult reports what an import run changed.
type ImportResult struct {
	ImportedRooms   int      `json:"imported_rooms"`
	ImportedDevices int      `json:"imported_devices"`
	Errors          []string `json:"errors"`
}

// ValidationResult reports problems found in a device definition.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// DiscoveredDevice describes a device found by network discovery.
type DiscoveredDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DeviceType   string `json:"device_type"`
	Category     string `json:"category"`
	Room         string `json:"room"`
	Icon         string `json:"icon"`
	IPAddress    string `json:"ip_address"`
	MACAddress   string `json:"mac_address"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}
