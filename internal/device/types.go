package device

import "time"

// Device represents a controllable entity on the dashboard.
// This matches the database schema in migrations/20250601_100500_create_devices.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type     DeviceType `json:"device_type"`
	Category Category   `json:"category"`
	Icon     string     `json:"icon,omitempty"`

	// RoomID references the room the device is assigned to, if any.
	RoomID *string `json:"room_id,omitempty"`

	// Enabled gates whether the device accepts control calls and renders
	// as online. Disabled devices keep their stored state.
	Enabled bool `json:"enabled"`

	// Config holds device-specific configuration (ranges, calibration).
	Config Config `json:"configuration,omitempty"`

	// State holds the current property values. A nil State means the
	// device has never reported and renders as offline.
	State          State      `json:"current_state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Online reports whether the device should render as reachable.
// This is derived, never stored: a device is online only when it is
// enabled and has reported state at least once.
func (d *Device) Online() bool {
	return d != nil && d.Enabled && d.State != nil
}

// DeepCopy creates a complete independent copy of the Device.
// All map fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	cpy.Config = deepCopyMap(d.Config)
	cpy.State = deepCopyMap(d.State)

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64) are safe to copy by value
		return v
	}
}

// Config holds device-specific configuration as a JSON map.
//
// Example: {"min_temp": 20, "max_temp": 40}
type Config map[string]any

// State holds the current device state as a JSON map.
//
// Examples:
//   - Light: {"power": true, "brightness": 75}
//   - Thermostat: {"power": true, "target_temperature": 22.0, "mode": "heat"}
//   - Jacuzzi: {"power": false, "temperature": 37, "timer": 60}
type State map[string]any

// DeviceType represents the specific kind of device.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// Device type constants.
const (
	TypeLight        DeviceType = "light"
	TypeThermostat   DeviceType = "thermostat"
	TypeJacuzzi      DeviceType = "jacuzzi"
	TypePowerwall    DeviceType = "powerwall"
	TypeRecuperation DeviceType = "recuperation"
	TypeCustom       DeviceType = "custom"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		TypeLight, TypeThermostat, TypeJacuzzi,
		TypePowerwall, TypeRecuperation, TypeCustom,
	}
}

// Category groups devices for dashboard filtering.
type Category string

// Category constants.
const (
	CategoryLighting    Category = "lighting"
	CategoryClimate     Category = "climate"
	CategoryEnergy      Category = "energy"
	CategoryVentilation Category = "ventilation"
	CategoryGeneral     Category = "general"
)

// AllCategories returns all valid category values.
func AllCategories() []Category {
	return []Category{
		CategoryLighting, CategoryClimate, CategoryEnergy,
		CategoryVentilation, CategoryGeneral,
	}
}

// DefaultCategory returns the conventional category for a device type.
func DefaultCategory(t DeviceType) Category {
	switch t {
	case TypeLight:
		return CategoryLighting
	case TypeThermostat, TypeJacuzzi:
		return CategoryClimate
	case TypePowerwall:
		return CategoryEnergy
	case TypeRecuperation:
		return CategoryVentilation
	default:
		return CategoryGeneral
	}
}
