package dashboard

import (
	"github.com/jmorrell/homedeck/internal/device"
)

// Card is the view model projected from one device. Rendering surfaces
// consume cards instead of raw devices so display defaults live in one
// place.
type Card struct {
	DeviceID string            `json:"device_id"`
	Name     string            `json:"name"`
	Type     device.DeviceType `json:"device_type"`
	Icon     string            `json:"icon,omitempty"`
	RoomID   string            `json:"room_id,omitempty"`
	Online   bool              `json:"online"`
	Power    bool              `json:"power"`

	// Properties carries the type-specific display values with defaults
	// applied for anything the device state does not report.
	Properties map[string]any `json:"properties"`
}

// Display defaults per device type, used when the state omits a value.
const (
	defaultBrightness     = 50.0
	defaultThermostatMode = "auto"
	defaultTargetTemp     = 22.0
	defaultJacuzziTemp    = 37.0
	defaultJacuzziTimer   = 60.0
	defaultChargingMode   = "auto"
	defaultBatteryLevel   = 50.0
	defaultFanSpeed       = 2.0
	defaultRecupMode      = "auto"
)

// RenderCard projects a device into its card view model.
//
// The projection is pure and total: unknown device types fall through to
// a generic card that mirrors the raw state, so a new server-side type
// never breaks the panel.
func RenderCard(d *device.Device) Card {
	card := Card{
		DeviceID:   d.ID,
		Name:       d.Name,
		Type:       d.Type,
		Icon:       d.Icon,
		Online:     d.Online(),
		Power:      device.PoweredOn(d),
		Properties: map[string]any{},
	}
	if d.RoomID != nil {
		card.RoomID = *d.RoomID
	}

	switch d.Type {
	case device.TypeLight:
		card.Properties["brightness"] = stateNumber(d, "brightness", defaultBrightness)
	case device.TypeThermostat:
		card.Properties["mode"] = stateString(d, "mode", defaultThermostatMode)
		card.Properties["target_temperature"] = stateNumber(d, "target_temperature", defaultTargetTemp)
		if v, ok := stateValue(d, "current_temperature"); ok {
			card.Properties["current_temperature"] = v
		}
	case device.TypeJacuzzi:
		card.Properties["temperature"] = stateNumber(d, "temperature", defaultJacuzziTemp)
		card.Properties["timer"] = stateNumber(d, "timer", defaultJacuzziTimer)
	case device.TypePowerwall:
		card.Properties["charging_mode"] = stateString(d, "charging_mode", defaultChargingMode)
		card.Properties["battery_level"] = stateNumber(d, "battery_level", defaultBatteryLevel)
	case device.TypeRecuperation:
		card.Properties["fan_speed"] = stateNumber(d, "fan_speed", defaultFanSpeed)
		card.Properties["mode"] = stateString(d, "mode", defaultRecupMode)
	default:
		// Generic fallback: mirror whatever state the device reports.
		for k, v := range d.State {
			card.Properties[k] = v
		}
	}

	return card
}

// RenderCards projects a device list in order.
func RenderCards(devices []device.Device) []Card {
	cards := make([]Card, len(devices))
	for i := range devices {
		cards[i] = RenderCard(&devices[i])
	}
	return cards
}

func stateValue(d *device.Device, key string) (any, bool) {
	if d.State == nil {
		return nil, false
	}
	v, ok := d.State[key]
	return v, ok
}

func stateNumber(d *device.Device, key string, fallback float64) float64 {
	v, ok := stateValue(d, key)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return fallback
}

func stateString(d *device.Device, key, fallback string) string {
	v, ok := stateValue(d, key)
	if !ok {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
