package device

// Control describes a single dashboard control for a device property.
type Control struct {
	Property string `json:"property"`
	Label    string `json:"label"`

	// Widget selects the UI control: "toggle", "slider", or "select".
	Widget string `json:"widget"`

	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Unit    string   `json:"unit,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Template describes how a device type is created and controlled from
// the dashboard.
type Template struct {
	Type         DeviceType `json:"device_type"`
	Name         string     `json:"name"`
	Icon         string     `json:"icon"`
	Category     Category   `json:"category"`
	InitialState State      `json:"initial_state"`
	Controls     []Control  `json:"controls"`
}

// Templates returns the dashboard templates for every controllable
// device type. The control ranges mirror the property specs used for
// validation.
func Templates() []Template {
	return []Template{
		{
			Type:         TypeLight,
			Name:         "Light",
			Icon:         "lightbulb",
			Category:     CategoryLighting,
			InitialState: State{"power": false, "brightness": 50.0},
			Controls: []Control{
				{Property: "power", Label: "Power", Widget: "toggle"},
				{Property: "brightness", Label: "Brightness", Widget: "slider", Min: 0, Max: 100, Step: 5, Unit: "%"},
			},
		},
		{
			Type:         TypeThermostat,
			Name:         "Thermostat",
			Icon:         "thermostat",
			Category:     CategoryClimate,
			InitialState: State{"power": true, "target_temperature": 22.0, "mode": "auto"},
			Controls: []Control{
				{Property: "power", Label: "Power", Widget: "toggle"},
				{Property: "target_temperature", Label: "Target", Widget: "slider", Min: 10, Max: 35, Step: 0.5, Unit: "°C"},
				{Property: "mode", Label: "Mode", Widget: "select", Options: []string{"heat", "cool", "auto", "off"}},
			},
		},
		{
			Type:         TypeJacuzzi,
			Name:         "Jacuzzi",
			Icon:         "hot-tub",
			Category:     CategoryClimate,
			InitialState: State{"power": false, "temperature": 37.0, "timer": 60.0},
			Controls: []Control{
				{Property: "power", Label: "Power", Widget: "toggle"},
				{Property: "temperature", Label: "Temperature", Widget: "slider", Min: 20, Max: 40, Step: 1, Unit: "°C"},
				{Property: "timer", Label: "Timer", Widget: "slider", Min: 0, Max: 120, Step: 15, Unit: "min"},
			},
		},
		{
			Type:         TypePowerwall,
			Name:         "Powerwall",
			Icon:         "battery",
			Category:     CategoryEnergy,
			InitialState: State{"power": true, "charging_mode": "auto", "battery_level": 50.0},
			Controls: []Control{
				{Property: "power", Label: "Power", Widget: "toggle"},
				{Property: "charging_mode", Label: "Mode", Widget: "select", Options: []string{"auto", "charge", "discharge", "standby"}},
			},
		},
		{
			Type:         TypeRecuperation,
			Name:         "Recuperation",
			Icon:         "fan",
			Category:     CategoryVentilation,
			InitialState: State{"power": false, "fan_speed": 2.0, "mode": "auto"},
			Controls: []Control{
				{Property: "power", Label: "Power", Widget: "toggle"},
				{Property: "fan_speed", Label: "Fan speed", Widget: "slider", Min: 1, Max: 5, Step: 1},
				{Property: "mode", Label: "Mode", Widget: "select", Options: []string{"auto", "manual", "eco", "boost"}},
			},
		},
	}
}
