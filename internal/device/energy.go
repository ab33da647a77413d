package device

// Estimated per-type power draw in kW for a powered device. These are
// fixed dashboard estimates, not measured values.
const (
	drawLight        = 0.1
	drawJacuzzi      = 2.5
	drawThermostat   = 1.2
	drawRecuperation = 0.8
	drawPowerwall    = 0.0
	drawDefault      = 0.5
)

// DefaultClimateTemp is the average temperature shown when no climate
// device reports a current reading.
const DefaultClimateTemp = 22.0

// EstimatedDrawKW returns the estimated power draw for a device type
// while powered on.
func EstimatedDrawKW(t DeviceType) float64 {
	switch t {
	case TypeLight:
		return drawLight
	case TypeJacuzzi:
		return drawJacuzzi
	case TypeThermostat:
		return drawThermostat
	case TypeRecuperation:
		return drawRecuperation
	case TypePowerwall:
		return drawPowerwall
	default:
		return drawDefault
	}
}

// PoweredOn reports whether the device state shows power on.
// Missing or non-boolean power reads as off.
func PoweredOn(d *Device) bool {
	if d == nil || d.State == nil {
		return false
	}
	on, _ := d.State["power"].(bool)
	return on
}

// Aggregates summarises the dashboard-level metrics derived from a
// device collection.
type Aggregates struct {
	TotalDevices  int     `json:"total_devices"`
	ActiveDevices int     `json:"active_devices"`
	EnergyKW      float64 `json:"energy_usage_kw"`
	AvgClimateC   float64 `json:"average_temperature_c"`
}

// ComputeAggregates derives dashboard metrics from a device list.
//
// Active counts devices that are powered on. Energy sums the per-type
// estimate over powered devices. Average climate temperature averages
// current_temperature across climate devices that report one, falling
// back to DefaultClimateTemp when none do.
func ComputeAggregates(devices []Device) Aggregates {
	agg := Aggregates{TotalDevices: len(devices)}

	var tempSum float64
	var tempCount int

	for i := range devices {
		d := &devices[i]
		if PoweredOn(d) {
			agg.ActiveDevices++
			agg.EnergyKW += EstimatedDrawKW(d.Type)
		}
		if d.Type == TypeThermostat && d.State != nil {
			if t, ok := toFloat(d.State["current_temperature"]); ok {
				tempSum += t
				tempCount++
			}
		}
	}

	if tempCount > 0 {
		agg.AvgClimateC = tempSum / float64(tempCount)
	} else {
		agg.AvgClimateC = DefaultClimateTemp
	}

	return agg
}
