package sensor

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDeviceType is assigned to registrations that omit a type.
const DefaultDeviceType = "esp32_sensor"

// Sensor reading types.
const (
	TypeTemperature = "temperature"
	TypeHumidity    = "humidity"
)

// Reading quality levels reported by the firmware.
const (
	QualityGood  = "good"
	QualityPoor  = "poor"
	QualityError = "error"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert types raised by the threshold checker.
const (
	AlertTemperatureHigh = "temperature_high"
	AlertTemperatureLow  = "temperature_low"
	AlertHumidityHigh    = "humidity_high"
	AlertHumidityLow     = "humidity_low"
	AlertDeviceOffline   = "device_offline"
)

// Device is a registered ESP32 sensor node.
type Device struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	DeviceType      string         `json:"device_type"`
	Room            string         `json:"room,omitempty"`
	IPAddress       string         `json:"ip_address,omitempty"`
	MACAddress      string         `json:"mac_address,omitempty"`
	FirmwareVersion string         `json:"firmware_version,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
	Enabled         bool           `json:"enabled"`
	LastSeen        *time.Time     `json:"last_seen,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Online reports whether the device has been seen within staleAfter.
func (d *Device) Online(now time.Time, staleAfter time.Duration) bool {
	if d == nil || d.LastSeen == nil {
		return false
	}
	return now.Sub(*d.LastSeen) <= staleAfter
}

// Thresholds holds the per-device alert band, read from the device
// config under the "thresholds" key. Nil fields mean unchecked.
type Thresholds struct {
	TemperatureHigh *float64
	TemperatureLow  *float64
	HumidityHigh    *float64
	HumidityLow     *float64
}

// GetThresholds extracts the alert band from the device config.
func (d *Device) GetThresholds() Thresholds {
	var t Thresholds
	raw, ok := d.Config["thresholds"].(map[string]any)
	if !ok {
		return t
	}
	t.TemperatureHigh = floatKey(raw, "temperature_high")
	t.TemperatureLow = floatKey(raw, "temperature_low")
	t.HumidityHigh = floatKey(raw, "humidity_high")
	t.HumidityLow = floatKey(raw, "humidity_low")
	return t
}

func floatKey(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

// Reading is a single telemetry sample.
type Reading struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Quality    string    `json:"quality"`
	Timestamp  time.Time `json:"timestamp"`
}

// Alert records a threshold breach or offline transition.
type Alert struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	AlertType      string    `json:"alert_type"`
	Severity       string    `json:"severity"`
	Message        string    `json:"message"`
	ThresholdValue *float64  `json:"threshold_value,omitempty"`
	CurrentValue   *float64  `json:"current_value,omitempty"`
	IsActive       bool      `json:"is_active"`
	Acknowledged   bool      `json:"acknowledged"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summary aggregates fleet status for the dashboard header.
type Summary struct {
	TotalDevices   int                       `json:"total_devices"`
	OnlineDevices  int                       `json:"online_devices"`
	OfflineDevices int                       `json:"offline_devices"`
	LatestReadings map[string]LatestReadings `json:"latest_readings"`
	ActiveAlerts   int                       `json:"active_alerts"`
	CriticalAlerts int                       `json:"critical_alerts"`
}

// LatestReadings is the most recent sample pair for one device.
type LatestReadings struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Room        string   `json:"room,omitempty"`
}

// GenerateAlertID returns a new unique alert identifier.
func GenerateAlertID() string {
	return uuid.NewString()
}
