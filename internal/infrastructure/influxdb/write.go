package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jmorrell/homedeck/internal/sensor"
)

// readingMeasurement is the measurement name for mirrored telemetry.
const readingMeasurement = "sensor_readings"

// MirrorReading forwards a stored sensor reading to InfluxDB.
//
// This satisfies sensor.Mirror and is called by the sensor service for
// every reading it accepts. The write is non-blocking; data is batched
// and sent asynchronously, and an unavailable InfluxDB never blocks or
// fails the ingest path.
//
// Tags are kept low-cardinality (device ID, sensor type, quality); the
// reading value is the only field.
func (c *Client) MirrorReading(deviceID string, reading sensor.Reading) {
	if !c.IsConnected() {
		return
	}

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	point := write.NewPoint(
		readingMeasurement,
		map[string]string{
			"device_id":   deviceID,
			"sensor_type": reading.SensorType,
			"quality":     reading.Quality,
		},
		map[string]interface{}{
			"value": reading.Value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteAlertEvent records an alert transition for long-range dashboards.
//
// Parameters:
//   - alert: The alert as raised by the sensor service
func (c *Client) WriteAlertEvent(alert sensor.Alert) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"message": alert.Message,
	}
	if alert.CurrentValue != nil {
		fields["current_value"] = *alert.CurrentValue
	}
	if alert.ThresholdValue != nil {
		fields["threshold_value"] = *alert.ThresholdValue
	}

	point := write.NewPoint(
		"sensor_alerts",
		map[string]string{
			"device_id":  alert.DeviceID,
			"alert_type": alert.AlertType,
			"severity":   alert.Severity,
		},
		fields,
		alert.CreatedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "homedeck-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
