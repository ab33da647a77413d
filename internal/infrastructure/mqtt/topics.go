package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the HomeDeck MQTT hierarchy.
//
// Sensor topics use the scheme: homedeck/sensors/{device_id}/{suffix}
// The device ID segment never contains '/' because sensor IDs are
// validated at registration time.
const (
	// TopicPrefixSensors is the base for all sensor topics.
	TopicPrefixSensors = "homedeck/sensors"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "homedeck/system"
)

// Topics provides builders for HomeDeck MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	dataTopic := topics.SensorData("esp32-living-01")
//	// Returns: "homedeck/sensors/esp32-living-01/data"
type Topics struct{}

// SensorData returns the topic a sensor publishes telemetry readings to.
//
// Example: homedeck/sensors/esp32-living-01/data
func (Topics) SensorData(deviceID string) string {
	return fmt.Sprintf("%s/%s/data", TopicPrefixSensors, deviceID)
}

// SensorStatus returns the topic a sensor publishes registration and
// heartbeat messages to.
//
// Example: homedeck/sensors/esp32-living-01/status
func (Topics) SensorStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSensors, deviceID)
}

// OTAProgress returns the topic a sensor publishes firmware update
// progress to during an over-the-air install.
//
// Example: homedeck/sensors/esp32-living-01/ota/progress
func (Topics) OTAProgress(deviceID string) string {
	return fmt.Sprintf("%s/%s/ota/progress", TopicPrefixSensors, deviceID)
}

// SystemStatus returns the retained topic carrying the server's
// online/offline state. The broker publishes the LWT here when the
// server disconnects unexpectedly.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllSensorData returns the wildcard pattern matching telemetry from
// every sensor.
func (Topics) AllSensorData() string {
	return TopicPrefixSensors + "/+/data"
}

// AllSensorStatus returns the wildcard pattern matching status messages
// from every sensor.
func (Topics) AllSensorStatus() string {
	return TopicPrefixSensors + "/+/status"
}

// AllOTAProgress returns the wildcard pattern matching update progress
// from every sensor.
func (Topics) AllOTAProgress() string {
	return TopicPrefixSensors + "/+/ota/progress"
}

// DeviceIDFromTopic extracts the device ID segment from a sensor topic.
//
// Returns an empty string if the topic is not under the sensor prefix
// or has no ID segment.
func DeviceIDFromTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, TopicPrefixSensors+"/")
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return id
}
