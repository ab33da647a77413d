package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmorrell/homedeck/internal/ota"
	"github.com/jmorrell/homedeck/internal/sensor"
)

// Subscriber is the subset of Client used by the ingest bridge.
// Satisfied by *Client; test doubles implement it directly.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// SensorIngestor accepts telemetry and registrations from the fleet.
// Satisfied by *sensor.Service.
type SensorIngestor interface {
	Register(ctx context.Context, device *sensor.Device) error
	RecordReadings(ctx context.Context, deviceID string, readings []sensor.Reading) (int, error)
}

// UpdateProgressor accepts firmware update progress callbacks.
// Satisfied by *ota.Manager.
type UpdateProgressor interface {
	Progress(ctx context.Context, updateID string, progress int, status, errorMessage string) (*ota.Update, error)
}

// Ingest bridges MQTT sensor traffic into the sensor and OTA services.
//
// Sensors that cannot reach the HTTP API (battery-powered nodes waking
// briefly, firmware without TLS support) publish over MQTT instead. The
// bridge subscribes to the fleet wildcards and dispatches each message
// to the same service methods the REST handlers call, so both paths
// share validation, threshold checks, and alert logic.
type Ingest struct {
	sub     Subscriber
	sensors SensorIngestor
	updates UpdateProgressor
	qos     byte
}

// dataMessage is the telemetry payload published to .../data.
// Same shape as the HTTP ingest body.
type dataMessage struct {
	Readings []sensor.Reading `json:"readings"`
}

// statusMessage is the registration/heartbeat payload published to .../status.
type statusMessage struct {
	Name            string `json:"name,omitempty"`
	Room            string `json:"room,omitempty"`
	IPAddress       string `json:"ip_address,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// progressMessage is the update callback payload published to .../ota/progress.
type progressMessage struct {
	UpdateID string `json:"update_id"`
	Progress int    `json:"progress"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewIngest creates an ingest bridge.
//
// Parameters:
//   - sub: MQTT client to subscribe through
//   - sensors: telemetry and registration sink
//   - updates: firmware progress sink (may be nil if OTA is disabled)
//   - qos: QoS level for the fleet subscriptions
func NewIngest(sub Subscriber, sensors SensorIngestor, updates UpdateProgressor, qos byte) *Ingest {
	return &Ingest{
		sub:     sub,
		sensors: sensors,
		updates: updates,
		qos:     qos,
	}
}

// Start subscribes to the fleet wildcard topics.
//
// The provided context is attached to every dispatched message, so
// cancelling it stops in-flight service calls during shutdown.
func (in *Ingest) Start(ctx context.Context) error {
	topics := Topics{}

	if err := in.sub.Subscribe(topics.AllSensorData(), in.qos, func(topic string, payload []byte) error {
		return in.handleData(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to sensor data: %w", err)
	}

	if err := in.sub.Subscribe(topics.AllSensorStatus(), in.qos, func(topic string, payload []byte) error {
		return in.handleStatus(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to sensor status: %w", err)
	}

	if in.updates != nil {
		if err := in.sub.Subscribe(topics.AllOTAProgress(), in.qos, func(topic string, payload []byte) error {
			return in.handleProgress(ctx, topic, payload)
		}); err != nil {
			return fmt.Errorf("subscribing to update progress: %w", err)
		}
	}

	return nil
}

func (in *Ingest) handleData(ctx context.Context, topic string, payload []byte) error {
	deviceID := DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: no device ID in topic %q", ErrInvalidPayload, topic)
	}

	var msg dataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if _, err := in.sensors.RecordReadings(ctx, deviceID, msg.Readings); err != nil {
		return fmt.Errorf("recording readings for %s: %w", deviceID, err)
	}
	return nil
}

func (in *Ingest) handleStatus(ctx context.Context, topic string, payload []byte) error {
	deviceID := DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: no device ID in topic %q", ErrInvalidPayload, topic)
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	dev := &sensor.Device{
		ID:              deviceID,
		Name:            msg.Name,
		Room:            msg.Room,
		IPAddress:       msg.IPAddress,
		MACAddress:      msg.MACAddress,
		FirmwareVersion: msg.FirmwareVersion,
	}
	if err := in.sensors.Register(ctx, dev); err != nil {
		return fmt.Errorf("registering sensor %s: %w", deviceID, err)
	}
	return nil
}

func (in *Ingest) handleProgress(ctx context.Context, topic string, payload []byte) error {
	var msg progressMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.UpdateID == "" {
		return fmt.Errorf("%w: missing update_id on %q", ErrInvalidPayload, topic)
	}

	if _, err := in.updates.Progress(ctx, msg.UpdateID, msg.Progress, msg.Status, msg.Error); err != nil {
		return fmt.Errorf("applying progress for %s: %w", msg.UpdateID, err)
	}
	return nil
}
