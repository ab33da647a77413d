package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/jmorrell/homedeck/internal/ota"
	"github.com/jmorrell/homedeck/internal/sensor"
)

// fakeSubscriber records handlers by topic so tests can deliver
// messages directly.
type fakeSubscriber struct {
	handlers map[string]MessageHandler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

// deliver invokes the handler registered for the wildcard pattern with a
// concrete topic, mimicking broker-side pattern matching.
func (f *fakeSubscriber) deliver(t *testing.T, pattern, topic string, payload []byte) error {
	t.Helper()
	handler, ok := f.handlers[pattern]
	if !ok {
		t.Fatalf("no handler registered for %s", pattern)
	}
	return handler(topic, payload)
}

type fakeIngestor struct {
	registered []*sensor.Device
	recorded   map[string][]sensor.Reading
	recordErr  error
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{recorded: make(map[string][]sensor.Reading)}
}

func (f *fakeIngestor) Register(_ context.Context, device *sensor.Device) error {
	f.registered = append(f.registered, device)
	return nil
}

func (f *fakeIngestor) RecordReadings(_ context.Context, deviceID string, readings []sensor.Reading) (int, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.recorded[deviceID] = append(f.recorded[deviceID], readings...)
	return len(readings), nil
}

type fakeProgressor struct {
	updateID string
	progress int
	status   string
	errMsg   string
	calls    int
}

func (f *fakeProgressor) Progress(_ context.Context, updateID string, progress int, status, errorMessage string) (*ota.Update, error) {
	f.calls++
	f.updateID = updateID
	f.progress = progress
	f.status = status
	f.errMsg = errorMessage
	return &ota.Update{ID: updateID, Progress: progress}, nil
}

func TestIngestStartSubscribes(t *testing.T) {
	sub := newFakeSubscriber()
	in := NewIngest(sub, newFakeIngestor(), &fakeProgressor{}, 1)

	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, pattern := range []string{
		"homedeck/sensors/+/data",
		"homedeck/sensors/+/status",
		"homedeck/sensors/+/ota/progress",
	} {
		if _, ok := sub.handlers[pattern]; !ok {
			t.Errorf("Start() did not subscribe to %s", pattern)
		}
	}
}

func TestIngestStartWithoutOTA(t *testing.T) {
	sub := newFakeSubscriber()
	in := NewIngest(sub, newFakeIngestor(), nil, 1)

	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, ok := sub.handlers["homedeck/sensors/+/ota/progress"]; ok {
		t.Error("Start() subscribed to update progress with nil progressor")
	}
	if len(sub.handlers) != 2 {
		t.Errorf("handler count = %d, want 2", len(sub.handlers))
	}
}

func TestIngestDataDispatch(t *testing.T) {
	sub := newFakeSubscriber()
	sensors := newFakeIngestor()
	in := NewIngest(sub, sensors, nil, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"readings":[
		{"sensor_type":"temperature","value":22.5,"unit":"C"},
		{"sensor_type":"humidity","value":41.0,"unit":"%"}
	]}`)
	err := sub.deliver(t, "homedeck/sensors/+/data", "homedeck/sensors/esp32-01/data", payload)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	got := sensors.recorded["esp32-01"]
	if len(got) != 2 {
		t.Fatalf("recorded %d readings, want 2", len(got))
	}
	if got[0].SensorType != sensor.TypeTemperature || got[0].Value != 22.5 {
		t.Errorf("first reading = %+v, want temperature 22.5", got[0])
	}
	if got[1].SensorType != sensor.TypeHumidity {
		t.Errorf("second reading type = %s, want humidity", got[1].SensorType)
	}
}

func TestIngestDataBadPayload(t *testing.T) {
	sub := newFakeSubscriber()
	in := NewIngest(sub, newFakeIngestor(), nil, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := sub.deliver(t, "homedeck/sensors/+/data", "homedeck/sensors/esp32-01/data", []byte("not json"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("deliver error = %v, want ErrInvalidPayload", err)
	}
}

func TestIngestDataRecordError(t *testing.T) {
	sub := newFakeSubscriber()
	sensors := newFakeIngestor()
	sensors.recordErr = sensor.ErrSensorNotFound
	in := NewIngest(sub, sensors, nil, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"readings":[{"sensor_type":"temperature","value":22.5}]}`)
	err := sub.deliver(t, "homedeck/sensors/+/data", "homedeck/sensors/ghost/data", payload)
	if !errors.Is(err, sensor.ErrSensorNotFound) {
		t.Errorf("deliver error = %v, want ErrSensorNotFound", err)
	}
}

func TestIngestStatusRegisters(t *testing.T) {
	sub := newFakeSubscriber()
	sensors := newFakeIngestor()
	in := NewIngest(sub, sensors, nil, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"name":"Living Room Sensor","room":"living_room","ip_address":"10.0.0.12","firmware_version":"1.4.2"}`)
	err := sub.deliver(t, "homedeck/sensors/+/status", "homedeck/sensors/esp32-01/status", payload)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	if len(sensors.registered) != 1 {
		t.Fatalf("registered %d devices, want 1", len(sensors.registered))
	}
	dev := sensors.registered[0]
	if dev.ID != "esp32-01" {
		t.Errorf("device ID = %s, want esp32-01", dev.ID)
	}
	if dev.Name != "Living Room Sensor" || dev.Room != "living_room" {
		t.Errorf("device = %+v, want name and room from payload", dev)
	}
	if dev.FirmwareVersion != "1.4.2" {
		t.Errorf("firmware = %s, want 1.4.2", dev.FirmwareVersion)
	}
}

func TestIngestProgressDispatch(t *testing.T) {
	sub := newFakeSubscriber()
	progressor := &fakeProgressor{}
	in := NewIngest(sub, newFakeIngestor(), progressor, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"update_id":"upd-123","progress":62,"status":"installing"}`)
	err := sub.deliver(t, "homedeck/sensors/+/ota/progress", "homedeck/sensors/esp32-01/ota/progress", payload)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	if progressor.calls != 1 {
		t.Fatalf("Progress() calls = %d, want 1", progressor.calls)
	}
	if progressor.updateID != "upd-123" || progressor.progress != 62 || progressor.status != "installing" {
		t.Errorf("Progress() got (%s, %d, %s), want (upd-123, 62, installing)",
			progressor.updateID, progressor.progress, progressor.status)
	}
}

func TestIngestProgressMissingUpdateID(t *testing.T) {
	sub := newFakeSubscriber()
	progressor := &fakeProgressor{}
	in := NewIngest(sub, newFakeIngestor(), progressor, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload := []byte(`{"progress":50}`)
	err := sub.deliver(t, "homedeck/sensors/+/ota/progress", "homedeck/sensors/esp32-01/ota/progress", payload)
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("deliver error = %v, want ErrInvalidPayload", err)
	}
	if progressor.calls != 0 {
		t.Errorf("Progress() calls = %d, want 0", progressor.calls)
	}
}
