package chat

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jmorrell/homedeck/internal/device"
)

// fakeBackend returns a canned response and captures what it was sent.
type fakeBackend struct {
	response string
	actions  []Action
	err      error
	gotMsgs  []Message
}

func (f *fakeBackend) Complete(_ context.Context, messages []Message) (string, []Action, error) {
	f.gotMsgs = messages
	return f.response, f.actions, f.err
}

// fakeRegistry holds devices in memory and applies the real per-type
// state validation on writes.
type fakeRegistry struct {
	devices map[string]*device.Device
}

func newFakeRegistry(devices ...*device.Device) *fakeRegistry {
	m := map[string]*device.Device{}
	for _, d := range devices {
		m[d.ID] = d
	}
	return &fakeRegistry{devices: m}
}

func (f *fakeRegistry) ListDevices(context.Context) ([]device.Device, error) {
	var out []device.Device
	for _, d := range f.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (f *fakeRegistry) GetDevice(_ context.Context, id string) (*device.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (f *fakeRegistry) SetDeviceState(_ context.Context, id string, patch device.State) (*device.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	validated, err := device.ValidateStatePatch(d.Type, patch)
	if err != nil {
		return nil, err
	}
	if d.State == nil {
		d.State = device.State{}
	}
	for k, v := range validated {
		d.State[k] = v
	}
	return d.DeepCopy(), nil
}

func (f *fakeRegistry) GetAggregates(ctx context.Context) (device.Aggregates, error) {
	devices, _ := f.ListDevices(ctx) //nolint:errcheck // cannot fail
	return device.ComputeAggregates(devices), nil
}

func roomRef(id string) *string { return &id }

func testLamp() *device.Device {
	return &device.Device{
		ID:      "lamp-1",
		Name:    "Living Room Lamp",
		Type:    device.TypeLight,
		RoomID:  roomRef("living_room"),
		Enabled: true,
		State:   device.State{"power": false, "brightness": 50.0},
	}
}

func TestService_HandleMessage_ExecutesActions(t *testing.T) {
	backend := &fakeBackend{
		response: "Turning on the lamp.",
		actions: []Action{
			{DeviceID: "lamp-1", DeviceType: "light", Property: "power", Value: true},
		},
	}
	registry := newFakeRegistry(testLamp())
	svc := NewService(backend, registry, 5)

	reply, err := svc.HandleMessage(context.Background(), "turn on the lamp", nil)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Response != "Turning on the lamp." {
		t.Errorf("Response = %q", reply.Response)
	}
	if len(reply.ExecutionResults) != 1 || !reply.ExecutionResults[0].Success {
		t.Fatalf("ExecutionResults = %+v, want one success", reply.ExecutionResults)
	}
	if got := registry.devices["lamp-1"].State["power"]; got != true {
		t.Errorf("device power = %v, want true", got)
	}
}

func TestService_HandleMessage_ResolvesByTypeAndRoom(t *testing.T) {
	backend := &fakeBackend{
		response: "Done.",
		actions: []Action{
			{DeviceType: "light", Property: "brightness", Value: 80, Room: "living_room"},
		},
	}
	registry := newFakeRegistry(testLamp())
	svc := NewService(backend, registry, 5)

	reply, err := svc.HandleMessage(context.Background(), "dim the living room", nil)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	result := reply.ExecutionResults[0]
	if !result.Success || result.DeviceID != "lamp-1" {
		t.Errorf("result = %+v, want success on lamp-1", result)
	}
}

func TestService_HandleMessage_ReportsFailedActions(t *testing.T) {
	backend := &fakeBackend{
		response: "Done.",
		actions: []Action{
			{DeviceType: "thermostat", Property: "power", Value: true, Room: "attic"},
			{DeviceID: "lamp-1", DeviceType: "light", Property: "warp_speed", Value: 9},
		},
	}
	registry := newFakeRegistry(testLamp())
	svc := NewService(backend, registry, 5)

	reply, err := svc.HandleMessage(context.Background(), "do impossible things", nil)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(reply.ExecutionResults) != 2 {
		t.Fatalf("got %d results, want 2", len(reply.ExecutionResults))
	}
	for i, result := range reply.ExecutionResults {
		if result.Success {
			t.Errorf("result %d = success, want failure: %+v", i, result)
		}
		if result.Error == "" {
			t.Errorf("result %d missing error message", i)
		}
	}
}

func TestService_HandleMessage_SendsTrailingWindow(t *testing.T) {
	backend := &fakeBackend{response: "ok"}
	svc := NewService(backend, newFakeRegistry(testLamp()), 2)

	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three", "four"} {
		if _, err := svc.HandleMessage(ctx, msg, nil); err != nil {
			t.Fatalf("HandleMessage %q: %v", msg, err)
		}
	}

	// 2 system + 2 trailing exchanges (4 messages) + current user message.
	if len(backend.gotMsgs) != 7 {
		t.Fatalf("backend got %d messages, want 7", len(backend.gotMsgs))
	}
	if backend.gotMsgs[2].Content != "two" {
		t.Errorf("oldest window message = %q, want %q", backend.gotMsgs[2].Content, "two")
	}
	if last := backend.gotMsgs[len(backend.gotMsgs)-1]; last.Role != RoleUser || last.Content != "four" {
		t.Errorf("last message = %s %q, want user four", last.Role, last.Content)
	}
}

func TestService_HandleMessage_Guards(t *testing.T) {
	svc := NewService(nil, newFakeRegistry(), 5)
	if _, err := svc.HandleMessage(context.Background(), "hi", nil); !errors.Is(err, ErrDisabled) {
		t.Errorf("disabled service = %v, want ErrDisabled", err)
	}

	svc = NewService(&fakeBackend{}, newFakeRegistry(), 5)
	if _, err := svc.HandleMessage(context.Background(), "", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty message = %v, want ErrEmptyMessage", err)
	}
}

func TestService_BackendErrorDoesNotTouchHistory(t *testing.T) {
	backend := &fakeBackend{err: ErrBackend}
	svc := NewService(backend, newFakeRegistry(testLamp()), 5)

	if _, err := svc.HandleMessage(context.Background(), "hello", nil); !errors.Is(err, ErrBackend) {
		t.Fatalf("HandleMessage = %v, want ErrBackend", err)
	}
	if len(svc.GetHistory()) != 0 {
		t.Error("failed exchange must not be recorded")
	}
}

func TestService_SystemStatus(t *testing.T) {
	lamp := testLamp()
	lamp.State["power"] = true
	thermostat := &device.Device{
		ID:      "thermo-1",
		Name:    "Hall Thermostat",
		Type:    device.TypeThermostat,
		Enabled: true,
		State:   device.State{"power": true, "current_temperature": 20.0},
	}
	svc := NewService(&fakeBackend{}, newFakeRegistry(lamp, thermostat), 5)

	status, err := svc.SystemStatus(context.Background())
	if err != nil {
		t.Fatalf("SystemStatus: %v", err)
	}
	if status.TotalDevices != 2 || status.ActiveDevices != 2 {
		t.Errorf("devices = %d/%d active, want 2/2", status.TotalDevices, status.ActiveDevices)
	}
	if math.Abs(status.EnergyKW-1.3) > 1e-9 {
		t.Errorf("EnergyKW = %v, want 1.3", status.EnergyKW)
	}
	if status.AvgClimateC != 20.0 {
		t.Errorf("AvgClimateC = %v, want 20.0", status.AvgClimateC)
	}
}
