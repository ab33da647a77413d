package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmorrell/homedeck/internal/device"
)

const systemPrompt = `You are a smart home assistant for a home dashboard.

Available device types and their controls:
- Lights: power (on/off), brightness (0-100%)
- Thermostat: power (on/off), target_temperature (10-35°C), mode (heat/cool/auto/off), current_temperature (read-only)
- Jacuzzi: power (on/off), temperature (20-40°C), timer (0-120 minutes)
- Powerwall: power (on/off), charging_mode (auto/charge/discharge/standby), battery_level (read-only)
- Recuperation: power (on/off), fan_speed (1-5), mode (auto/manual/eco/boost)

When users ask you to control devices, call control_devices with the actions
to perform and a natural language response. Each action has device_id,
device_type, property, value, and room (if specified). If you cannot identify
specific devices, ask for clarification. For status requests, describe the
current device information in a friendly way.`

// Logger is the minimal logging interface the service needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Completer is the LLM backend seam, implemented by Client.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, []Action, error)
}

// DeviceRegistry is the slice of the device registry the relay needs.
type DeviceRegistry interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	SetDeviceState(ctx context.Context, id string, patch device.State) (*device.Device, error)
	GetAggregates(ctx context.Context) (device.Aggregates, error)
}

// Status is the system snapshot served alongside the chat UI.
type Status struct {
	device.Aggregates
	Devices   []device.Device `json:"devices"`
	Timestamp time.Time       `json:"timestamp"`
}

// Service relays chat messages to the backend and executes the device
// actions it returns.
type Service struct {
	backend  Completer
	registry DeviceRegistry
	history  *History
	logger   Logger
	now      func() time.Time
}

// NewService creates a chat service. A nil backend leaves chat
// disabled; all other operations still work.
func NewService(backend Completer, registry DeviceRegistry, historyWindow int) *Service {
	return &Service{
		backend:  backend,
		registry: registry,
		history:  NewHistory(historyWindow),
		logger:   noopLogger{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Enabled reports whether a backend is configured.
func (s *Service) Enabled() bool {
	return s.backend != nil
}

// HandleMessage relays one user message, executes any returned actions,
// and records the exchange.
//
// Extra history may be supplied by the caller (a stateless client); it
// is spliced in after the server-side trailing window.
func (s *Service) HandleMessage(ctx context.Context, message string, extraHistory []Message) (*Reply, error) {
	if s.backend == nil {
		return nil, ErrDisabled
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}

	messages := []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleSystem, Content: "Current device states: " + s.deviceContext(ctx)},
	}
	messages = append(messages, s.history.Window()...)
	messages = append(messages, extraHistory...)
	messages = append(messages, Message{Role: RoleUser, Content: message})

	response, actions, err := s.backend.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		Response:  response,
		Actions:   actions,
		Timestamp: s.now(),
	}
	for _, action := range actions {
		reply.ExecutionResults = append(reply.ExecutionResults, s.executeAction(ctx, action))
	}

	s.history.Append(message, response)
	s.logger.Info("chat message handled",
		"actions", len(actions),
		"history_len", len(s.history.All()))
	return reply, nil
}

// executeAction applies one backend action to the registry. The device
// is resolved by ID when given, otherwise by type and room.
func (s *Service) executeAction(ctx context.Context, action Action) ExecutionResult {
	target, err := s.resolveDevice(ctx, action)
	if err != nil {
		return ExecutionResult{
			Success: false,
			Error:   err.Error(),
			Action:  action,
		}
	}

	patch := device.State{action.Property: action.Value}
	updated, err := s.registry.SetDeviceState(ctx, target.ID, patch)
	if err != nil {
		return ExecutionResult{
			Success:  false,
			DeviceID: target.ID,
			Error:    err.Error(),
			Action:   action,
		}
	}

	return ExecutionResult{
		Success:    true,
		DeviceID:   updated.ID,
		DeviceName: updated.Name,
		Property:   action.Property,
		Value:      updated.State[action.Property],
		Action:     action,
	}
}

func (s *Service) resolveDevice(ctx context.Context, action Action) (*device.Device, error) {
	if action.DeviceID != "" {
		return s.registry.GetDevice(ctx, action.DeviceID)
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		d := &devices[i]
		if string(d.Type) != action.DeviceType {
			continue
		}
		if action.Room != "" && (d.RoomID == nil || *d.RoomID != action.Room) {
			continue
		}
		return d, nil
	}
	if action.Room != "" {
		return nil, fmt.Errorf("device not found: %s in %s", action.DeviceType, action.Room)
	}
	return nil, fmt.Errorf("device not found: %s", action.DeviceType)
}

// deviceContext renders the current device list as JSON for the model.
func (s *Service) deviceContext(ctx context.Context) string {
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		s.logger.Warn("failed to build device context", "error", err)
		return "[]"
	}
	b, err := json.Marshal(devices)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// SystemStatus returns aggregate figures plus the full device list.
func (s *Service) SystemStatus(ctx context.Context) (*Status, error) {
	aggregates, err := s.registry.GetAggregates(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Aggregates: aggregates,
		Devices:    devices,
		Timestamp:  s.now(),
	}, nil
}

// GetHistory returns the stored transcript.
func (s *Service) GetHistory() []Exchange {
	return s.history.All()
}

// ClearHistory drops the transcript.
func (s *Service) ClearHistory() {
	s.history.Clear()
}
