package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jmorrell/homedeck/internal/device"
)

// Store errors.
var (
	// ErrRequestInFlight is returned when a write for the same device and
	// property is already awaiting a server response.
	ErrRequestInFlight = errors.New("dashboard: request already in flight")

	// ErrDeviceNotCached is returned when a mutation targets a device the
	// local cache does not hold.
	ErrDeviceNotCached = errors.New("dashboard: device not in cache")
)

// DeviceAPI is the slice of the API client the store needs.
type DeviceAPI interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
	ControlDevice(ctx context.Context, id string, patch device.State) (*device.Device, error)
}

// RenderHook receives the current cards and aggregates after every cache
// change. It runs on the mutating goroutine; keep it fast.
type RenderHook func(cards []Card, agg device.Aggregates)

// Logger is the logging interface used by the dashboard packages.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// inflightKey identifies one pending property write.
type inflightKey struct {
	deviceID string
	property string
}

// Store is the panel's local device cache.
//
// All reads serve from the cache; mutations go through the API and merge
// only server-confirmed state back, so a clamped value (say brightness
// 150 stored as 100) is what the cache ends up holding.
type Store struct {
	api    DeviceAPI
	logger Logger

	mu      sync.RWMutex
	devices map[string]device.Device
	agg     device.Aggregates

	inflightMu sync.Mutex
	inflight   map[inflightKey]struct{}

	render RenderHook
}

// NewStore creates an empty store backed by the given API client.
func NewStore(api DeviceAPI) *Store {
	return &Store{
		api:      api,
		logger:   noopLogger{},
		devices:  map[string]device.Device{},
		agg:      device.ComputeAggregates(nil),
		inflight: map[inflightKey]struct{}{},
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (s *Store) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetRenderHook registers the hook invoked after every cache change.
func (s *Store) SetRenderHook(hook RenderHook) {
	s.mu.Lock()
	s.render = hook
	s.mu.Unlock()
}

// LoadDevices replaces the cache wholesale with the server's device list.
//
// A transport failure fails soft: the cache is cleared, the panel renders
// empty with a logged notice, and the error is returned so callers can
// schedule a retry.
func (s *Store) LoadDevices(ctx context.Context) error {
	devices, err := s.api.ListDevices(ctx)
	if err != nil {
		s.logger.Warn("device load failed, showing empty dashboard", "error", err)
		s.replaceAll(nil)
		return fmt.Errorf("loading devices: %w", err)
	}

	s.replaceAll(devices)
	return nil
}

// SetProperty writes one property through the API and merges the
// server-confirmed device back into the cache.
//
// A second write for the same (device, property) pair while the first is
// pending returns ErrRequestInFlight; writes to different properties of
// the same device proceed independently.
func (s *Store) SetProperty(ctx context.Context, deviceID, property string, value any) (*device.Device, error) {
	s.mu.RLock()
	_, cached := s.devices[deviceID]
	s.mu.RUnlock()
	if !cached {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotCached, deviceID)
	}

	key := inflightKey{deviceID: deviceID, property: property}
	s.inflightMu.Lock()
	if _, pending := s.inflight[key]; pending {
		s.inflightMu.Unlock()
		return nil, fmt.Errorf("%w: %s.%s", ErrRequestInFlight, deviceID, property)
	}
	s.inflight[key] = struct{}{}
	s.inflightMu.Unlock()

	defer func() {
		s.inflightMu.Lock()
		delete(s.inflight, key)
		s.inflightMu.Unlock()
	}()

	updated, err := s.api.ControlDevice(ctx, deviceID, device.State{property: value})
	if err != nil {
		return nil, err
	}

	s.mergeDevice(updated)
	return updated, nil
}

// Toggle flips a device's power. A missing or non-boolean power value
// reads as off, so the first toggle of a stateless device turns it on.
func (s *Store) Toggle(ctx context.Context, deviceID string) (*device.Device, error) {
	s.mu.RLock()
	dev, cached := s.devices[deviceID]
	s.mu.RUnlock()
	if !cached {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotCached, deviceID)
	}

	current := device.PoweredOn(&dev)
	return s.SetProperty(ctx, deviceID, "power", !current)
}

// ApplyConfirmed merges one server-confirmed property value into the
// cache without issuing a control call. The chat relay uses this for
// actions the server already executed.
func (s *Store) ApplyConfirmed(deviceID, property string, value any) {
	s.mu.Lock()
	dev, ok := s.devices[deviceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if dev.State == nil {
		dev.State = device.State{}
	}
	dev.State[property] = value
	s.devices[deviceID] = dev
	s.recomputeLocked()
	s.mu.Unlock()

	s.renderNow()
}

// Device returns a copy of one cached device.
func (s *Store) Device(deviceID string) (*device.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceID]
	if !ok {
		return nil, false
	}
	cp := dev.DeepCopy()
	return cp, true
}

// Devices returns the cached devices sorted by name for stable display.
func (s *Store) Devices() []device.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]device.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		devices = append(devices, *dev.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// Aggregates returns the dashboard metrics for the current cache.
func (s *Store) Aggregates() device.Aggregates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg
}

// Cards renders the current cache into card view models.
func (s *Store) Cards() []Card {
	return RenderCards(s.Devices())
}

func (s *Store) replaceAll(devices []device.Device) {
	s.mu.Lock()
	s.devices = make(map[string]device.Device, len(devices))
	for i := range devices {
		s.devices[devices[i].ID] = devices[i]
	}
	s.recomputeLocked()
	s.mu.Unlock()

	s.renderNow()
}

func (s *Store) mergeDevice(dev *device.Device) {
	s.mu.Lock()
	s.devices[dev.ID] = *dev.DeepCopy()
	s.recomputeLocked()
	s.mu.Unlock()

	s.renderNow()
}

// recomputeLocked rebuilds aggregates. Caller holds s.mu.
func (s *Store) recomputeLocked() {
	devices := make([]device.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		devices = append(devices, dev)
	}
	s.agg = device.ComputeAggregates(devices)
}

func (s *Store) renderNow() {
	s.mu.RLock()
	hook := s.render
	agg := s.agg
	s.mu.RUnlock()

	if hook != nil {
		hook(s.Cards(), agg)
	}
}
