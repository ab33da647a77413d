package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/room"
)

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

// DeviceRegistry is the slice of the device registry the service needs.
type DeviceRegistry interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	CreateDevice(ctx context.Context, d *device.Device) error
	DeleteDevice(ctx context.Context, id string) error
}

// RoomStore is the slice of the room repository the service needs.
type RoomStore interface {
	List(ctx context.Context) ([]room.Room, error)
	GetByID(ctx context.Context, id string) (*room.Room, error)
	Create(ctx context.Context, r *room.Room) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Service implements bulk configuration operations.
type Service struct {
	devices DeviceRegistry
	rooms   RoomStore
	logger  Logger
	now     func() time.Time
}

// NewService creates a provisioning service.
func NewService(devices DeviceRegistry, rooms RoomStore) *Service {
	return &Service{
		devices: devices,
		rooms:   rooms,
		logger:  noopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Export snapshots the full room and device configuration.
func (s *Service) Export(ctx context.Context) (*ExportDocument, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	return &ExportDocument{
		Version:    exportVersion,
		ExportedAt: s.now(),
		Rooms:      rooms,
		Devices:    devices,
	}, nil
}

// Import loads an export document. Rooms import before devices so
// device room references resolve; existing entries are skipped and
// per-item failures are collected in the result.
func (s *Service) Import(ctx context.Context, doc *ExportDocument) (*ImportResult, error) {
	result := &ImportResult{Errors: []string{}}

	for i := range doc.Rooms {
		r := doc.Rooms[i]
		if _, err := s.rooms.GetByID(ctx, r.ID); err == nil {
			continue
		}
		if err := s.rooms.Create(ctx, &r); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("room %s: %v", r.ID, err))
			continue
		}
		result.ImportedRooms++
	}

	for i := range doc.Devices {
		d := doc.Devices[i]
		if _, err := s.devices.GetDevice(ctx, d.ID); err == nil {
			continue
		}
		if err := s.devices.CreateDevice(ctx, &d); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("device %s: %v", d.ID, err))
			continue
		}
		result.ImportedDevices++
	}

	s.logger.Info("configuration imported",
		"rooms", result.ImportedRooms,
		"devices", result.ImportedDevices,
		"errors", len(result.Errors))
	return result, nil
}

// Reset wipes all devices and rooms and installs the factory layout:
// five rooms and one device of each supported type.
func (s *Service) Reset(ctx context.Context) error {
	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		return err
	}
	for i := range devices {
		if err := s.devices.DeleteDevice(ctx, devices[i].ID); err != nil {
			return fmt.Errorf("clearing device %s: %w", devices[i].ID, err)
		}
	}
	if _, err := s.rooms.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing rooms: %w", err)
	}

	for _, r := range defaultRooms() {
		r := r
		if err := s.rooms.Create(ctx, &r); err != nil {
			return fmt.Errorf("creating default room %s: %w", r.ID, err)
		}
	}
	for _, d := range defaultDevices() {
		d := d
		if err := s.devices.CreateDevice(ctx, &d); err != nil {
			return fmt.Errorf("creating default device %s: %w", d.ID, err)
		}
	}

	s.logger.Info("configuration reset to defaults")
	return nil
}

// Validate checks a device definition without persisting anything.
func (s *Service) Validate(ctx context.Context, d *device.Device) *ValidationResult {
	result := &ValidationResult{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(d.Name) == "" {
		result.Errors = append(result.Errors, "missing required field: name")
	}
	if d.Type == "" {
		result.Errors = append(result.Errors, "missing required field: device_type")
	} else {
		valid := false
		for _, t := range device.AllDeviceTypes() {
			if d.Type == t {
				valid = true
				break
			}
		}
		if !valid {
			result.Errors = append(result.Errors, fmt.Sprintf("invalid device type: %s", d.Type))
		}
	}
	if d.Category != "" {
		valid := false
		for _, c := range device.AllCategories() {
			if d.Category == c {
				valid = true
				break
			}
		}
		if !valid {
			result.Errors = append(result.Errors, fmt.Sprintf("invalid category: %s", d.Category))
		}
	}
	if d.RoomID != nil && *d.RoomID != "" {
		if _, err := s.rooms.GetByID(ctx, *d.RoomID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("room does not exist: %s", *d.RoomID))
		}
	} else {
		result.Warnings = append(result.Warnings, "device has no room assigned")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Discover simulates network device discovery.
// TODO: replace with a real mDNS scan once the panel hardware ships
// with discoverable firmware.
func (s *Service) Discover(_ context.Context) []DiscoveredDevice {
	return []DiscoveredDevice{
		{
			ID:           "discovered_" + uuid.NewString()[:8],
			Name:         "Discovered Smart Light",
			DeviceType:   string(device.TypeLight),
			Category:     string(device.CategoryLighting),
			Room:         "living_room",
			Icon:         "lightbulb",
			IPAddress:    "192.168.1.100",
			MACAddress:   "00:11:22:33:44:55",
			Manufacturer: "Generic Smart Home",
			Model:        "SL-001",
		},
	}
}
