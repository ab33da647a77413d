package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// GetDevicesByRoom retrieves all devices assigned to a specific room.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.RoomID != nil && *d.RoomID == roomID {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByRoom(ctx, roomID)
}

// GetDevicesByType retrieves all devices of a specific type.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByType(ctx context.Context, t DeviceType) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.Type == t {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByType(ctx, t)
}

// CreateDevice creates a new device.
// It validates the device, generates an ID if needed, and persists it.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	if device.Category == "" {
		device.Category = DefaultCategory(device.Type)
	}

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	// Store a deep copy to prevent external modification
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name)
	return nil
}

// UpdateDevice updates an existing device.
// It validates the device and persists the changes.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	if device.Category == "" {
		device.Category = DefaultCategory(device.Type)
	}

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "name", device.Name)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceState validates a partial state patch, merges it into the
// stored state, and returns the device as stored afterwards.
//
// The returned device carries the authoritative values: numeric
// properties may have been clamped to their declared range, so callers
// must take their cache contents from the return value rather than from
// the patch they sent.
//
// Returns ErrDeviceNotFound, ErrDeviceDisabled, ErrUnknownProperty, or
// ErrInvalidState (all wrapped) on rejection; the stored state is
// unchanged in every error case.
func (r *Registry) SetDeviceState(ctx context.Context, id string, patch State) (*Device, error) {
	current, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Enabled {
		return nil, ErrDeviceDisabled
	}

	normalised, err := ValidateStatePatch(current.Type, patch)
	if err != nil {
		return nil, err
	}

	if err := r.repo.UpdateState(ctx, id, normalised); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// Atomic cache replacement with the merged state
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		if updated.State == nil {
			updated.State = make(State, len(normalised))
		}
		for k, v := range normalised {
			updated.State[k] = deepCopyValue(v)
		}
		updated.StateUpdatedAt = &now
		updated.UpdatedAt = now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id)

	return r.GetDevice(ctx, id)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetAggregates returns dashboard metrics derived from the cache.
func (r *Registry) GetAggregates(ctx context.Context) (Aggregates, error) {
	devices, err := r.ListDevices(ctx)
	if err != nil {
		return Aggregates{}, err
	}
	return ComputeAggregates(devices), nil
}
