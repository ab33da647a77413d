package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmorrell/homedeck/internal/ota"
)

// Coordinator errors.
var (
	ErrUpdateActive   = errors.New("dashboard: update already active for device")
	ErrDeviceOffline  = errors.New("dashboard: device is offline")
	ErrNoActiveUpdate = errors.New("dashboard: no active update for device")
)

// OTAAPI is the slice of the API client the coordinator needs.
type OTAAPI interface {
	StartUpdate(ctx context.Context, deviceID, firmwareVersion string, opts ota.Options) (*ota.Update, error)
	UpdateStatus(ctx context.Context, deviceID string) (*ota.Update, error)
	CancelUpdate(ctx context.Context, deviceID string) (*ota.Update, error)
}

// SensorDirectory answers liveness questions about the sensor fleet.
type SensorDirectory interface {
	Online(deviceID string) bool
}

// Coordinator tracks in-progress firmware rollouts on the panel side.
//
// It keeps one active record per device, refreshed by Poll with the
// server's view. The server remains authoritative; the local map only
// decides what the panel draws and which devices accept a new rollout.
type Coordinator struct {
	api     OTAAPI
	sensors SensorDirectory
	logger  Logger

	mu     sync.Mutex
	active map[string]ota.Update

	// onReload triggers a device-list reload after a completed update
	// (new firmware may change reported capabilities).
	onReload func()

	// onEvent receives every terminal update observed by Poll.
	onEvent func(upd ota.Update)
}

// NewCoordinator creates a coordinator. The sensor directory may be nil,
// in which case the offline guard is left to the server.
func NewCoordinator(api OTAAPI, sensors SensorDirectory) *Coordinator {
	return &Coordinator{
		api:     api,
		sensors: sensors,
		logger:  noopLogger{},
		active:  map[string]ota.Update{},
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (c *Coordinator) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetReloadHook registers the device-list reload trigger.
func (c *Coordinator) SetReloadHook(hook func()) {
	c.mu.Lock()
	c.onReload = hook
	c.mu.Unlock()
}

// SetEventHook registers the terminal-update callback.
func (c *Coordinator) SetEventHook(hook func(upd ota.Update)) {
	c.mu.Lock()
	c.onEvent = hook
	c.mu.Unlock()
}

// StartUpdate begins a firmware rollout for one device.
//
// The call is rejected locally when the device is offline or already has
// an active rollout; the server applies the same guards authoritatively.
func (c *Coordinator) StartUpdate(ctx context.Context, deviceID, firmwareVersion string, opts ota.Options) (*ota.Update, error) {
	if c.sensors != nil && !c.sensors.Online(deviceID) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceOffline, deviceID)
	}

	c.mu.Lock()
	if _, exists := c.active[deviceID]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUpdateActive, deviceID)
	}
	c.mu.Unlock()

	upd, err := c.api.StartUpdate(ctx, deviceID, firmwareVersion, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.active[deviceID] = *upd
	c.mu.Unlock()

	c.logger.Info("ota rollout started", "device_id", deviceID, "update_id", upd.ID, "firmware", firmwareVersion)
	return upd, nil
}

// Poll refreshes every tracked rollout with the server's view.
//
// Terminal records are removed and emitted as events; observing at least
// one completed update triggers exactly one device-list reload for the
// cycle. A transport failure for a device logs and skips it, leaving the
// local record for the next cycle.
func (c *Coordinator) Poll(ctx context.Context) {
	c.mu.Lock()
	deviceIDs := make([]string, 0, len(c.active))
	for id := range c.active {
		deviceIDs = append(deviceIDs, id)
	}
	reload := c.onReload
	emit := c.onEvent
	c.mu.Unlock()

	completed := false
	for _, deviceID := range deviceIDs {
		upd, err := c.api.UpdateStatus(ctx, deviceID)
		if err != nil {
			c.logger.Warn("ota poll failed", "device_id", deviceID, "error", err)
			continue
		}

		c.mu.Lock()
		if ota.IsTerminal(upd.Status) {
			delete(c.active, deviceID)
		} else {
			c.active[deviceID] = *upd
		}
		c.mu.Unlock()

		if ota.IsTerminal(upd.Status) {
			c.logger.Info("ota rollout finished",
				"device_id", deviceID,
				"update_id", upd.ID,
				"status", upd.Status)
			if emit != nil {
				emit(*upd)
			}
			if upd.Status == ota.StatusCompleted {
				completed = true
			}
		}
	}

	if completed && reload != nil {
		reload()
	}
}

// Cancel aborts the active rollout for a device. The local record is
// removed as soon as the server confirms the cancellation.
func (c *Coordinator) Cancel(ctx context.Context, deviceID string) (*ota.Update, error) {
	c.mu.Lock()
	_, exists := c.active[deviceID]
	c.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveUpdate, deviceID)
	}

	upd, err := c.api.CancelUpdate(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	delete(c.active, deviceID)
	c.mu.Unlock()

	c.logger.Info("ota rollout cancelled", "device_id", deviceID, "update_id", upd.ID)
	return upd, nil
}

// Active returns the tracked rollout for a device, if any.
func (c *Coordinator) Active(deviceID string) (*ota.Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	upd, ok := c.active[deviceID]
	if !ok {
		return nil, false
	}
	cp := upd
	return &cp, true
}

// ActiveCount returns the number of tracked rollouts.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Step states for the progress display.
const (
	StepCompleted = "completed"
	StepActive    = "active"
	StepPending   = "pending"
	StepError     = "error"
)

// Step is one entry in the rollout progress display.
type Step struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// DeriveSteps projects an update onto the canonical step order
// (initiated, downloading, installing, restarting, completed).
//
// Steps before the current one show completed, the current one active,
// the rest pending. A failed update marks every step up to and including
// the one it died in as error. Cancelled rollouts read the same way.
func DeriveSteps(upd *ota.Update) []Step {
	current := stepIndex(upd)

	steps := make([]Step, len(ota.StepOrder))
	failed := upd.Status == ota.StatusFailed || upd.Status == ota.StatusCancelled
	for i, name := range ota.StepOrder {
		steps[i] = Step{Name: name}
		switch {
		case failed && i <= current:
			steps[i].State = StepError
		case failed:
			steps[i].State = StepPending
		case i < current:
			steps[i].State = StepCompleted
		case i == current:
			steps[i].State = StepActive
		default:
			steps[i].State = StepPending
		}
	}

	// A finished rollout shows every step done rather than a lone
	// active marker on the last one.
	if upd.Status == ota.StatusCompleted {
		for i := range steps {
			steps[i].State = StepCompleted
		}
	}

	return steps
}

// stepIndex locates the update within the canonical order. Statuses
// outside the order (in_progress, failed, cancelled) fall back to the
// reported progress percentage.
func stepIndex(upd *ota.Update) int {
	for i, name := range ota.StepOrder {
		if upd.Status == name {
			return i
		}
	}

	// 0-24 initiated, 25-49 downloading, 50-74 installing,
	// 75-99 restarting, 100 completed.
	switch {
	case upd.Progress >= 100:
		return len(ota.StepOrder) - 1
	case upd.Progress >= 75:
		return 3
	case upd.Progress >= 50:
		return 2
	case upd.Progress >= 25:
		return 1
	default:
		return 0
	}
}
