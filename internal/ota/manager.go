package ota

import (
	"context"
	"sync"
	"time"

	"github.com/jmorrell/homedeck/internal/sensor"
)

// Logger is the minimal logging interface the manager needs.
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

// DeviceDirectory resolves sensor devices for liveness checks.
type DeviceDirectory interface {
	GetSensor(ctx context.Context, id string) (*sensor.Device, error)
}

// simulationProgress maps each canonical step to its reported percent.
var simulationProgress = map[string]int{
	StatusInitiated:   0,
	StatusDownloading: 25,
	StatusInstalling:  50,
	StatusRestarting:  75,
	StatusCompleted:   100,
}

// Manager coordinates firmware updates.
type Manager struct {
	repo       Repository
	devices    DeviceDirectory
	logger     Logger
	staleAfter time.Duration

	simulate     bool
	stepInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewManager creates an OTA manager.
//
// Parameters:
//   - repo: update storage
//   - devices: sensor directory for liveness checks
//   - staleAfter: liveness window shared with the sensor service
//   - simulate: advance updates on a timer instead of waiting for the
//     device progress callback (dev mode)
//   - stepInterval: time between simulated steps
func NewManager(repo Repository, devices DeviceDirectory, staleAfter time.Duration, simulate bool, stepInterval time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:         repo,
		devices:      devices,
		logger:       noopLogger{},
		staleAfter:   staleAfter,
		simulate:     simulate,
		stepInterval: stepInterval,
		ctx:          ctx,
		cancel:       cancel,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Close stops any running simulation loops and waits for them.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// StartUpdate begins a firmware rollout for one device.
//
// Returns ErrMissingFirmware, ErrDeviceOffline, or ErrUpdateActive on
// the corresponding precondition failures.
func (m *Manager) StartUpdate(ctx context.Context, deviceID, firmwareVersion string, opts Options) (*Update, error) {
	if firmwareVersion == "" {
		return nil, ErrMissingFirmware
	}

	device, err := m.devices.GetSensor(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !device.Online(m.now(), m.staleAfter) {
		return nil, ErrDeviceOffline
	}

	active, err := m.repo.GetActiveForDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrUpdateActive
	}

	update := &Update{
		DeviceID:        deviceID,
		FirmwareVersion: firmwareVersion,
		Status:          StatusInitiated,
	}
	if err := m.repo.Create(ctx, update); err != nil {
		return nil, err
	}
	m.logger.Info("ota update started",
		"update_id", update.ID,
		"sensor_id", deviceID,
		"firmware", firmwareVersion,
		"safe_mode", opts.SafeMode)

	if m.simulate {
		m.wg.Add(1)
		go m.simulateUpdate(update.ID)
	}
	return update, nil
}

// Status returns the device's newest update, or nil when it has none.
func (m *Manager) Status(ctx context.Context, deviceID string) (*Update, error) {
	if _, err := m.devices.GetSensor(ctx, deviceID); err != nil {
		return nil, err
	}
	return m.repo.GetLatestForDevice(ctx, deviceID)
}

// Cancel aborts the device's running update.
// Returns ErrNotCancellable when no update is active.
func (m *Manager) Cancel(ctx context.Context, deviceID string) (*Update, error) {
	active, err := m.repo.GetActiveForDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNotCancellable
	}
	if err := m.repo.Finish(ctx, active.ID, StatusCancelled, "cancelled by user"); err != nil {
		return nil, err
	}
	m.logger.Info("ota update cancelled", "update_id", active.ID, "sensor_id", deviceID)
	return m.repo.GetByID(ctx, active.ID)
}

// Progress records a device-reported progress callback.
//
// Progress is clamped to [0, 100]; reaching 100 auto-completes the
// update. A terminal status in the callback finishes it directly.
func (m *Manager) Progress(ctx context.Context, updateID string, progress int, status, errorMessage string) (*Update, error) {
	update, err := m.repo.GetByID(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if IsTerminal(update.Status) {
		return update, nil
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	switch {
	case status == StatusFailed:
		err = m.repo.Finish(ctx, updateID, StatusFailed, errorMessage)
	case status == StatusCompleted || progress >= 100:
		err = m.repo.Finish(ctx, updateID, StatusCompleted, "")
	default:
		if status == "" {
			status = StatusInProgress
		}
		err = m.repo.SetProgress(ctx, updateID, progress, status)
	}
	if err != nil {
		return nil, err
	}
	return m.repo.GetByID(ctx, updateID)
}

// simulateUpdate walks an update through the canonical steps on a
// timer, stopping early if it is cancelled or the manager closes.
func (m *Manager) simulateUpdate(updateID string) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		update, err := m.repo.GetByID(m.ctx, updateID)
		if err != nil {
			m.logger.Error("ota simulation lost its update", "update_id", updateID, "error", err)
			return
		}
		if IsTerminal(update.Status) {
			return
		}

		next := nextStep(update.Status)
		if next == StatusCompleted {
			if err := m.repo.Finish(m.ctx, updateID, StatusCompleted, ""); err != nil {
				m.logger.Error("ota simulation finish failed", "update_id", updateID, "error", err)
			}
			m.logger.Info("ota update completed", "update_id", updateID, "sensor_id", update.DeviceID)
			return
		}
		if err := m.repo.SetProgress(m.ctx, updateID, simulationProgress[next], next); err != nil {
			m.logger.Error("ota simulation step failed", "update_id", updateID, "error", err)
			return
		}
		m.logger.Debug("ota simulation step",
			"update_id", updateID, "status", next, "progress", simulationProgress[next])
	}
}

// nextStep returns the status after the given one in the canonical
// order. Statuses outside the order (in_progress) resume at installing.
func nextStep(status string) string {
	for i, step := range StepOrder {
		if step == status && i+1 < len(StepOrder) {
			return StepOrder[i+1]
		}
	}
	return StatusInstalling
}
