package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/jmorrell/homedeck/internal/sensor"
)

// defaultStaleAfter mirrors the server's sensor liveness window.
const defaultStaleAfter = 300 * time.Second

// SensorAPI is the slice of the API client the monitor needs.
type SensorAPI interface {
	ListSensors(ctx context.Context) ([]sensor.Device, error)
	SensorSummary(ctx context.Context) (*sensor.Summary, error)
	ActiveAlerts(ctx context.Context) ([]sensor.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string) error
}

// Monitor keeps the panel's view of the sensor fleet: the telemetry
// summary, the active alert list, and per-sensor liveness.
//
// It satisfies SensorDirectory for the OTA coordinator's offline guard.
type Monitor struct {
	api        SensorAPI
	logger     Logger
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	summary sensor.Summary
	alerts  []sensor.Alert
	sensors map[string]sensor.Device

	// onChange fires after every successful refresh.
	onChange func(summary sensor.Summary, alerts []sensor.Alert)
}

// NewMonitor creates a monitor. staleAfter <= 0 falls back to the
// server default of 300 seconds.
func NewMonitor(api SensorAPI, staleAfter time.Duration) *Monitor {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Monitor{
		api:        api,
		logger:     noopLogger{},
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
		sensors:    map[string]sensor.Device{},
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (m *Monitor) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetChangeHook registers the callback fired after each refresh.
func (m *Monitor) SetChangeHook(hook func(summary sensor.Summary, alerts []sensor.Alert)) {
	m.mu.Lock()
	m.onChange = hook
	m.mu.Unlock()
}

// Refresh pulls the summary, active alerts, and sensor list. A transport
// failure logs and keeps the previous view rather than blanking the
// telemetry pane.
func (m *Monitor) Refresh(ctx context.Context) error {
	summary, err := m.api.SensorSummary(ctx)
	if err != nil {
		m.logger.Warn("sensor summary refresh failed", "error", err)
		return err
	}
	alerts, err := m.api.ActiveAlerts(ctx)
	if err != nil {
		m.logger.Warn("alert refresh failed", "error", err)
		return err
	}
	sensors, err := m.api.ListSensors(ctx)
	if err != nil {
		m.logger.Warn("sensor list refresh failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.summary = *summary
	m.alerts = alerts
	m.sensors = make(map[string]sensor.Device, len(sensors))
	for i := range sensors {
		m.sensors[sensors[i].ID] = sensors[i]
	}
	hook := m.onChange
	m.mu.Unlock()

	if hook != nil {
		hook(*summary, alerts)
	}
	return nil
}

// Acknowledge marks an alert as seen on the server and drops it from the
// local active list. Acknowledgement is one-way.
func (m *Monitor) Acknowledge(ctx context.Context, alertID string) error {
	if err := m.api.AcknowledgeAlert(ctx, alertID); err != nil {
		return err
	}

	m.mu.Lock()
	kept := m.alerts[:0]
	for _, alert := range m.alerts {
		if alert.ID != alertID {
			kept = append(kept, alert)
		}
	}
	m.alerts = kept
	m.mu.Unlock()
	return nil
}

// Online reports whether a sensor has been heard from within the
// staleness window. Unknown sensors read as offline.
func (m *Monitor) Online(deviceID string) bool {
	m.mu.RLock()
	dev, ok := m.sensors[deviceID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return dev.Online(m.now(), m.staleAfter)
}

// Summary returns the latest fleet summary.
func (m *Monitor) Summary() sensor.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// Alerts returns the latest active alerts.
func (m *Monitor) Alerts() []sensor.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]sensor.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
