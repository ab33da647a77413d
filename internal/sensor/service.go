package sensor

import (
	"context"
	"fmt"
	"time"
)

// criticalBand is how far past a threshold a value must be before an
// alert escalates from warning to critical.
const criticalBand = 5.0

// DefaultRetentionDays bounds how long readings are kept.
const DefaultRetentionDays = 30

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

// Mirror receives a copy of every stored reading, typically backed by
// InfluxDB for long-horizon charting. Implementations must not block.
type Mirror interface {
	MirrorReading(deviceID string, reading Reading)
}

// Service coordinates registration, ingest, threshold checking, and
// housekeeping for the sensor fleet.
type Service struct {
	repo       Repository
	logger     Logger
	mirror     Mirror
	staleAfter time.Duration
	now        func() time.Time
}

// NewService creates a sensor service.
//
// Parameters:
//   - repo: sensor storage
//   - staleAfter: how long without contact before a device counts offline
func NewService(repo Repository, staleAfter time.Duration) *Service {
	return &Service{
		repo:       repo,
		logger:     noopLogger{},
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger attaches a logger. Safe to call with nil.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMirror attaches a reading mirror. Safe to call with nil.
func (s *Service) SetMirror(mirror Mirror) {
	s.mirror = mirror
}

// Register upserts a sensor device and stamps last_seen.
func (s *Service) Register(ctx context.Context, device *Device) error {
	if device.DeviceType == "" {
		device.DeviceType = DefaultDeviceType
	}
	if device.Name == "" {
		device.Name = device.ID
	}
	now := s.now()
	device.LastSeen = &now
	device.Enabled = true

	if err := s.repo.Upsert(ctx, device); err != nil {
		return err
	}
	s.logger.Info("sensor registered",
		"sensor_id", device.ID,
		"firmware", device.FirmwareVersion,
		"ip", device.IPAddress)
	return nil
}

// RecordReadings stores an ingest batch for one device, refreshes its
// liveness, and runs the threshold checker against the new values.
//
// Returns the number of readings stored.
func (s *Service) RecordReadings(ctx context.Context, deviceID string, readings []Reading) (int, error) {
	if len(readings) == 0 {
		return 0, ErrNoReadings
	}

	device, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return 0, err
	}

	for i := range readings {
		readings[i].DeviceID = deviceID
		switch readings[i].SensorType {
		case TypeTemperature, TypeHumidity:
		default:
			return 0, fmt.Errorf("%w: unknown sensor type %q", ErrInvalidReading, readings[i].SensorType)
		}
	}

	stored, err := s.repo.InsertReadings(ctx, readings)
	if err != nil {
		return 0, err
	}
	if err := s.repo.TouchLastSeen(ctx, deviceID, s.now()); err != nil {
		s.logger.Warn("failed to update sensor liveness", "sensor_id", deviceID, "error", err)
	}

	// Device reported, so any offline alert has resolved.
	if err := s.repo.DeactivateAlerts(ctx, deviceID, AlertDeviceOffline); err != nil {
		s.logger.Warn("failed to clear offline alerts", "sensor_id", deviceID, "error", err)
	}

	if s.mirror != nil {
		for _, reading := range readings {
			s.mirror.MirrorReading(deviceID, reading)
		}
	}

	if err := s.checkDeviceThresholds(ctx, device, readings); err != nil {
		s.logger.Error("threshold check failed", "sensor_id", deviceID, "error", err)
	}
	return stored, nil
}

// checkDeviceThresholds compares the batch's newest value per type
// against the device's configured band and raises alerts on breaches.
func (s *Service) checkDeviceThresholds(ctx context.Context, device *Device, readings []Reading) error {
	thresholds := device.GetThresholds()
	latest := map[string]float64{}
	for _, reading := range readings {
		latest[reading.SensorType] = reading.Value
	}

	if temp, ok := latest[TypeTemperature]; ok {
		if thresholds.TemperatureHigh != nil && temp > *thresholds.TemperatureHigh {
			if err := s.raiseAlert(ctx, device.ID, AlertTemperatureHigh, temp, *thresholds.TemperatureHigh,
				fmt.Sprintf("Temperature above threshold: %.1f°C (threshold: %.1f°C)", temp, *thresholds.TemperatureHigh)); err != nil {
				return err
			}
		} else if thresholds.TemperatureLow != nil && temp < *thresholds.TemperatureLow {
			if err := s.raiseAlert(ctx, device.ID, AlertTemperatureLow, temp, *thresholds.TemperatureLow,
				fmt.Sprintf("Temperature below threshold: %.1f°C (threshold: %.1f°C)", temp, *thresholds.TemperatureLow)); err != nil {
				return err
			}
		}
	}

	if humidity, ok := latest[TypeHumidity]; ok {
		if thresholds.HumidityHigh != nil && humidity > *thresholds.HumidityHigh {
			if err := s.raiseAlert(ctx, device.ID, AlertHumidityHigh, humidity, *thresholds.HumidityHigh,
				fmt.Sprintf("Humidity above threshold: %.1f%% (threshold: %.1f%%)", humidity, *thresholds.HumidityHigh)); err != nil {
				return err
			}
		} else if thresholds.HumidityLow != nil && humidity < *thresholds.HumidityLow {
			if err := s.raiseAlert(ctx, device.ID, AlertHumidityLow, humidity, *thresholds.HumidityLow,
				fmt.Sprintf("Humidity below threshold: %.1f%% (threshold: %.1f%%)", humidity, *thresholds.HumidityLow)); err != nil {
				return err
			}
		}
	}
	return nil
}

// raiseAlert creates a threshold alert unless an active one of the same
// type already exists for the device.
func (s *Service) raiseAlert(ctx context.Context, deviceID, alertType string, current, threshold float64, message string) error {
	exists, err := s.repo.HasActiveAlert(ctx, deviceID, alertType)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	severity := SeverityWarning
	if abs(current-threshold) > criticalBand {
		severity = SeverityCritical
	}
	alert := &Alert{
		DeviceID:       deviceID,
		AlertType:      alertType,
		Severity:       severity,
		Message:        message,
		ThresholdValue: &threshold,
		CurrentValue:   &current,
		IsActive:       true,
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return err
	}
	s.logger.Warn("sensor alert raised",
		"sensor_id", deviceID,
		"alert_type", alertType,
		"severity", severity,
		"value", current)
	return nil
}

// SweepStale raises offline warnings for devices that have not reported
// within the stale window. Ran periodically by the server scheduler.
//
// Returns the number of new offline alerts raised.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	raised := 0
	for i := range devices {
		device := &devices[i]
		if !device.Enabled || device.Online(now, s.staleAfter) {
			continue
		}
		exists, err := s.repo.HasActiveAlert(ctx, device.ID, AlertDeviceOffline)
		if err != nil {
			return raised, err
		}
		if exists {
			continue
		}
		alert := &Alert{
			DeviceID:  device.ID,
			AlertType: AlertDeviceOffline,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Device %s is offline and not responding", device.ID),
			IsActive:  true,
		}
		if err := s.repo.CreateAlert(ctx, alert); err != nil {
			return raised, err
		}
		raised++
		s.logger.Warn("sensor went offline", "sensor_id", device.ID)
	}
	return raised, nil
}

// Readings returns a time window of readings for one device, sampled
// down to at most limit points when the window holds more.
func (s *Service) Readings(ctx context.Context, deviceID, sensorType string, hours, limit int) ([]Reading, error) {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 100
	}
	if _, err := s.repo.GetByID(ctx, deviceID); err != nil {
		return nil, err
	}

	since := s.now().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.repo.QueryReadings(ctx, deviceID, sensorType, since)
	if err != nil {
		return nil, err
	}
	return sampleReadings(readings, limit), nil
}

// sampleReadings thins a series to at most limit evenly spaced points.
func sampleReadings(readings []Reading, limit int) []Reading {
	if len(readings) <= limit {
		return readings
	}
	step := len(readings) / limit
	sampled := make([]Reading, 0, limit)
	for i := 0; i < len(readings) && len(sampled) < limit; i += step {
		sampled = append(sampled, readings[i])
	}
	return sampled
}

// GetSummary aggregates fleet status for the dashboard header.
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary := &Summary{
		TotalDevices:   len(devices),
		LatestReadings: map[string]LatestReadings{},
	}
	for i := range devices {
		device := &devices[i]
		if device.Online(now, s.staleAfter) {
			summary.OnlineDevices++
		}

		latest := LatestReadings{Room: device.Room}
		if reading, err := s.repo.LatestReading(ctx, device.ID, TypeTemperature); err == nil && reading != nil {
			latest.Temperature = &reading.Value
		}
		if reading, err := s.repo.LatestReading(ctx, device.ID, TypeHumidity); err == nil && reading != nil {
			latest.Humidity = &reading.Value
		}
		if latest.Temperature != nil || latest.Humidity != nil {
			summary.LatestReadings[device.ID] = latest
		}
	}
	summary.OfflineDevices = summary.TotalDevices - summary.OnlineDevices

	alerts, err := s.repo.ListAlerts(ctx, true)
	if err != nil {
		return nil, err
	}
	summary.ActiveAlerts = len(alerts)
	for _, alert := range alerts {
		if alert.Severity == SeverityCritical {
			summary.CriticalAlerts++
		}
	}
	return summary, nil
}

// Cleanup deletes readings older than retentionDays.
// Returns the number of rows deleted.
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteReadingsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("sensor readings cleanup", "deleted", deleted, "retention_days", retentionDays)
	}
	return deleted, nil
}

// ListSensors returns all registered sensor devices.
func (s *Service) ListSensors(ctx context.Context) ([]Device, error) {
	return s.repo.List(ctx)
}

// GetSensor returns one sensor device.
func (s *Service) GetSensor(ctx context.Context, id string) (*Device, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateSensorConfig replaces a sensor's configuration document.
func (s *Service) UpdateSensorConfig(ctx context.Context, id string, config map[string]any) error {
	return s.repo.UpdateConfig(ctx, id, config)
}

// ListAlerts returns alerts, optionally only active unacknowledged ones.
func (s *Service) ListAlerts(ctx context.Context, activeOnly bool) ([]Alert, error) {
	return s.repo.ListAlerts(ctx, activeOnly)
}

// AcknowledgeAlert marks an alert acknowledged. One-way.
func (s *Service) AcknowledgeAlert(ctx context.Context, id string) error {
	return s.repo.AcknowledgeAlert(ctx, id)
}

// StaleAfter exposes the configured liveness window.
func (s *Service) StaleAfter() time.Duration {
	return s.staleAfter
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
