package sensor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines storage operations for the sensor fleet.
type Repository interface {
	// Devices.
	Upsert(ctx context.Context, device *Device) error
	List(ctx context.Context) ([]Device, error)
	GetByID(ctx context.Context, id string) (*Device, error)
	UpdateConfig(ctx context.Context, id string, config map[string]any) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error

	// Readings.
	InsertReadings(ctx context.Context, readings []Reading) (int, error)
	QueryReadings(ctx context.Context, deviceID, sensorType string, since time.Time) ([]Reading, error)
	LatestReading(ctx context.Context, deviceID, sensorType string) (*Reading, error)
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Alerts.
	CreateAlert(ctx context.Context, alert *Alert) error
	ListAlerts(ctx context.Context, activeOnly bool) ([]Alert, error)
	HasActiveAlert(ctx context.Context, deviceID, alertType string) (bool, error)
	AcknowledgeAlert(ctx context.Context, id string) error
	DeactivateAlerts(ctx context.Context, deviceID, alertType string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed sensor repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, device_type, room, ip_address, mac_address,
	firmware_version, config, enabled, last_seen, created_at, updated_at`

// Upsert inserts a sensor device or refreshes an existing registration.
// Registration is idempotent: ESP32 nodes re-register on every boot.
func (r *SQLiteRepository) Upsert(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	configJSON, err := marshalConfig(device.Config)
	if err != nil {
		return fmt.Errorf("marshaling config for sensor %s: %w", device.ID, err)
	}

	const query = `INSERT INTO sensor_devices
		(id, name, device_type, room, ip_address, mac_address,
		 firmware_version, config, enabled, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			room = excluded.room,
			ip_address = excluded.ip_address,
			mac_address = excluded.mac_address,
			firmware_version = excluded.firmware_version,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		device.ID, device.Name, device.DeviceType, device.Room,
		device.IPAddress, device.MACAddress, device.FirmwareVersion,
		configJSON, boolToInt(device.Enabled), nullableTime(device.LastSeen),
		device.CreatedAt.Format(time.RFC3339), device.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting sensor %s: %w", device.ID, err)
	}
	return nil
}

// List returns all sensor devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM sensor_devices ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing sensors: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var devices []Device
	for rows.Next() {
		device, err := scanSensorDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sensor: %w", err)
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}

// GetByID returns a single sensor device, or ErrSensorNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM sensor_devices WHERE id = ?`
	device, err := scanSensorDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("getting sensor %s: %w", id, err)
	}
	return device, nil
}

// UpdateConfig replaces the device's configuration document.
func (r *SQLiteRepository) UpdateConfig(ctx context.Context, id string, config map[string]any) error {
	configJSON, err := marshalConfig(config)
	if err != nil {
		return fmt.Errorf("marshaling config for sensor %s: %w", id, err)
	}
	const query = `UPDATE sensor_devices SET config = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		configJSON, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating sensor config %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// TouchLastSeen records device liveness without changing anything else.
func (r *SQLiteRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE sensor_devices SET last_seen = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touching sensor %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// InsertReadings appends a batch of readings in a single transaction.
// Returns the number of rows stored.
func (r *SQLiteRepository) InsertReadings(ctx context.Context, readings []Reading) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning readings transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const query = `INSERT INTO sensor_readings
		(device_id, sensor_type, value, unit, quality, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`
	stored := 0
	for _, reading := range readings {
		quality := reading.Quality
		if quality == "" {
			quality = QualityGood
		}
		ts := reading.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query,
			reading.DeviceID, reading.SensorType, reading.Value,
			reading.Unit, quality, ts.UTC().Format(time.RFC3339)); err != nil {
			return 0, fmt.Errorf("inserting reading for %s: %w", reading.DeviceID, err)
		}
		stored++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing readings: %w", err)
	}
	return stored, nil
}

// QueryReadings returns readings for one device since a cutoff,
// oldest first. An empty sensorType matches all types.
func (r *SQLiteRepository) QueryReadings(ctx context.Context, deviceID, sensorType string, since time.Time) ([]Reading, error) {
	query := `SELECT id, device_id, sensor_type, value, unit, quality, timestamp
		FROM sensor_readings WHERE device_id = ? AND timestamp >= ?`
	args := []any{deviceID, since.UTC().Format(time.RFC3339)}
	if sensorType != "" {
		query += ` AND sensor_type = ?`
		args = append(args, sensorType)
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings for %s: %w", deviceID, err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, *reading)
	}
	return readings, rows.Err()
}

// LatestReading returns the newest sample of one type for a device,
// or nil when the device has never reported that type.
func (r *SQLiteRepository) LatestReading(ctx context.Context, deviceID, sensorType string) (*Reading, error) {
	const query = `SELECT id, device_id, sensor_type, value, unit, quality, timestamp
		FROM sensor_readings WHERE device_id = ? AND sensor_type = ?
		ORDER BY timestamp DESC LIMIT 1`
	reading, err := scanReading(r.db.QueryRowContext(ctx, query, deviceID, sensorType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest %s reading for %s: %w", sensorType, deviceID, err)
	}
	return reading, nil
}

// DeleteReadingsBefore removes readings older than the cutoff.
// Returns the number of rows deleted.
func (r *SQLiteRepository) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sensor_readings WHERE timestamp < ?",
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting old readings: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// CreateAlert inserts a new alert.
func (r *SQLiteRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	if alert.ID == "" {
		alert.ID = GenerateAlertID()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sensor_alerts
		(id, device_id, alert_type, severity, message,
		 threshold_value, current_value, is_active, acknowledged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.DeviceID, alert.AlertType, alert.Severity, alert.Message,
		nullableFloat(alert.ThresholdValue), nullableFloat(alert.CurrentValue),
		boolToInt(alert.IsActive), boolToInt(alert.Acknowledged),
		alert.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating alert for %s: %w", alert.DeviceID, err)
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally only active
// unacknowledged ones.
func (r *SQLiteRepository) ListAlerts(ctx context.Context, activeOnly bool) ([]Alert, error) {
	query := `SELECT id, device_id, alert_type, severity, message,
		threshold_value, current_value, is_active, acknowledged, created_at
		FROM sensor_alerts`
	if activeOnly {
		query += ` WHERE is_active = 1 AND acknowledged = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var alerts []Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

// HasActiveAlert reports whether the device already has an active
// unacknowledged alert of the given type.
func (r *SQLiteRepository) HasActiveAlert(ctx context.Context, deviceID, alertType string) (bool, error) {
	const query = `SELECT COUNT(*) FROM sensor_alerts
		WHERE device_id = ? AND alert_type = ? AND is_active = 1 AND acknowledged = 0`
	var count int
	if err := r.db.QueryRowContext(ctx, query, deviceID, alertType).Scan(&count); err != nil {
		return false, fmt.Errorf("checking active alerts for %s: %w", deviceID, err)
	}
	return count > 0, nil
}

// AcknowledgeAlert marks an alert acknowledged and inactive.
// Acknowledgement cannot be undone.
func (r *SQLiteRepository) AcknowledgeAlert(ctx context.Context, id string) error {
	const query = `UPDATE sensor_alerts SET acknowledged = 1, is_active = 0 WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("acknowledging alert %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// DeactivateAlerts clears active alerts of one type for a device,
// used when the condition that raised them has resolved.
func (r *SQLiteRepository) DeactivateAlerts(ctx context.Context, deviceID, alertType string) error {
	const query = `UPDATE sensor_alerts SET is_active = 0
		WHERE device_id = ? AND alert_type = ? AND is_active = 1`
	if _, err := r.db.ExecContext(ctx, query, deviceID, alertType); err != nil {
		return fmt.Errorf("deactivating %s alerts for %s: %w", alertType, deviceID, err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSensorDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var config sql.NullString
	var lastSeen sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := scanner.Scan(&d.ID, &d.Name, &d.DeviceType, &d.Room,
		&d.IPAddress, &d.MACAddress, &d.FirmwareVersion,
		&config, &enabled, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Enabled = enabled != 0
	if config.Valid && config.String != "" {
		if err := json.Unmarshal([]byte(config.String), &d.Config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}
	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		d.LastSeen = &t
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

func scanReading(scanner rowScanner) (*Reading, error) {
	var reading Reading
	var ts string
	err := scanner.Scan(&reading.ID, &reading.DeviceID, &reading.SensorType,
		&reading.Value, &reading.Unit, &reading.Quality, &ts)
	if err != nil {
		return nil, err
	}
	if reading.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	return &reading, nil
}

func scanAlert(scanner rowScanner) (*Alert, error) {
	var alert Alert
	var threshold, current sql.NullFloat64
	var isActive, acknowledged int
	var createdAt string

	err := scanner.Scan(&alert.ID, &alert.DeviceID, &alert.AlertType,
		&alert.Severity, &alert.Message, &threshold, &current,
		&isActive, &acknowledged, &createdAt)
	if err != nil {
		return nil, err
	}

	if threshold.Valid {
		alert.ThresholdValue = &threshold.Float64
	}
	if current.Valid {
		alert.CurrentValue = &current.Float64
	}
	alert.IsActive = isActive != 0
	alert.Acknowledged = acknowledged != 0
	if alert.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &alert, nil
}

func marshalConfig(config map[string]any) (any, error) {
	if config == nil {
		return nil, nil
	}
	b, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
