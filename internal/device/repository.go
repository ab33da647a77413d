package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByRoom retrieves all devices assigned to a specific room.
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)

	// ListByType retrieves all devices of a specific type.
	ListByType(ctx context.Context, t DeviceType) ([]Device, error)

	// CountByRoom returns the number of devices assigned to a room.
	CountByRoom(ctx context.Context, roomID string) (int, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState merges a partial state patch into the stored state.
	// This is optimised for frequent control calls.
	UpdateState(ctx context.Context, id string, state State) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, device_type, room_id, category, icon,
	enabled, configuration, current_state, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY name")
}

// ListByRoom retrieves all devices assigned to a specific room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE room_id = ? ORDER BY name", roomID)
}

// ListByType retrieves all devices of a specific type.
func (r *SQLiteRepository) ListByType(ctx context.Context, t DeviceType) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE device_type = ? ORDER BY name", string(t))
}

// CountByRoom returns the number of devices assigned to a room.
func (r *SQLiteRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE room_id = ?", roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices by room: %w", err)
	}
	return count, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	configJSON, err := json.Marshal(device.Config)
	if err != nil {
		return fmt.Errorf("marshalling configuration: %w", err)
	}

	var stateJSON []byte
	if device.State != nil {
		stateJSON, err = json.Marshal(device.State)
		if err != nil {
			return fmt.Errorf("marshalling state: %w", err)
		}
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, name, device_type, room_id, category, icon,
			enabled, configuration, current_state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		string(device.Type),
		nullableString(device.RoomID),
		string(device.Category),
		device.Icon,
		boolToInt(device.Enabled),
		string(configJSON),
		nullableBytes(stateJSON),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	exists, err := r.exists(ctx, device.ID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrDeviceNotFound
	}

	configJSON, err := json.Marshal(device.Config)
	if err != nil {
		return fmt.Errorf("marshalling configuration: %w", err)
	}

	var stateJSON []byte
	if device.State != nil {
		stateJSON, err = json.Marshal(device.State)
		if err != nil {
			return fmt.Errorf("marshalling state: %w", err)
		}
	}

	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, device_type = ?, room_id = ?, category = ?, icon = ?,
			enabled = ?, configuration = ?, current_state = ?, updated_at = ?
		WHERE id = ?`

	_, err = r.db.ExecContext(ctx, query,
		device.Name,
		string(device.Type),
		nullableString(device.RoomID),
		string(device.Category),
		device.Icon,
		boolToInt(device.Enabled),
		string(configJSON),
		nullableBytes(stateJSON),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdateState merges the given state fields into the device's existing state.
// This allows partial updates (e.g., changing "power" without losing "brightness").
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	// json_patch(target, patch) applies patch keys to target, preserving
	// existing keys not present in patch.
	query := `
		UPDATE devices
		SET current_state = json_patch(COALESCE(current_state, '{}'), ?),
		    updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(stateJSON),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// exists checks if a device with the given ID exists.
func (r *SQLiteRepository) exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking device exists: %w", err)
	}
	return count > 0, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var roomID sql.NullString
	var stateJSON sql.NullString
	var configJSON string
	var enabled int
	var deviceType, category string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&deviceType,
		&roomID,
		&category,
		&d.Icon,
		&enabled,
		&configJSON,
		&stateJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.Category = Category(category)
	d.Enabled = enabled != 0

	if roomID.Valid {
		d.RoomID = &roomID.String
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &d.Config); err != nil {
			return nil, fmt.Errorf("unmarshalling configuration: %w", err)
		}
	}

	// A NULL current_state means the device has never reported; the
	// field stays nil so Online() derives offline.
	if stateJSON.Valid && stateJSON.String != "" {
		if err := json.Unmarshal([]byte(stateJSON.String), &d.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
	}

	return &d, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableBytes returns a sql.NullString for optional byte slices.
func nullableBytes(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
