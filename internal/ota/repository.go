package ota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines storage operations for OTA updates.
type Repository interface {
	Create(ctx context.Context, update *Update) error
	GetByID(ctx context.Context, id string) (*Update, error)
	GetActiveForDevice(ctx context.Context, deviceID string) (*Update, error)
	GetLatestForDevice(ctx context.Context, deviceID string) (*Update, error)
	SetProgress(ctx context.Context, id string, progress int, status string) error
	Finish(ctx context.Context, id, status, errorMessage string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed OTA repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const updateColumns = `id, device_id, firmware_version, update_status,
	progress_percentage, file_size, checksum, error_message, started_at, completed_at`

// Create inserts a new update record.
// Returns ErrUpdateActive when the device already has a running update;
// the partial unique index on active rows backs the manager's check.
func (r *SQLiteRepository) Create(ctx context.Context, update *Update) error {
	if update.ID == "" {
		update.ID = GenerateID()
	}
	if update.StartedAt.IsZero() {
		update.StartedAt = time.Now().UTC()
	}
	if update.Status == "" {
		update.Status = StatusInitiated
	}

	const query = `INSERT INTO ota_updates
		(id, device_id, firmware_version, update_status, progress_percentage,
		 file_size, checksum, error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`
	_, err := r.db.ExecContext(ctx, query,
		update.ID, update.DeviceID, update.FirmwareVersion, update.Status,
		update.Progress, update.FileSize, update.Checksum, update.ErrorMessage,
		update.StartedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUpdateActive
		}
		return fmt.Errorf("creating update for %s: %w", update.DeviceID, err)
	}
	return nil
}

// GetByID returns a single update, or ErrUpdateNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Update, error) {
	query := `SELECT ` + updateColumns + ` FROM ota_updates WHERE id = ?`
	update, err := scanUpdate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUpdateNotFound
		}
		return nil, fmt.Errorf("getting update %s: %w", id, err)
	}
	return update, nil
}

// GetActiveForDevice returns the device's running update, or nil when
// none is active.
func (r *SQLiteRepository) GetActiveForDevice(ctx context.Context, deviceID string) (*Update, error) {
	query := `SELECT ` + updateColumns + ` FROM ota_updates
		WHERE device_id = ? AND update_status NOT IN ('completed', 'failed', 'cancelled')
		LIMIT 1`
	update, err := scanUpdate(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting active update for %s: %w", deviceID, err)
	}
	return update, nil
}

// GetLatestForDevice returns the device's newest update of any status,
// or nil when the device has never been updated.
func (r *SQLiteRepository) GetLatestForDevice(ctx context.Context, deviceID string) (*Update, error) {
	query := `SELECT ` + updateColumns + ` FROM ota_updates
		WHERE device_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`
	update, err := scanUpdate(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest update for %s: %w", deviceID, err)
	}
	return update, nil
}

// SetProgress records progress and status for a running update.
func (r *SQLiteRepository) SetProgress(ctx context.Context, id string, progress int, status string) error {
	const query = `UPDATE ota_updates
		SET progress_percentage = ?, update_status = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, progress, status, id)
	if err != nil {
		return fmt.Errorf("updating progress for %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUpdateNotFound
	}
	return nil
}

// Finish moves an update to a terminal status and stamps completed_at.
// Completed updates also snap progress to 100.
func (r *SQLiteRepository) Finish(ctx context.Context, id, status, errorMessage string) error {
	query := `UPDATE ota_updates SET update_status = ?, error_message = ?, completed_at = ?`
	args := []any{status, errorMessage, time.Now().UTC().Format(time.RFC3339)}
	if status == StatusCompleted {
		query += `, progress_percentage = 100`
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finishing update %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUpdateNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpdate(scanner rowScanner) (*Update, error) {
	var u Update
	var fileSize sql.NullInt64
	var checksum, errorMessage, completedAt sql.NullString
	var startedAt string

	err := scanner.Scan(&u.ID, &u.DeviceID, &u.FirmwareVersion, &u.Status,
		&u.Progress, &fileSize, &checksum, &errorMessage, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	u.FileSize = fileSize.Int64
	u.Checksum = checksum.String
	u.ErrorMessage = errorMessage.String
	if u.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		u.CompletedAt = &t
	}
	return &u, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
