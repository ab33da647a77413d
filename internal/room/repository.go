package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines storage operations for rooms.
type Repository interface {
	Create(ctx context.Context, room *Room) error
	List(ctx context.Context) ([]Room, error)
	GetByID(ctx context.Context, id string) (*Room, error)
	Update(ctx context.Context, room *Room) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed room repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const roomColumns = `id, name, description, icon, created_at, updated_at`

// Create inserts a new room.
// Returns ErrRoomExists if the ID is already taken.
func (r *SQLiteRepository) Create(ctx context.Context, room *Room) error {
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, name, description, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.Description, room.Icon,
		room.CreatedAt.Format(time.RFC3339), room.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRoomExists
		}
		return fmt.Errorf("creating room %s: %w", room.ID, err)
	}
	return nil
}

// List returns all rooms ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

// GetByID returns a single room, or ErrRoomNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("getting room %s: %w", id, err)
	}
	return room, nil
}

// Update rewrites a room's mutable fields.
// Returns ErrRoomNotFound if the room does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, room *Room) error {
	room.UpdatedAt = time.Now().UTC()

	const query = `UPDATE rooms SET name = ?, description = ?, icon = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		room.Name, room.Description, room.Icon,
		room.UpdatedAt.Format(time.RFC3339), room.ID)
	if err != nil {
		return fmt.Errorf("updating room %s: %w", room.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Delete removes a single room by ID.
// Returns ErrRoomNotFound if the room does not exist.
// Returns ErrRoomHasDevices if devices still reference this room.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	// Check for assigned devices before touching the row.
	var deviceCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE room_id = ?", id).Scan(&deviceCount); err != nil {
		return fmt.Errorf("counting devices for room %s: %w", id, err)
	}
	if deviceCount > 0 {
		return ErrRoomHasDevices
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteAll removes every room that has no devices assigned.
// Returns the number of rows deleted.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	const query = `DELETE FROM rooms WHERE id NOT IN (
		SELECT room_id FROM devices WHERE room_id IS NOT NULL)`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("deleting rooms: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*Room, error) {
	var room Room
	var createdAt, updatedAt string
	err := row.Scan(&room.ID, &room.Name, &room.Description, &room.Icon,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if room.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if room.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &room, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
