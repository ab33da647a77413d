package room

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("room: not found")

	// ErrRoomExists is returned when creating a room whose ID is taken.
	ErrRoomExists = errors.New("room: already exists")

	// ErrRoomHasDevices is returned when trying to delete a room that
	// still has devices assigned to it.
	ErrRoomHasDevices = errors.New("room: has devices: reassign or delete devices first")

	// ErrInvalidRoom is returned when a nil room is passed to Validate.
	ErrInvalidRoom = errors.New("room: invalid room")

	// ErrInvalidName is returned when a room name is empty or too long.
	ErrInvalidName = errors.New("room: invalid name")
)
