package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidState is returned when a state patch fails validation.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrUnknownProperty is returned when a state patch contains a property
	// the device type does not declare.
	ErrUnknownProperty = errors.New("device: unknown property")

	// ErrDeviceDisabled is returned when controlling a disabled device.
	ErrDeviceDisabled = errors.New("device: disabled")

	// ErrRoomNotFound is returned when a referenced room does not exist.
	ErrRoomNotFound = errors.New("device: room not found")
)
