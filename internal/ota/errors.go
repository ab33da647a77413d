package ota

import "errors"

var (
	// ErrUpdateNotFound is returned when an update ID does not exist.
	ErrUpdateNotFound = errors.New("ota: update not found")

	// ErrUpdateActive is returned when starting an update for a device
	// that already has one running.
	ErrUpdateActive = errors.New("ota: update already in progress")

	// ErrDeviceOffline is returned when starting an update for a device
	// that has not reported recently.
	ErrDeviceOffline = errors.New("ota: device is offline")

	// ErrNotCancellable is returned when cancelling an update that has
	// already reached a terminal status.
	ErrNotCancellable = errors.New("ota: update is not cancellable")

	// ErrMissingFirmware is returned when a start request omits the
	// firmware version.
	ErrMissingFirmware = errors.New("ota: missing firmware version")
)
