package sensor

import "errors"

var (
	// ErrSensorNotFound is returned when a sensor device ID does not exist.
	ErrSensorNotFound = errors.New("sensor: not found")

	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("sensor: alert not found")

	// ErrNoReadings is returned when an ingest batch contains no readings.
	ErrNoReadings = errors.New("sensor: no readings provided")

	// ErrInvalidReading is returned when a reading has an unknown sensor type.
	ErrInvalidReading = errors.New("sensor: invalid reading")
)
