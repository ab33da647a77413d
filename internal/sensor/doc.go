// Package sensor manages the ESP32 telemetry fleet.
//
// Sensor devices self-register over REST or MQTT and stream
// temperature/humidity readings. Each ingest batch updates last_seen,
// appends readings, and runs the threshold checker, which raises alerts
// when values leave the per-device configured band. A periodic sweep
// marks devices stale when they stop reporting.
package sensor
