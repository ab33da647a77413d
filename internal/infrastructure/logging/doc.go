// Package logging provides structured logging for HomeDeck.
//
// It wraps log/slog with configuration-driven level, format, and output
// selection, plus default service/version fields on every record.
//
// Components obtain a scoped logger via With:
//
//	log := logger.With("component", "sensors")
//	log.Info("reading recorded", "device_id", id)
package logging
