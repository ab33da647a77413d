// Package device implements the device registry for HomeDeck.
//
// This package provides:
//   - Device types and per-type state property definitions
//   - A Repository interface with a SQLite implementation
//   - A Registry that layers an in-memory cache over the repository
//   - State patch validation with range clamping
//   - Append-only state change history
//   - Dashboard templates and the estimated energy model
//
// # Architecture
//
// The Registry is the single entry point for device reads and writes. All
// returned devices are deep copies, so callers can never mutate cached
// entries. State updates merge partial patches into the stored state using
// SQLite's json_patch, keeping unrelated properties intact.
//
// # State Validation
//
// Each device type declares the properties its state may contain, with
// numeric ranges or enumerated options. Numeric values outside the range
// are clamped rather than rejected; the clamped value is what gets stored
// and returned, making the server authoritative over optimistic clients.
package device
