// Package dashboard implements the headless panel client.
//
// It maintains a local device cache fed by the HomeDeck REST API, derives
// card view models for rendering, and runs independent polling loops for
// OTA progress and sensor telemetry. A Controller owns every loop as a
// cancellable task; Close tears all of them down.
//
// The package has no rendering layer of its own. A render hook on the
// Store receives the current cards and aggregates after every cache
// change, so a caller can drive any surface (terminal, e-ink, tests).
package dashboard
