// Package provision handles bulk configuration of the home: export and
// import of the full room/device setup, factory reset to a default
// layout, standalone validation of device definitions, and a discovery
// placeholder.
//
// Import is forgiving: rooms load before devices, existing entries are
// skipped, and per-item failures are collected instead of aborting the
// run.
package provision
