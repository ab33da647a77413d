// Package ota coordinates firmware updates for the sensor fleet.
//
// An update walks initiated, downloading, installing, restarting,
// completed. At most one non-terminal update may exist per device; the
// database enforces this with a partial unique index and the manager
// checks it up front for a clean error. Progress normally arrives via
// the device callback; in dev mode a simulator advances updates on a
// timer instead.
package ota
