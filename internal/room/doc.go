// Package room manages the spatial grouping of devices.
//
// Rooms are flat (no nesting) and referenced by devices through their
// room_id column. A room that still has devices assigned cannot be
// deleted; callers must move or remove the devices first.
package room
