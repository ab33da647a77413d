package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmorrell/homedeck/internal/audit"
	"github.com/jmorrell/homedeck/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - room_id: filter by room
//   - type: filter by device type (light, thermostat, etc.)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		devices, err := s.registry.GetDevicesByRoom(ctx, roomID)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		devices, err := s.registry.GetDevicesByType(ctx, device.DeviceType(typeStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.CreateDevice(r.Context(), &dev); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case isValidationError(err):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	s.recordAudit(r.Context(), audit.ActionCreate, "device", dev.ID, map[string]any{"name": dev.Name, "type": string(dev.Type)})

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	// Decode partial update onto existing device
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.registry.UpdateDevice(r.Context(), existing); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	s.recordAudit(r.Context(), audit.ActionUpdate, "device", id, nil)

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	s.recordAudit(r.Context(), audit.ActionDelete, "device", id, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleControlDevice applies a partial state patch to a device.
//
// The body is a flat JSON object of property values, e.g.
// {"power": true, "brightness": 80}. Values are validated and clamped
// against the device type's property specs; the response carries the
// server-authoritative state after the merge.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch device.State
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(patch) == 0 {
		writeBadRequest(w, "state patch is required")
		return
	}

	updated, err := s.registry.SetDeviceState(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrDeviceDisabled):
			writeConflict(w, "device is disabled")
		case isValidationError(err):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to control device")
		}
		return
	}

	s.recordAndBroadcast(r, updated, device.StateHistorySourceControl)
	s.recordAudit(r.Context(), audit.ActionControl, "device", id, map[string]any(patch))

	writeJSON(w, http.StatusOK, updated)
}

// handleDeviceStatus returns the current state of a device.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":        dev.ID,
		"online":           dev.Online(),
		"state":            dev.State,
		"state_updated_at": dev.StateUpdatedAt,
	})
}

// defaultHistoryLimit bounds history queries without an explicit limit.
const defaultHistoryLimit = 50

// handleDeviceHistory returns recent state changes for a device, newest first.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.registry.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit)

	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "history": []any{}, "count": 0})
		return
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"history":   entries,
		"count":     len(entries),
	})
}

// bulkCommand is one entry in a bulk-control request.
type bulkCommand struct {
	DeviceID string       `json:"device_id"`
	State    device.State `json:"state"`
}

// bulkResult is the per-device outcome of a bulk-control request.
type bulkResult struct {
	DeviceID string       `json:"device_id"`
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
	State    device.State `json:"state,omitempty"`
}

// handleBulkControl applies state patches to multiple devices in one call.
//
// Each command succeeds or fails independently; the response lists the
// outcome per device.
func (s *Server) handleBulkControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commands []bulkCommand `json:"commands"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Commands) == 0 {
		writeBadRequest(w, "commands are required")
		return
	}

	results := make([]bulkResult, 0, len(req.Commands))
	succeeded := 0
	for _, cmd := range req.Commands {
		updated, err := s.registry.SetDeviceState(r.Context(), cmd.DeviceID, cmd.State)
		if err != nil {
			results = append(results, bulkResult{DeviceID: cmd.DeviceID, Error: err.Error()})
			continue
		}
		s.recordAndBroadcast(r, updated, device.StateHistorySourceControl)
		results = append(results, bulkResult{DeviceID: cmd.DeviceID, Success: true, State: updated.State})
		succeeded++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

// handleDeviceTemplates returns the per-type creation templates.
func (s *Server) handleDeviceTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := device.Templates()
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// recordAndBroadcast persists a state change to history and pushes it to
// WebSocket subscribers. Both are best-effort; a history or broadcast
// failure never fails the control call that caused it.
func (s *Server) recordAndBroadcast(r *http.Request, dev *device.Device, source string) {
	if s.history != nil {
		if err := s.history.RecordStateChange(r.Context(), dev.ID, dev.State, source); err != nil {
			s.logger.Warn("state history write failed", "device_id", dev.ID, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(ChannelDeviceState, map[string]any{
			"device_id": dev.ID,
			"state":     dev.State,
			"source":    source,
		})
	}
}

// isValidationError reports whether the error came from device validation
// rather than storage.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidDeviceType) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidState) ||
		errors.Is(err, device.ErrUnknownProperty) ||
		errors.Is(err, device.ErrRoomNotFound)
}
