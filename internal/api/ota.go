package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmorrell/homedeck/internal/audit"
	"github.com/jmorrell/homedeck/internal/ota"
	"github.com/jmorrell/homedeck/internal/sensor"
)

// startUpdateRequest is the body for POST /sensors/{id}/ota.
type startUpdateRequest struct {
	FirmwareVersion string `json:"firmware_version"`
	BackupConfig    bool   `json:"backup_config"`
	AutoRestart     bool   `json:"auto_restart"`
	SafeMode        bool   `json:"safe_mode"`
}

// progressRequest is the device callback body for POST /ota/updates/{id}/progress.
type progressRequest struct {
	Progress int    `json:"progress"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleStartUpdate begins a firmware update for a sensor.
//
// Rejected with 409 when the sensor is offline or already has an active
// update; one update per device at a time.
func (s *Server) handleStartUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeUnavailable(w, "firmware updates not configured")
		return
	}

	id := chi.URLParam(r, "id")

	var req startUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	update, err := s.updates.StartUpdate(r.Context(), id, req.FirmwareVersion, ota.Options{
		BackupConfig: req.BackupConfig,
		AutoRestart:  req.AutoRestart,
		SafeMode:     req.SafeMode,
	})
	if err != nil {
		switch {
		case errors.Is(err, ota.ErrMissingFirmware):
			writeBadRequest(w, "firmware_version is required")
		case errors.Is(err, sensor.ErrSensorNotFound):
			writeNotFound(w, "sensor not found")
		case errors.Is(err, ota.ErrDeviceOffline):
			writeConflict(w, "sensor is offline")
		case errors.Is(err, ota.ErrUpdateActive):
			writeConflict(w, "update already in progress")
		default:
			writeInternalError(w, "failed to start update")
		}
		return
	}

	s.recordAudit(r.Context(), audit.ActionCreate, "update", update.ID, map[string]any{
		"device_id":        id,
		"firmware_version": req.FirmwareVersion,
	})

	writeJSON(w, http.StatusAccepted, update)
}

// handleUpdateStatus returns the latest update for a sensor.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeUnavailable(w, "firmware updates not configured")
		return
	}

	id := chi.URLParam(r, "id")

	update, err := s.updates.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to get update status")
		return
	}
	if update == nil {
		writeNotFound(w, "no updates for sensor")
		return
	}

	writeJSON(w, http.StatusOK, update)
}

// handleCancelUpdate cancels a sensor's active update.
func (s *Server) handleCancelUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeUnavailable(w, "firmware updates not configured")
		return
	}

	id := chi.URLParam(r, "id")

	update, err := s.updates.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, sensor.ErrSensorNotFound):
			writeNotFound(w, "sensor not found")
		case errors.Is(err, ota.ErrUpdateNotFound):
			writeNotFound(w, "no active update for sensor")
		case errors.Is(err, ota.ErrNotCancellable):
			writeConflict(w, "no cancellable update")
		default:
			writeInternalError(w, "failed to cancel update")
		}
		return
	}

	s.recordAudit(r.Context(), audit.ActionUpdate, "update", update.ID, map[string]any{
		"device_id": id,
		"status":    update.Status,
	})

	writeJSON(w, http.StatusOK, update)
}

// handleUpdateProgress applies a device progress callback.
//
// Progress is clamped to 0..100; reaching 100 (or a completed status)
// finishes the update, and callbacks after a terminal status are
// acknowledged without effect.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeUnavailable(w, "firmware updates not configured")
		return
	}

	id := chi.URLParam(r, "id")

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	update, err := s.updates.Progress(r.Context(), id, req.Progress, req.Status, req.Error)
	if err != nil {
		if errors.Is(err, ota.ErrUpdateNotFound) {
			writeNotFound(w, "update not found")
			return
		}
		writeInternalError(w, "failed to apply progress")
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(ChannelOTAProgress, map[string]any{
			"update_id": update.ID,
			"device_id": update.DeviceID,
			"status":    update.Status,
			"progress":  update.Progress,
		})
	}

	writeJSON(w, http.StatusOK, update)
}
