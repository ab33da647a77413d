package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmorrell/homedeck/internal/sensor"
)

// handleRegisterSensor upserts a sensor device by ID.
//
// ESP32 firmware calls this on boot and periodically as a heartbeat;
// repeats refresh metadata and last_seen without touching config.
func (s *Server) handleRegisterSensor(w http.ResponseWriter, r *http.Request) {
	var dev sensor.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if dev.ID == "" {
		writeBadRequest(w, "id is required")
		return
	}

	if err := s.sensors.Register(r.Context(), &dev); err != nil {
		writeInternalError(w, "failed to register sensor")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// sensorDataRequest is the batch telemetry body for POST /sensors/data.
type sensorDataRequest struct {
	DeviceID string           `json:"device_id"`
	Readings []sensor.Reading `json:"readings"`
}

// handleSensorData ingests a batch of readings from a sensor.
//
// Accepted readings run through the threshold checker, clear any
// device-offline alert, and are mirrored to InfluxDB when configured.
func (s *Server) handleSensorData(w http.ResponseWriter, r *http.Request) {
	var req sensorDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	accepted, err := s.sensors.RecordReadings(r.Context(), req.DeviceID, req.Readings)
	if err != nil {
		switch {
		case errors.Is(err, sensor.ErrSensorNotFound):
			writeNotFound(w, "sensor not registered")
		case errors.Is(err, sensor.ErrNoReadings), errors.Is(err, sensor.ErrInvalidReading):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to record readings")
		}
		return
	}

	sensorReadingsTotal.Add(float64(accepted))

	if s.hub != nil {
		s.hub.Broadcast(ChannelSensorReading, map[string]any{
			"device_id": req.DeviceID,
			"count":     accepted,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": req.DeviceID,
		"accepted":  accepted,
	})
}

// handleListSensors returns the registered sensor fleet.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.sensors.ListSensors(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list sensors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

// handleGetSensor returns a single sensor by ID.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.sensors.GetSensor(r.Context(), id)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to get sensor")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleSensorReadings returns a sampled reading window for a sensor.
//
// Query parameters:
//   - hours: window size (default 24)
//   - limit: maximum points after sampling (default 100)
//   - type: optional sensor type filter (temperature, humidity)
func (s *Server) handleSensorReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hours := queryInt(r, "hours", 0)
	limit := queryInt(r, "limit", 0)
	sensorType := r.URL.Query().Get("type")

	readings, err := s.sensors.Readings(r.Context(), id, sensorType, hours, limit)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to query readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"readings":  readings,
		"count":     len(readings),
	})
}

// handleGetSensorConfig returns a sensor's configuration map.
func (s *Server) handleGetSensorConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.sensors.GetSensor(r.Context(), id)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to get sensor")
		return
	}

	cfg := dev.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "config": cfg})
}

// handlePutSensorConfig replaces a sensor's configuration map.
// Threshold changes take effect on the next reading batch.
func (s *Server) handlePutSensorConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cfg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.sensors.UpdateSensorConfig(r.Context(), id, cfg); err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to update sensor config")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "config": cfg})
}

// handleSensorSummary returns fleet aggregates for the dashboard header.
func (s *Server) handleSensorSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sensors.GetSummary(r.Context())
	if err != nil {
		writeInternalError(w, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSensorHealth reports fleet liveness figures.
func (s *Server) handleSensorHealth(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sensors.GetSummary(r.Context())
	if err != nil {
		writeInternalError(w, "failed to build summary")
		return
	}

	status := "ok"
	if summary.TotalDevices > 0 && summary.OnlineDevices == 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              status,
		"total_devices":       summary.TotalDevices,
		"online_devices":      summary.OnlineDevices,
		"offline_devices":     summary.OfflineDevices,
		"stale_after_seconds": int(s.sensors.StaleAfter().Seconds()),
	})
}

// handleSensorCleanup deletes readings older than the retention window.
func (s *Server) handleSensorCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RetentionDays int `json:"retention_days"`
	}
	// An empty body means the default retention window.
	//nolint:errcheck // Absent or empty body falls through to defaults
	json.NewDecoder(r.Body).Decode(&req)

	deleted, err := s.sensors.Cleanup(r.Context(), req.RetentionDays)
	if err != nil {
		writeInternalError(w, "failed to clean up readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// handleListAlerts returns sensor alerts, newest first.
//
// Query parameters:
//   - active_only: when "true", only unacknowledged active alerts
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"

	alerts, err := s.sensors.ListAlerts(r.Context(), activeOnly)
	if err != nil {
		writeInternalError(w, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// handleAcknowledgeAlert marks an alert as acknowledged and inactive.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sensors.AcknowledgeAlert(r.Context(), id); err != nil {
		if errors.Is(err, sensor.ErrAlertNotFound) {
			writeNotFound(w, "alert not found")
			return
		}
		writeInternalError(w, "failed to acknowledge alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}

// queryInt parses an integer query parameter, falling back to a default
// when absent or unparseable.
func queryInt(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return v
}
