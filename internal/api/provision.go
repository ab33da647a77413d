package api

import (
	"encoding/json"
	"net/http"

	"github.com/jmorrell/homedeck/internal/audit"
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/provision"
)

// handleConfigExport returns a versioned document of all rooms and devices.
func (s *Server) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	if s.provision == nil {
		writeUnavailable(w, "provisioning not configured")
		return
	}

	doc, err := s.provision.Export(r.Context())
	if err != nil {
		writeInternalError(w, "failed to export configuration")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleConfigImport loads a previously exported document.
//
// Rooms import before devices so device room references resolve.
// Existing items are skipped; per-item failures are collected in the
// result rather than aborting the import.
func (s *Server) handleConfigImport(w http.ResponseWriter, r *http.Request) {
	if s.provision == nil {
		writeUnavailable(w, "provisioning not configured")
		return
	}

	var doc provision.ExportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.provision.Import(r.Context(), &doc)
	if err != nil {
		writeInternalError(w, "failed to import configuration")
		return
	}

	s.recordAudit(r.Context(), audit.ActionUpdate, "config", "import", map[string]any{
		"imported_rooms":   result.ImportedRooms,
		"imported_devices": result.ImportedDevices,
	})

	writeJSON(w, http.StatusOK, result)
}

// handleConfigReset wipes all rooms and devices and installs the
// factory defaults.
func (s *Server) handleConfigReset(w http.ResponseWriter, r *http.Request) {
	if s.provision == nil {
		writeUnavailable(w, "provisioning not configured")
		return
	}

	if err := s.provision.Reset(r.Context()); err != nil {
		writeInternalError(w, "failed to reset configuration")
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(ChannelDeviceState, map[string]any{"event": "configuration_reset"})
	}
	s.recordAudit(r.Context(), audit.ActionUpdate, "config", "reset", nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// handleConfigValidate checks a device definition without persisting it.
func (s *Server) handleConfigValidate(w http.ResponseWriter, r *http.Request) {
	if s.provision == nil {
		writeUnavailable(w, "provisioning not configured")
		return
	}

	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result := s.provision.Validate(r.Context(), &dev)
	writeJSON(w, http.StatusOK, result)
}

// handleConfigDiscover scans for unconfigured devices on the network.
func (s *Server) handleConfigDiscover(w http.ResponseWriter, r *http.Request) {
	if s.provision == nil {
		writeUnavailable(w, "provisioning not configured")
		return
	}

	discovered := s.provision.Discover(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": discovered,
		"count":   len(discovered),
	})
}
