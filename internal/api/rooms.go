package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmorrell/homedeck/internal/audit"
	"github.com/jmorrell/homedeck/internal/room"
)

// handleListRooms returns all rooms ordered by name.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
}

// handleGetRoom returns a single room by ID.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rm, err := s.rooms.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to get room")
		return
	}

	writeJSON(w, http.StatusOK, rm)
}

// handleCreateRoom creates a new room.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var rm room.Room
	if err := json.NewDecoder(r.Body).Decode(&rm); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if rm.ID == "" {
		rm.ID = room.GenerateID()
	}

	if err := rm.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.rooms.Create(r.Context(), &rm); err != nil {
		if errors.Is(err, room.ErrRoomExists) {
			writeConflict(w, "room already exists")
			return
		}
		writeInternalError(w, "failed to create room")
		return
	}

	s.recordAudit(r.Context(), audit.ActionCreate, "room", rm.ID, map[string]any{"name": rm.Name})

	writeJSON(w, http.StatusCreated, rm)
}

// handleUpdateRoom replaces a room's editable fields.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.rooms.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to get room")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := existing.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.rooms.Update(r.Context(), existing); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to update room")
		return
	}

	s.recordAudit(r.Context(), audit.ActionUpdate, "room", id, nil)

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteRoom removes a room.
//
// Deletion is refused with 409 while devices still reference the room;
// the caller must reassign or delete those devices first.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.rooms.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			writeNotFound(w, "room not found")
		case errors.Is(err, room.ErrRoomHasDevices):
			writeConflict(w, "room has devices: reassign or delete devices first")
		default:
			writeInternalError(w, "failed to delete room")
		}
		return
	}

	s.recordAudit(r.Context(), audit.ActionDelete, "room", id, nil)

	w.WriteHeader(http.StatusNoContent)
}
