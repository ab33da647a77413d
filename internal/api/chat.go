package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jmorrell/homedeck/internal/chat"
	"github.com/jmorrell/homedeck/internal/device"
)

// chatRequest is the body for POST /chat.
//
// Stateless clients (the panel) replay their own transcript via
// context.history; it is appended after the server-side window.
type chatRequest struct {
	Message string `json:"message"`
	Context struct {
		History []chat.Message `json:"history"`
	} `json:"context"`
}

// handleChat relays a natural-language message to the LLM backend and
// executes any device actions it returns.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeUnavailable(w, "chat backend not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	reply, err := s.chat.HandleMessage(r.Context(), req.Message, req.Context.History)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrDisabled):
			writeUnavailable(w, "chat backend not configured")
		case errors.Is(err, chat.ErrEmptyMessage):
			writeBadRequest(w, "message is required")
		case errors.Is(err, chat.ErrBackend):
			writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "chat backend request failed")
		default:
			writeInternalError(w, "failed to handle message")
		}
		return
	}

	// Executed actions changed device state outside the control
	// endpoint; record and push them the same way.
	for _, result := range reply.ExecutionResults {
		if !result.Success {
			continue
		}
		if dev, devErr := s.registry.GetDevice(r.Context(), result.DeviceID); devErr == nil {
			s.recordAndBroadcast(r, dev, device.StateHistorySourceChat)
		}
	}

	writeJSON(w, http.StatusOK, reply)
}

// handleChatStatus reports chat availability and transcript size.
func (s *Server) handleChatStatus(w http.ResponseWriter, _ *http.Request) {
	enabled := s.chat != nil && s.chat.Enabled()

	exchanges := 0
	if s.chat != nil {
		exchanges = len(s.chat.GetHistory())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":   enabled,
		"exchanges": exchanges,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleChatHistory returns the stored conversation transcript.
func (s *Server) handleChatHistory(w http.ResponseWriter, _ *http.Request) {
	if s.chat == nil {
		writeUnavailable(w, "chat backend not configured")
		return
	}

	history := s.chat.GetHistory()
	writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// handleChatClear discards the stored conversation transcript.
func (s *Server) handleChatClear(w http.ResponseWriter, _ *http.Request) {
	if s.chat == nil {
		writeUnavailable(w, "chat backend not configured")
		return
	}

	s.chat.ClearHistory()
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}
