package api

import (
	"context"
	"net/http"

	"github.com/jmorrell/homedeck/internal/audit"
)

// recordAudit writes one audit trail entry. It is a no-op when no audit
// repository is configured, and a failed write never fails the request.
func (s *Server) recordAudit(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}

	userID, _ := ctx.Value(ctxKeyUsername).(string)
	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     "api",
		Details:    details,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// handleListAudit returns the audit trail, most recent first.
//
// Query parameters:
//   - action: filter by action (create, update, delete, control, login)
//   - entity_type: filter by entity type (device, room, sensor, update, config)
//   - entity_id: filter by specific entity
//   - limit, offset: pagination (default 50, max 200)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   r.URL.Query().Get("entity_id"),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("audit list failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
