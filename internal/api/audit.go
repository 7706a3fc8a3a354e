package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gpioled/internal/audit"
)

// handleListAuditLogs returns a page of audit entries, most recent first.
//
// Query parameters: action, entity_id, source, since and until (RFC 3339),
// limit, offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		EntityID: q.Get("entity_id"),
		Source:   q.Get("source"),
	}

	var ok bool
	if filter.Since, ok = queryTime(w, r, "since"); !ok {
		return
	}
	if filter.Until, ok = queryTime(w, r, "until"); !ok {
		return
	}
	if filter.Limit, ok = queryCount(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryCount(w, r, "offset"); !ok {
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, r, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// queryTime parses an optional RFC 3339 query parameter. On a malformed
// value it writes a 400 and returns false.
func queryTime(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeBadRequest(w, r, name+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

// queryCount parses an optional non-negative integer query parameter.
func queryCount(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeBadRequest(w, r, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
