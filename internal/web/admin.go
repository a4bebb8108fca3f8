package web

import (
	"errors"
	"net/http"

	"notedrop/internal/auth"
	"notedrop/internal/moderation"
	"notedrop/internal/storage"
	"notedrop/internal/tasks"
)

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	ident := s.requireRole(w, r, auth.RoleAdmin)
	if ident == nil {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := s.workflow.Approve(r.Context(), id, ident)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	case errors.Is(err, moderation.ErrForbidden):
		writeError(w, http.StatusForbidden, "insufficient role")
	case err != nil:
		s.logger.Error("approve failed", "note_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "approve failed")
	default:
		writeJSON(w, http.StatusOK, s.noteToJSON(note))
	}
}

func (s *Server) handleSearchStatus(w http.ResponseWriter, r *http.Request) {
	if s.requireRole(w, r, auth.RoleDeveloper) == nil {
		return
	}

	total, approved, err := s.db.CountNotes(r.Context())
	if err != nil {
		s.logger.Error("count notes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"index":          s.index.GetStats(),
		"available":      s.index.Available(),
		"notes_total":    total,
		"notes_approved": approved,
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if s.requireRole(w, r, auth.RoleDeveloper) == nil {
		return
	}

	recreate := r.URL.Query().Get("recreate") == "true"
	err := s.dispatcher.Enqueue(tasks.Job{Kind: tasks.KindReindexAll, Recreate: recreate})
	if err != nil {
		s.logger.Error("enqueue reindex failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "reindex queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "reindex scheduled", "recreate": recreate})
}
