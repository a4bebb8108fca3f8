// Package web exposes the HTTP surface: note upload, retrieval,
// download, moderation and cached search.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/cache"
	"notedrop/internal/moderation"
	"notedrop/internal/search"
	"notedrop/internal/storage"
	"notedrop/internal/tasks"
	"notedrop/internal/upload"
)

// Server wires the request handlers to their collaborators. It is
// constructed once at startup; no package-level state.
type Server struct {
	db            *storage.DB
	blobs         blob.Store
	index         *search.Index
	cache         *cache.SearchCache
	pipeline      *upload.Pipeline
	workflow      *moderation.Workflow
	dispatcher    *tasks.Dispatcher
	authenticator auth.Authenticator
	logger        *slog.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(
	db *storage.DB,
	blobs blob.Store,
	index *search.Index,
	searchCache *cache.SearchCache,
	pipeline *upload.Pipeline,
	workflow *moderation.Workflow,
	dispatcher *tasks.Dispatcher,
	authenticator auth.Authenticator,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:            db,
		blobs:         blobs,
		index:         index,
		cache:         searchCache,
		pipeline:      pipeline,
		workflow:      workflow,
		dispatcher:    dispatcher,
		authenticator: authenticator,
		logger:        logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /note", s.handleUpload)
	mux.HandleFunc("GET /note/{id}", s.handleGetNote)
	mux.HandleFunc("GET /note/download/{id}", s.handleDownload)
	mux.HandleFunc("DELETE /note/{id}", s.handleDelete)
	mux.HandleFunc("GET /notes/search", s.handleSearch)
	mux.HandleFunc("PUT /admin/approve/{id}", s.handleApprove)
	mux.HandleFunc("GET /admin/search/status", s.handleSearchStatus)
	mux.HandleFunc("POST /admin/search/reindex", s.handleReindex)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// identity resolves the caller from a bearer token. Anonymous callers
// get a nil identity, not an error; role checks happen per handler.
func (s *Server) identity(r *http.Request) *auth.Identity {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil
	}
	ident, err := s.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		return nil
	}
	return ident
}

// requireRole resolves the caller and enforces a minimum role,
// answering 401/403 itself when the check fails.
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, min auth.Role) *auth.Identity {
	ident := s.identity(r)
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil
	}
	if !ident.Role.AtLeast(min) {
		writeError(w, http.StatusForbidden, "insufficient role")
		return nil
	}
	return ident
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	total, approved, err := s.db.CountNotes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	stats := s.index.GetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"notes_total":    total,
		"notes_approved": approved,
		"index":          stats,
	})
}
