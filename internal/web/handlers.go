package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/moderation"
	"notedrop/internal/storage"
	"notedrop/internal/upload"
)

// maxUploadBytes bounds the in-memory portion of multipart parsing.
const maxUploadBytes = 64 << 20

// noteJSON is the client representation of a note with relations.
type noteJSON struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Extension  string    `json:"extension"`
	Category   string    `json:"category"`
	Subject    string    `json:"subject"`
	DocType    string    `json:"doc_type"`
	Uploader   string    `json:"uploader"`
	ViewCount  int64     `json:"view_count"`
	UploadedAt time.Time `json:"uploaded_at"`
	Approved   bool      `json:"approved"`
	Year       *int      `json:"year,omitempty"`
	URL        string    `json:"url"`
}

func (s *Server) noteToJSON(d *storage.NoteDetail) *noteJSON {
	return &noteJSON{
		ID:         d.ID,
		Name:       d.Name,
		Filename:   d.Filename,
		Extension:  d.Extension,
		Category:   d.Category,
		Subject:    d.Subject,
		DocType:    d.DocType,
		Uploader:   d.Uploader,
		ViewCount:  d.ViewCount,
		UploadedAt: d.UploadedAt,
		Approved:   d.Approved,
		Year:       d.Year,
		URL:        s.blobs.URLFor(d.Filename),
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ident := s.requireRole(w, r, auth.RoleUser)
	if ident == nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	notes, err := s.pipeline.Upload(r.Context(), r.MultipartForm, ident)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	out := make([]*noteJSON, len(notes))
	for i, n := range notes {
		out[i] = s.noteToJSON(n)
	}
	writeJSON(w, http.StatusCreated, out)
}

// writeUploadError maps pipeline failures onto the client contract:
// per-item failures come back grouped by kind so the client can fix the
// whole batch in one pass.
func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var batchErr *upload.BatchError
	switch {
	case errors.As(err, &batchErr):
		writeJSON(w, http.StatusBadRequest, batchErr.ByKind())
	case errors.Is(err, upload.ErrTooManyFields), errors.Is(err, upload.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrMissingRelation):
		writeError(w, http.StatusBadRequest, "related resource missing")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting note")
	default:
		s.logger.Error("upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
	}
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := s.db.GetNote(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	if err != nil {
		s.logger.Error("get note failed", "note_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, s.noteToJSON(note))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := s.db.GetNote(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	if err != nil {
		s.logger.Error("download lookup failed", "note_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	// Unapproved notes are visible only to their uploader and admins.
	if !note.Approved {
		ident := s.identity(r)
		if ident == nil || (!ident.Role.AtLeast(auth.RoleAdmin) && ident.UserID != note.UploaderID) {
			writeError(w, http.StatusForbidden, "note not approved")
			return
		}
	}

	f, err := s.blobs.Open(r.Context(), note.Filename)
	if errors.Is(err, blob.ErrNotFound) {
		// Metadata without its blob: the accepted commit-then-store gap.
		s.logger.Warn("blob missing for note", "note_id", id, "key", note.Filename)
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		s.logger.Error("blob open failed", "note_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	defer f.Close()

	if err := s.db.IncrementViews(r.Context(), id); err != nil {
		s.logger.Warn("view count bump failed", "note_id", id, "error", err)
	}

	ctype := mime.TypeByExtension("." + note.Extension)
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": note.Name + "." + note.Extension}))
	io.Copy(w, f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ident := s.requireRole(w, r, auth.RoleUser)
	if ident == nil {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	err := s.workflow.Delete(r.Context(), id, ident)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	case errors.Is(err, moderation.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed to delete this note")
	case err != nil:
		s.logger.Error("delete failed", "note_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
