package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"notedrop/internal/blob"
	"notedrop/internal/extract"
	"notedrop/internal/storage"
)

// Projector turns approved notes into index documents, pulling blob
// content through the extractor for file types that carry text.
type Projector struct {
	blobs     blob.Store
	extractor extract.Extractor
	timeout   time.Duration
	logger    *slog.Logger
}

// NewProjector creates a Projector. A nil extractor disables content
// extraction; documents are then searchable on metadata only.
func NewProjector(blobs blob.Store, extractor extract.Extractor, timeout time.Duration, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Projector{blobs: blobs, extractor: extractor, timeout: timeout, logger: logger}
}

// Project builds the index document for a note. Extraction failures are
// non-fatal: the document is indexed with empty content and only its
// metadata fields remain searchable.
func (p *Projector) Project(ctx context.Context, note *storage.NoteDetail) *Document {
	doc := &Document{
		ID:         DocID(note.ID),
		Name:       note.Name,
		Category:   note.Category,
		Subject:    note.Subject,
		DocType:    note.DocType,
		Uploader:   note.Uploader,
		Filename:   note.Filename,
		Extension:  note.Extension,
		UploadedAt: note.UploadedAt,
	}
	if note.Year != nil {
		doc.Year = *note.Year
	}

	doc.SetContent(p.extractContent(ctx, note))
	return doc
}

func (p *Projector) extractContent(ctx context.Context, note *storage.NoteDetail) string {
	if p.extractor == nil || !strings.EqualFold(note.Extension, "pdf") {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	r, err := p.blobs.Open(ctx, note.Filename)
	if err != nil {
		p.logger.Warn("content extraction: blob unavailable",
			"note_id", note.ID, "filename", note.Filename, "error", err)
		return ""
	}
	defer r.Close()

	text, err := p.extractor.Extract(ctx, r)
	if err != nil {
		p.logger.Warn("content extraction failed",
			"note_id", note.ID, "filename", note.Filename, "error", err)
		return ""
	}
	return text
}
