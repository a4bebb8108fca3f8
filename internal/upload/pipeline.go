// Package upload implements the multi-file note submission pipeline:
// indexed form parsing, role-gated file-type acceptance, atomic
// metadata persistence and best-effort blob storage.
package upload

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/google/uuid"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/storage"
)

// Pipeline commits a batch of new notes: all-or-nothing in the
// relational store, best-effort in blob storage.
type Pipeline struct {
	db     *storage.DB
	blobs  blob.Store
	logger *slog.Logger
}

// NewPipeline creates an upload pipeline.
func NewPipeline(db *storage.DB, blobs blob.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{db: db, blobs: blobs, logger: logger}
}

// Upload processes one multi-file submission for the given uploader.
// On success it returns every created note with relations loaded. On
// validation failure it returns a BatchError naming every failing index
// and commits nothing.
//
// Metadata is committed before blobs are written, so the transaction
// never spans slow storage I/O. A crash between commit and blob write
// can leave a metadata row without its file; downloads of such a row
// 404 until a reconciliation sweep repairs it.
func (p *Pipeline) Upload(ctx context.Context, form *multipart.Form, uploader *auth.Identity) ([]*storage.NoteDetail, error) {
	if FieldCount(form) > MaxFormFields {
		return nil, ErrTooManyFields
	}

	indices := ItemIndices(form)
	if len(indices) == 0 {
		return nil, ErrEmptyBatch
	}

	var items []*Item
	var failures []ItemError

	for _, idx := range indices {
		item, err := ParseItem(form, idx)
		if err != nil {
			failures = append(failures, ItemError{Index: idx, Kind: KindSchema, Reason: err.Error()})
			continue
		}
		items = append(items, item)
	}

	// File-type gating is independent of schema validity and runs on
	// every schema-valid item so the client sees all failures at once.
	gated := items[:0]
	for _, item := range items {
		ext, err := AcceptFileType(item.File.Header.Get("Content-Type"), uploader.Role)
		if err != nil {
			failures = append(failures, ItemError{Index: item.Index, Kind: KindFileType})
			continue
		}
		item.Extension = ext
		gated = append(gated, item)
	}
	items = gated

	if len(failures) > 0 {
		return nil, &BatchError{Items: failures}
	}

	now := time.Now().UTC()
	notes := make([]*storage.Note, len(items))
	for i, item := range items {
		item.StorageKey = newStorageKey(item.Extension)
		notes[i] = &storage.Note{
			Name:       item.Name,
			Filename:   item.StorageKey,
			Extension:  item.Extension,
			CategoryID: item.CategoryID,
			SubjectID:  item.SubjectID,
			DoctypeID:  item.DoctypeID,
			UploaderID: uploader.UserID,
			UploadedAt: now,
		}
		notes[i].Year = item.Year
	}

	// Single transaction: a constraint violation on any row rolls the
	// whole batch back, and no blob has been written yet.
	if err := p.db.CreateNotes(ctx, notes); err != nil {
		return nil, err
	}

	p.storeBlobs(ctx, items)

	ids := make([]int64, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return p.db.GetNotes(ctx, ids)
}

// storeBlobs writes each uploaded file under its pre-assigned key.
// Failures are logged, not rolled back: the metadata row stands and the
// missing blob is detectable by reconciliation.
func (p *Pipeline) storeBlobs(ctx context.Context, items []*Item) {
	for _, item := range items {
		f, err := item.File.Open()
		if err != nil {
			p.logger.Error("blob write: open upload failed",
				"index", item.Index, "key", item.StorageKey, "error", err)
			continue
		}
		_, err = p.blobs.Put(ctx, item.StorageKey, f, item.File.Size)
		f.Close()
		if err != nil {
			p.logger.Error("blob write failed",
				"index", item.Index, "key", item.StorageKey, "error", err)
		}
	}
}

// newStorageKey synthesizes a globally unique, collision-resistant
// storage key: 128 random bits in hex plus the resolved extension.
func newStorageKey(ext string) string {
	id := uuid.New()
	return hex.EncodeToString(id[:]) + "." + ext
}

// IsClientError reports whether an upload failure should map to a 400
// rather than a server error.
func IsClientError(err error) bool {
	var batchErr *BatchError
	return errors.Is(err, ErrTooManyFields) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.As(err, &batchErr)
}
