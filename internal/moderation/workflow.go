// Package moderation implements the approval state transition and
// deletion, with their asynchronous index and cache side effects.
package moderation

import (
	"context"
	"errors"
	"log/slog"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/cache"
	"notedrop/internal/storage"
	"notedrop/internal/tasks"
)

// ErrForbidden is returned before any mutation when the caller's role
// does not permit the operation.
var ErrForbidden = errors.New("forbidden")

// Workflow transitions notes from pending to approved and handles
// deletion. There is no rejected state; rejection is deletion.
type Workflow struct {
	db         *storage.DB
	blobs      blob.Store
	dispatcher *tasks.Dispatcher
	cache      *cache.SearchCache
	logger     *slog.Logger
}

// NewWorkflow creates a moderation workflow.
func NewWorkflow(db *storage.DB, blobs blob.Store, dispatcher *tasks.Dispatcher, searchCache *cache.SearchCache, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{db: db, blobs: blobs, dispatcher: dispatcher, cache: searchCache, logger: logger}
}

// Approve marks a note approved and enqueues its indexing. Approving an
// already-approved note is a no-op returning the current row, so a
// retried approval can never corrupt state. The enqueue is
// fire-and-forget: a dispatcher failure is logged and the approval
// stands; a later reindex heals the index.
func (w *Workflow) Approve(ctx context.Context, id int64, caller *auth.Identity) (*storage.NoteDetail, error) {
	if !caller.Role.AtLeast(auth.RoleAdmin) {
		return nil, ErrForbidden
	}

	changed, err := w.db.ApproveNote(ctx, id)
	if err != nil {
		return nil, err
	}

	detail, err := w.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}

	if changed {
		if err := w.dispatcher.Enqueue(tasks.Job{Kind: tasks.KindIndexNote, NoteID: id}); err != nil {
			w.logger.Error("enqueue index job failed", "note_id", id, "error", err)
		}
		w.cache.InvalidateSearches()
	}

	return detail, nil
}

// Delete removes a note. Non-elevated callers may only delete their own
// uploads. The index entry is removed asynchronously and every cached
// search page is invalidated: filters cannot cheaply be inverted to
// find which pages referenced this note, so the wipe is coarse.
func (w *Workflow) Delete(ctx context.Context, id int64, caller *auth.Identity) error {
	detail, err := w.db.GetNote(ctx, id)
	if err != nil {
		return err
	}

	if !caller.Role.AtLeast(auth.RoleAdmin) && detail.UploaderID != caller.UserID {
		return ErrForbidden
	}

	if err := w.db.DeleteNote(ctx, id); err != nil {
		return err
	}

	if err := w.dispatcher.Enqueue(tasks.Job{Kind: tasks.KindDeleteNote, NoteID: id}); err != nil {
		w.logger.Error("enqueue unindex job failed", "note_id", id, "error", err)
	}
	w.cache.InvalidateSearches()

	if err := w.blobs.Delete(ctx, detail.Filename); err != nil {
		w.logger.Warn("blob delete failed", "note_id", id, "key", detail.Filename, "error", err)
	}

	return nil
}
