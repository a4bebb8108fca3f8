// Package tasks decouples indexing side effects from the request path:
// jobs are queued, executed on a worker pool, and retried with
// exponential backoff before being declared permanently failed.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"notedrop/internal/search"
	"notedrop/internal/storage"
)

// Kind identifies a job type.
type Kind string

const (
	KindIndexNote  Kind = "index_note"
	KindDeleteNote Kind = "delete_note"
	KindReindexAll Kind = "reindex_all"
)

// Job is one unit of asynchronous work.
type Job struct {
	Kind     Kind
	NoteID   int64
	Recreate bool // reindex only: drop and rebuild the index schema
}

// maxAttempts bounds the retry loop: one initial attempt plus retries.
const maxAttempts = 3

var (
	// ErrQueueFull is returned when the job buffer has no room. Callers
	// treat enqueue as fire-and-forget and only log this.
	ErrQueueFull = errors.New("task queue full")

	// ErrStopped is returned after the dispatcher has shut down.
	ErrStopped = errors.New("dispatcher stopped")
)

// Dispatcher runs jobs on a fixed worker pool.
type Dispatcher struct {
	db        *storage.DB
	index     *search.Index
	projector *search.Projector
	logger    *slog.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a dispatcher with its worker pool already running.
func New(db *storage.DB, index *search.Index, projector *search.Projector, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	d := &Dispatcher{
		db:        db,
		index:     index,
		projector: projector,
		logger:    logger,
		jobs:      make(chan Job, queueSize),
	}
	d.startWorkers(workers)
	return d
}

func (d *Dispatcher) startWorkers(workers int) {
	for range workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.run(job)
			}
		}()
	}
}

// Enqueue submits a job. It never blocks the request path: a full queue
// or stopped dispatcher is reported as an error for the caller to log.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// run executes one job under the retry policy. Exhausting retries logs
// a permanent failure; the relational store remains the source of truth
// and a later reindex heals the gap.
func (d *Dispatcher) run(job Job) {
	policy := backoff.WithMaxRetries(newBackOff(), maxAttempts-1)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		return d.execute(context.Background(), job)
	}, policy)

	if err != nil {
		d.logger.Error("task permanently failed",
			"kind", job.Kind, "note_id", job.NoteID, "attempts", attempt, "error", err)
	}
}

// newBackOff builds the jittered exponential policy shared by all jobs.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	return b
}

func (d *Dispatcher) execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindIndexNote:
		return d.indexNote(ctx, job.NoteID)
	case KindDeleteNote:
		return d.deleteNote(job.NoteID)
	case KindReindexAll:
		return d.reindexAll(ctx, job.Recreate)
	default:
		return backoff.Permanent(fmt.Errorf("unknown job kind: %s", job.Kind))
	}
}

// indexNote projects one approved note into the search index.
func (d *Dispatcher) indexNote(ctx context.Context, id int64) error {
	detail, err := d.db.GetNote(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted between enqueue and execution; nothing to index.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load note %d: %w", id, err)
	}
	if !detail.Approved {
		return nil
	}

	doc := d.projector.Project(ctx, detail)
	if err := d.index.IndexOne(doc); err != nil {
		return fmt.Errorf("index note %d: %w", id, err)
	}
	return nil
}

func (d *Dispatcher) deleteNote(id int64) error {
	if err := d.index.DeleteOne(search.DocID(id)); err != nil {
		return fmt.Errorf("unindex note %d: %w", id, err)
	}
	return nil
}

// reindexAll rebuilds the search projection from the relational store.
func (d *Dispatcher) reindexAll(ctx context.Context, recreate bool) error {
	if _, err := d.index.EnsureSchema(recreate); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	notes, err := d.db.ListApprovedNotes(ctx)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("list approved notes: %w", err))
	}

	docs := make([]*search.Document, len(notes))
	for i, note := range notes {
		docs[i] = d.projector.Project(ctx, note)
	}

	ok, failed := d.index.IndexBulk(docs)
	d.logger.Info("reindex complete", "indexed", ok, "failed", failed, "recreate", recreate)
	if failed > 0 && ok == 0 && len(docs) > 0 {
		return fmt.Errorf("reindex: all %d documents failed", failed)
	}
	return nil
}
