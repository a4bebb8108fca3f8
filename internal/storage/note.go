package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Note is an uploaded study document with its moderation state.
type Note struct {
	ID         int64
	Name       string
	Filename   string // storage key, random hex + extension
	Extension  string
	CategoryID int64
	SubjectID  int64
	DoctypeID  int64
	UploaderID int64
	ViewCount  int64
	UploadedAt time.Time
	Approved   bool
	Year       *int // nil when not applicable
}

// NoteDetail is a Note joined with its taxonomy and uploader names,
// the shape returned to clients and projected into the search index.
type NoteDetail struct {
	Note
	Category string
	Subject  string
	DocType  string
	Uploader string
}

const noteDetailQuery = `
SELECT n.id, n.name, n.filename, n.extension,
       n.category_id, n.subject_id, n.doctype_id, n.uploader_id,
       n.view_count, n.uploaded_at, n.approved, n.year,
       c.name, s.name, t.name, a.username
FROM notes n
JOIN categories c ON c.id = n.category_id
JOIN subjects s ON s.id = n.subject_id
JOIN doc_types t ON t.id = n.doctype_id
JOIN accounts a ON a.id = n.uploader_id
`

func scanNoteDetail(row interface{ Scan(...any) error }) (*NoteDetail, error) {
	d := &NoteDetail{}
	var year sql.NullInt64
	err := row.Scan(
		&d.ID, &d.Name, &d.Filename, &d.Extension,
		&d.CategoryID, &d.SubjectID, &d.DoctypeID, &d.UploaderID,
		&d.ViewCount, &d.UploadedAt, &d.Approved, &year,
		&d.Category, &d.Subject, &d.DocType, &d.Uploader,
	)
	if err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		d.Year = &y
	}
	return d, nil
}

// CreateNotes inserts a batch of notes in a single transaction. Either
// every note is committed or none is; constraint violations roll the
// whole batch back. Assigned ids are written back into the notes.
func (d *DB) CreateNotes(ctx context.Context, notes []*Note) error {
	if len(notes) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO notes (name, filename, extension, category_id, subject_id,
	                   doctype_id, uploader_id, uploaded_at, approved, year)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notes {
		var year any
		if n.Year != nil {
			year = *n.Year
		}
		res, err := stmt.ExecContext(ctx,
			n.Name, n.Filename, n.Extension, n.CategoryID, n.SubjectID,
			n.DoctypeID, n.UploaderID, n.UploadedAt, year,
		)
		if err != nil {
			return mapConstraintErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		n.ID = id
	}

	if err := tx.Commit(); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

// GetNote retrieves a note with relations by id.
func (d *DB) GetNote(ctx context.Context, id int64) (*NoteDetail, error) {
	row := d.db.QueryRowContext(ctx, noteDetailQuery+" WHERE n.id = ?", id)
	detail, err := scanNoteDetail(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GetNotes retrieves several notes with relations, preserving id order.
func (d *DB) GetNotes(ctx context.Context, ids []int64) ([]*NoteDetail, error) {
	details := make([]*NoteDetail, 0, len(ids))
	for _, id := range ids {
		detail, err := d.GetNote(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

// ApproveNote marks a note approved and reports whether the row changed.
// Approving an already-approved note is a no-op, not an error.
func (d *DB) ApproveNote(ctx context.Context, id int64) (changed bool, err error) {
	res, err := d.db.ExecContext(ctx,
		"UPDATE notes SET approved = 1 WHERE id = ? AND approved = 0", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Distinguish "already approved" from "absent".
		var exists int
		err := d.db.QueryRowContext(ctx,
			"SELECT 1 FROM notes WHERE id = ?", id).Scan(&exists)
		if err == sql.ErrNoRows {
			return false, ErrNotFound
		}
		if err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// DeleteNote removes a note row. Absent id reports ErrNotFound.
func (d *DB) DeleteNote(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListApprovedNotes returns every approved note with relations, newest
// first. Used by the reindex job to rebuild the search projection.
func (d *DB) ListApprovedNotes(ctx context.Context) ([]*NoteDetail, error) {
	rows, err := d.db.QueryContext(ctx,
		noteDetailQuery+" WHERE n.approved = 1 ORDER BY n.uploaded_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []*NoteDetail
	for rows.Next() {
		detail, err := scanNoteDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

// IncrementViews bumps the view/download counter.
func (d *DB) IncrementViews(ctx context.Context, id int64) error {
	_, err := d.db.ExecContext(ctx,
		"UPDATE notes SET view_count = view_count + 1 WHERE id = ?", id)
	return err
}

// CountNotes returns total and approved note counts.
func (d *DB) CountNotes(ctx context.Context) (total, approved int, err error) {
	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(approved), 0) FROM notes").Scan(&total, &approved)
	return total, approved, err
}
