package storage

import (
	"context"
	"database/sql"
)

// Category is a top-level classification (e.g. an exam level).
type Category struct {
	ID   int64
	Name string
}

// Subject belongs to exactly one category.
type Subject struct {
	ID         int64
	CategoryID int64
	Name       string
}

// DocType classifies the kind of document (notes, past paper, ...).
type DocType struct {
	ID   int64
	Name string
}

// ListCategories returns all categories ordered by name.
func (d *DB) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ListSubjects returns the subjects under a category.
func (d *DB) ListSubjects(ctx context.Context, categoryID int64) ([]*Subject, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, category_id, name FROM subjects WHERE category_id = ? ORDER BY name", categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []*Subject
	for rows.Next() {
		s := &Subject{}
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// ListDocTypes returns all document types ordered by name.
func (d *DB) ListDocTypes(ctx context.Context) ([]*DocType, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name FROM doc_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*DocType
	for rows.Next() {
		t := &DocType{}
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// CreateCategory inserts a category, returning the existing row's id if
// the name is already present.
func (d *DB) CreateCategory(ctx context.Context, name string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	var id int64
	err = d.db.QueryRowContext(ctx, "SELECT id FROM categories WHERE name = ?", name).Scan(&id)
	return id, err
}

// CreateSubject inserts a subject under a category, reusing an existing
// row with the same name.
func (d *DB) CreateSubject(ctx context.Context, categoryID int64, name string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO subjects (category_id, name) VALUES (?, ?) ON CONFLICT(category_id, name) DO NOTHING",
		categoryID, name)
	if err != nil {
		return 0, mapConstraintErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	var id int64
	err = d.db.QueryRowContext(ctx,
		"SELECT id FROM subjects WHERE category_id = ? AND name = ?", categoryID, name).Scan(&id)
	return id, err
}

// CreateDocType inserts a document type, reusing an existing row.
func (d *DB) CreateDocType(ctx context.Context, name string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO doc_types (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	var id int64
	err = d.db.QueryRowContext(ctx, "SELECT id FROM doc_types WHERE name = ?", name).Scan(&id)
	return id, err
}

// GetSubject fetches one subject.
func (d *DB) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	s := &Subject{}
	err := d.db.QueryRowContext(ctx,
		"SELECT id, category_id, name FROM subjects WHERE id = ?", id).
		Scan(&s.ID, &s.CategoryID, &s.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
