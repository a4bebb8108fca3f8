package storage

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Sentinel errors mapped from sqlite constraint violations so callers
// never depend on driver error codes.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrMissingRelation = errors.New("related resource missing")
)

// DB wraps SQLite database operations. It is the single source of truth;
// the search index and cache are derived projections.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	storage := &DB{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// initSchema creates tables if they don't exist.
//
// subjects carries UNIQUE(id, category_id) so notes can declare a
// composite foreign key on (subject_id, category_id): a subject can
// never be attached to a note under a category it does not belong to.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'user',
		api_token TEXT UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL,
		UNIQUE(id, category_id),
		UNIQUE(category_id, name)
	);

	CREATE TABLE IF NOT EXISTS doc_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		filename TEXT NOT NULL UNIQUE,
		extension TEXT NOT NULL,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		subject_id INTEGER NOT NULL,
		doctype_id INTEGER NOT NULL REFERENCES doc_types(id),
		uploader_id INTEGER NOT NULL REFERENCES accounts(id),
		view_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMP NOT NULL,
		approved BOOLEAN NOT NULL DEFAULT 0,
		year INTEGER,
		FOREIGN KEY (subject_id, category_id) REFERENCES subjects(id, category_id)
	);

	CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category_id);
	CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject_id);
	CREATE INDEX IF NOT EXISTS idx_notes_uploader ON notes(uploader_id);
	CREATE INDEX IF NOT EXISTS idx_notes_approved ON notes(approved);
	CREATE INDEX IF NOT EXISTS idx_notes_uploaded ON notes(uploaded_at);
	`

	_, err := d.db.Exec(schema)
	return err
}

// mapConstraintErr translates sqlite constraint failures into the
// package sentinel errors.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrMissingRelation, err)
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
