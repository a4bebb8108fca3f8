// Package storagetest opens throwaway databases with baseline rows for
// tests across the module.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"notedrop/internal/storage"
)

// IDs are the row ids created by Seed.
type IDs struct {
	Category int64
	Subject  int64
	DocType  int64
	User     int64
	Admin    int64

	// OtherCategory/OtherSubject form a second valid pair, useful for
	// composite foreign key tests.
	OtherCategory int64
	OtherSubject  int64
}

// Open creates a sqlite database in a temp directory.
func Open(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Seed inserts one taxonomy pair per category plus a user and an admin.
func Seed(t *testing.T, db *storage.DB) IDs {
	t.Helper()
	ctx := context.Background()

	var ids IDs
	var err error

	ids.Category, err = db.CreateCategory(ctx, "O-LEVEL")
	require.NoError(t, err)
	ids.Subject, err = db.CreateSubject(ctx, ids.Category, "Mathematics")
	require.NoError(t, err)

	ids.OtherCategory, err = db.CreateCategory(ctx, "A-LEVEL")
	require.NoError(t, err)
	ids.OtherSubject, err = db.CreateSubject(ctx, ids.OtherCategory, "Physics")
	require.NoError(t, err)

	ids.DocType, err = db.CreateDocType(ctx, "Notes")
	require.NoError(t, err)

	ids.User, err = db.CreateAccount(ctx, "uploader", "uploader@example.com", "user", "user-token")
	require.NoError(t, err)
	ids.Admin, err = db.CreateAccount(ctx, "moderator", "moderator@example.com", "admin", "admin-token")
	require.NoError(t, err)

	return ids
}
