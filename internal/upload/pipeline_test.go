package upload

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/storage"
	"notedrop/internal/storage/storagetest"
)

func newPipeline(t *testing.T) (*Pipeline, *storage.DB, blob.Store, storagetest.IDs) {
	t.Helper()
	db := storagetest.Open(t)
	ids := storagetest.Seed(t, db)
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewPipeline(db, blobs, nil), db, blobs, ids
}

func uploader(ids storagetest.IDs) *auth.Identity {
	return &auth.Identity{UserID: ids.User, Username: "uploader", Role: auth.RoleUser}
}

func seededEntry(ids storagetest.IDs, idx int) formEntry {
	e := validEntry(idx)
	e.category = fmt.Sprint(ids.Category)
	e.subject = fmt.Sprint(ids.Subject)
	e.docType = fmt.Sprint(ids.DocType)
	return e
}

func TestUploadCommitsBatchAndStoresBlobs(t *testing.T) {
	p, db, blobs, ids := newPipeline(t)
	ctx := context.Background()

	form := buildForm(t, seededEntry(ids, 0), seededEntry(ids, 1), seededEntry(ids, 2))

	notes, err := p.Upload(ctx, form, uploader(ids))
	require.NoError(t, err)
	require.Len(t, notes, 3)

	for _, n := range notes {
		assert.False(t, n.Approved, "new notes start pending")
		assert.Equal(t, "pdf", n.Extension)
		assert.Equal(t, "O-LEVEL", n.Category)
		assert.Equal(t, "Mathematics", n.Subject)
		assert.Equal(t, "uploader", n.Uploader)

		exists, err := blobs.Exists(ctx, n.Filename)
		require.NoError(t, err)
		assert.True(t, exists, "blob stored under %s", n.Filename)
	}

	// Storage keys must be unique across the batch.
	assert.NotEqual(t, notes[0].Filename, notes[1].Filename)

	total, _, err := db.CountNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestUploadRejectsWholeBatchOnOneBadItem(t *testing.T) {
	p, db, _, ids := newPipeline(t)
	ctx := context.Background()

	bad := seededEntry(ids, 3)
	bad.name = "" // schema failure at index 3

	form := buildForm(t, seededEntry(ids, 0), seededEntry(ids, 1), seededEntry(ids, 2), bad)

	_, err := p.Upload(ctx, form, uploader(ids))
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, map[ErrorKind][]int{KindSchema: {3}}, batchErr.ByKind())

	total, _, err := db.CountNotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, total, "no partial commits")
}

func TestUploadAggregatesFailuresAcrossKinds(t *testing.T) {
	p, _, _, ids := newPipeline(t)

	badSchema := seededEntry(ids, 1)
	badSchema.category = "not-a-number"

	badType := seededEntry(ids, 2)
	badType.mimeType = "application/zip" // elevated-only for a user role

	form := buildForm(t, seededEntry(ids, 0), badSchema, badType)

	_, err := p.Upload(context.Background(), form, uploader(ids))
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, map[ErrorKind][]int{
		KindSchema:   {1},
		KindFileType: {2},
	}, batchErr.ByKind())
}

func TestUploadRoleGatesFileTypes(t *testing.T) {
	p, _, _, ids := newPipeline(t)
	ctx := context.Background()

	entry := seededEntry(ids, 0)
	entry.fileName = "summary.docx"
	entry.mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	_, err := p.Upload(ctx, buildForm(t, entry), uploader(ids))
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, map[ErrorKind][]int{KindFileType: {0}}, batchErr.ByKind())

	// The same file succeeds for a developer.
	dev := &auth.Identity{UserID: ids.Admin, Username: "moderator", Role: auth.RoleDeveloper}
	notes, err := p.Upload(ctx, buildForm(t, entry), dev)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "docx", notes[0].Extension)
}

func TestUploadRejectsMissingRelation(t *testing.T) {
	p, db, _, ids := newPipeline(t)
	ctx := context.Background()

	entry := seededEntry(ids, 0)
	entry.subject = "9999" // no such subject

	_, err := p.Upload(ctx, buildForm(t, entry), uploader(ids))
	require.ErrorIs(t, err, storage.ErrMissingRelation)

	total, _, err := db.CountNotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUploadEnforcesSubjectUnderCategory(t *testing.T) {
	p, db, _, ids := newPipeline(t)
	ctx := context.Background()

	// A-LEVEL Physics attached under O-LEVEL: valid ids, invalid pair.
	entry := seededEntry(ids, 0)
	entry.subject = fmt.Sprint(ids.OtherSubject)

	_, err := p.Upload(ctx, buildForm(t, entry), uploader(ids))
	require.ErrorIs(t, err, storage.ErrMissingRelation)

	total, _, err := db.CountNotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUploadFieldCountCeiling(t *testing.T) {
	p, _, _, ids := newPipeline(t)

	entries := make([]formEntry, 0, MaxBatchItems+1)
	for i := range MaxBatchItems + 1 {
		e := seededEntry(ids, i)
		e.year = "2024" // all six fields per item
		entries = append(entries, e)
	}
	form := buildForm(t, entries...)

	_, err := p.Upload(context.Background(), form, uploader(ids))
	require.ErrorIs(t, err, ErrTooManyFields)
}

func TestUploadEmptyBatch(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	form := buildForm(t)

	_, err := p.Upload(context.Background(), form, &auth.Identity{UserID: 1, Role: auth.RoleUser})
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrTooManyFields))
	assert.True(t, IsClientError(ErrEmptyBatch))
	assert.True(t, IsClientError(&BatchError{}))
	assert.False(t, IsClientError(context.Canceled))
}
