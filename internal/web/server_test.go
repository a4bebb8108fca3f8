package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/cache"
	"notedrop/internal/moderation"
	"notedrop/internal/search"
	"notedrop/internal/storage"
	"notedrop/internal/storage/storagetest"
	"notedrop/internal/tasks"
	"notedrop/internal/upload"
)

type fixture struct {
	handler http.Handler
	db      *storage.DB
	blobs   blob.Store
	index   *search.Index
	cache   *cache.SearchCache
	ids     storagetest.IDs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.Open(t)
	ids := storagetest.Seed(t, db)

	idx, err := search.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	projector := search.NewProjector(blobs, nil, 0, nil)
	dispatcher := tasks.New(db, idx, projector, 2, 16, nil)
	t.Cleanup(dispatcher.Stop)

	searchCache := cache.New(time.Minute)
	pipeline := upload.NewPipeline(db, blobs, nil)
	workflow := moderation.NewWorkflow(db, blobs, dispatcher, searchCache, nil)
	authenticator := auth.NewTokenAuthenticator(db)

	srv := NewServer(db, blobs, idx, searchCache, pipeline, workflow, dispatcher, authenticator, nil)
	return &fixture{
		handler: srv.Handler(),
		db:      db,
		blobs:   blobs,
		index:   idx,
		cache:   searchCache,
		ids:     ids,
	}
}

func (f *fixture) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// uploadBody builds a one-item multipart batch against the seeded taxonomy.
func (f *fixture) uploadBody(t *testing.T) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"0[name]":     "Algebra notes",
		"0[category]": fmt.Sprint(f.ids.Category),
		"0[subject]":  fmt.Sprint(f.ids.Subject),
		"0[type]":     fmt.Sprint(f.ids.DocType),
	}
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="0[file]"; filename="algebra.pdf"`)
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake body"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (f *fixture) createNote(t *testing.T, approved bool) int64 {
	t.Helper()
	ctx := context.Background()
	n := &storage.Note{
		Name:       "Algebra notes",
		Filename:   "deadbeef.pdf",
		Extension:  "pdf",
		CategoryID: f.ids.Category,
		SubjectID:  f.ids.Subject,
		DoctypeID:  f.ids.DocType,
		UploaderID: f.ids.User,
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.CreateNotes(ctx, []*storage.Note{n}))
	_, err := f.blobs.Put(ctx, n.Filename, strings.NewReader("%PDF body"), 9)
	require.NoError(t, err)
	if approved {
		_, err := f.db.ApproveNote(ctx, n.ID)
		require.NoError(t, err)
	}
	return n.ID
}

func TestUploadRequiresAuth(t *testing.T) {
	f := newFixture(t)
	body, ctype := f.uploadBody(t)

	rec := f.do(t, http.MethodPost, "/note", "", body, ctype)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadCreatesNotes(t *testing.T) {
	f := newFixture(t)
	body, ctype := f.uploadBody(t)

	rec := f.do(t, http.MethodPost, "/note", "user-token", body, ctype)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var notes []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Algebra notes", notes[0]["name"])
	assert.Equal(t, false, notes[0]["approved"])
	assert.Equal(t, "O-LEVEL", notes[0]["category"])
	assert.NotEmpty(t, notes[0]["url"])
}

func TestUploadBatchErrorGroupedByKind(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	// Item 0 is missing every field except the file.
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="0[file]"; filename="x.pdf"`)
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	part.Write([]byte("x"))
	require.NoError(t, w.Close())

	rec := f.do(t, http.MethodPost, "/note", "user-token", &buf, w.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string][]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{0}, resp["SCHEMA_VALIDATION_ERROR"])
}

func TestGetNote(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, true)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/note/%d", id), "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var note map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, "Algebra notes", note["name"])

	rec = f.do(t, http.MethodGet, "/note/9999", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadGatesUnapprovedNotes(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, false)
	target := fmt.Sprintf("/note/download/%d", id)

	rec := f.do(t, http.MethodGet, target, "", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "anonymous cannot fetch pending notes")

	rec = f.do(t, http.MethodGet, target, "user-token", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "the uploader sees their own pending note")

	rec = f.do(t, http.MethodGet, target, "admin-token", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDownloadIncrementsViews(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, true)
	target := fmt.Sprintf("/note/download/%d", id)

	rec := f.do(t, http.MethodGet, target, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	note, err := f.db.GetNote(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), note.ViewCount)
}

func TestDownloadMissingBlob(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, true)
	require.NoError(t, f.blobs.Delete(context.Background(), "deadbeef.pdf"))

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/note/download/%d", id), "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, false)
	target := fmt.Sprintf("/admin/approve/%d", id)

	rec := f.do(t, http.MethodPut, target, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPut, target, "user-token", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, target, "admin-token", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var note map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, true, note["approved"])
}

func TestDeleteOwnNote(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, true)
	target := fmt.Sprintf("/note/%d", id)

	rec := f.do(t, http.MethodDelete, target, "user-token", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, target, "user-token", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteForbiddenForStranger(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, true)

	strangerID, err := f.db.CreateAccount(context.Background(),
		"stranger", "stranger@example.com", "user", "stranger-token")
	require.NoError(t, err)
	require.NotZero(t, strangerID)

	rec := f.do(t, http.MethodDelete, fmt.Sprintf("/note/%d", id), "stranger-token", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSearchServesAndCaches(t *testing.T) {
	f := newFixture(t)
	id := f.createNote(t, true)

	detail, err := f.db.GetNote(context.Background(), id)
	require.NoError(t, err)
	projector := search.NewProjector(f.blobs, nil, 0, nil)
	require.NoError(t, f.index.IndexOne(projector.Project(context.Background(), detail)))

	rec := f.do(t, http.MethodGet, "/notes/search?keyword=algebra", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))

	var result search.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, uint64(1), result.Total)

	rec = f.do(t, http.MethodGet, "/notes/search?keyword=algebra", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))

	// Equivalent spellings of the query share a cache entry.
	rec = f.do(t, http.MethodGet, "/notes/search?keyword=+Algebra+&page=1&size=50", "", nil, "")
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

func TestSearchDegradesWhenIndexDown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.index.Close())

	rec := f.do(t, http.MethodGet, "/notes/search?keyword=algebra", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, "reads never surface backend trouble")

	var result search.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result.Items)
	assert.Zero(t, result.Total)
	assert.Zero(t, result.Pages)
}

func TestAdminStatusRequiresDeveloper(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/search/status", "admin-token", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "admin is below developer")

	devID, err := f.db.CreateAccount(context.Background(),
		"dev", "dev@example.com", "developer", "dev-token")
	require.NoError(t, err)
	require.NotZero(t, devID)

	rec = f.do(t, http.MethodGet, "/admin/search/status", "dev-token", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["available"])
}

func TestReindexAccepted(t *testing.T) {
	f := newFixture(t)
	f.createNote(t, true)

	devID, err := f.db.CreateAccount(context.Background(),
		"dev", "dev@example.com", "developer", "dev-token")
	require.NoError(t, err)
	require.NotZero(t, devID)

	rec := f.do(t, http.MethodPost, "/admin/search/reindex?recreate=true", "dev-token", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return f.index.GetStats().DocCount == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.createNote(t, true)

	rec := f.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["notes_total"])
}
