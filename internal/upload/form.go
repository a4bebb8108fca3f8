package upload

import (
	"errors"
	"fmt"
	"mime/multipart"
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxBatchItems bounds how many notes one submission may carry.
	MaxBatchItems = 20

	// fieldsPerItem: file, category, subject, type, year, name.
	fieldsPerItem = 6

	// MaxFormFields is the total field ceiling; submissions above it are
	// rejected before any parsing work.
	MaxFormFields = MaxBatchItems * fieldsPerItem

	// MaxNameLength bounds the display name of a note.
	MaxNameLength = 100
)

// ErrBadItem marks a single batch entry that failed schema validation.
// The batch loop continues past it and aggregates all failures.
var ErrBadItem = errors.New("invalid note entry")

// Item is one parsed row of a multi-file submission. It exists only for
// the duration of the upload request.
type Item struct {
	Index      int
	Name       string
	CategoryID int64
	SubjectID  int64
	DoctypeID  int64
	Year       *int
	File       *multipart.FileHeader

	// Filled in by the pipeline after file-type gating.
	Extension  string
	StorageKey string
}

// FieldCount counts every submitted value and file field.
func FieldCount(form *multipart.Form) int {
	n := 0
	for _, vs := range form.Value {
		n += len(vs)
	}
	for _, fs := range form.File {
		n += len(fs)
	}
	return n
}

// ItemIndices returns the sorted set of entry indices present in the
// form, discovered from keys shaped like "{idx}[field]".
func ItemIndices(form *multipart.Form) []int {
	seen := make(map[int]bool)
	collect := func(key string) {
		open := strings.IndexByte(key, '[')
		if open <= 0 {
			return
		}
		idx, err := strconv.Atoi(key[:open])
		if err != nil || idx < 0 {
			return
		}
		seen[idx] = true
	}
	for key := range form.Value {
		collect(key)
	}
	for key := range form.File {
		collect(key)
	}

	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// ParseItem validates one indexed entry and returns its typed record,
// or ErrBadItem with the failure reason.
func ParseItem(form *multipart.Form, idx int) (*Item, error) {
	item := &Item{Index: idx}

	files := form.File[fmt.Sprintf("%d[file]", idx)]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: missing file", ErrBadItem)
	}
	item.File = files[0]

	var err error
	if item.CategoryID, err = intField(form, idx, "category"); err != nil {
		return nil, err
	}
	if item.SubjectID, err = intField(form, idx, "subject"); err != nil {
		return nil, err
	}
	if item.DoctypeID, err = intField(form, idx, "type"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(firstValue(form, idx, "name"))
	if name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrBadItem)
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, fmt.Errorf("%w: name longer than %d characters", ErrBadItem, MaxNameLength)
	}
	item.Name = name

	// Year is optional; 0 is normalized to absent.
	if raw := firstValue(form, idx, "year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 0 {
			return nil, fmt.Errorf("%w: invalid year", ErrBadItem)
		}
		if year != 0 {
			item.Year = &year
		}
	}

	return item, nil
}

func firstValue(form *multipart.Form, idx int, field string) string {
	vs := form.Value[fmt.Sprintf("%d[%s]", idx, field)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func intField(form *multipart.Form, idx int, field string) (int64, error) {
	raw := strings.TrimSpace(firstValue(form, idx, field))
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrBadItem, field)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrBadItem, field)
	}
	return n, nil
}
