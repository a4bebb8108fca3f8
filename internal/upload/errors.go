package upload

import (
	"errors"
	"fmt"
	"sort"
)

// ErrorKind is the closed set of per-item failure kinds.
type ErrorKind string

const (
	KindSchema   ErrorKind = "SCHEMA_VALIDATION_ERROR"
	KindFileType ErrorKind = "INVALID_FILE_TYPE"
)

// ItemError names one failing entry by its submitted index.
type ItemError struct {
	Index  int       `json:"index"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason,omitempty"`
}

// BatchError aggregates every failing entry of a submission. When any
// entry fails, nothing from the batch is committed and the client
// resubmits the corrected batch in full.
type BatchError struct {
	Items []ItemError
}

func (e *BatchError) Error() string {
	byKind := e.ByKind()
	kinds := make([]string, 0, len(byKind))
	for kind, indices := range byKind {
		kinds = append(kinds, fmt.Sprintf("%s at %v", kind, indices))
	}
	sort.Strings(kinds)
	return fmt.Sprintf("batch rejected: %v", kinds)
}

// ByKind groups the failing indices by kind, sorted for stable output.
func (e *BatchError) ByKind() map[ErrorKind][]int {
	grouped := make(map[ErrorKind][]int)
	for _, item := range e.Items {
		grouped[item.Kind] = append(grouped[item.Kind], item.Index)
	}
	for _, indices := range grouped {
		sort.Ints(indices)
	}
	return grouped
}

// ErrTooManyFields rejects pathological payloads before parsing.
var ErrTooManyFields = errors.New("form field count exceeds limit")

// ErrEmptyBatch rejects submissions carrying no note entries.
var ErrEmptyBatch = errors.New("no note entries in submission")
