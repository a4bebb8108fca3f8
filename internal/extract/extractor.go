// Package extract pulls plain text out of uploaded documents for
// full-text indexing.
package extract

import (
	"context"
	"io"
)

// Extractor converts a document blob into plain text. Implementations
// must bound their own work with the supplied context.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// Noop is used when no extraction service is configured; documents are
// indexed on metadata only.
type Noop struct{}

func (Noop) Extract(ctx context.Context, r io.Reader) (string, error) {
	return "", nil
}
