package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ErrUnavailable is returned by read and write operations when the
// index backend is not reachable. Callers on the read path degrade to
// empty results; callers on the write path retry.
var ErrUnavailable = errors.New("search backend unavailable")

// Index wraps a Bleve search index holding the approved-note projection.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string // empty for in-memory indexes
}

// Open opens or creates a Bleve index at path.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

// OpenMemory creates a transient in-memory index.
func OpenMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping defines the projection schema: analyzed text for
// Name/SearchText/Content, lowercased keyword terms for the taxonomy
// filter fields, numeric Year and datetime UploadedAt for sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	// Single-token lowercase analyzer for exact-match filter fields.
	err := indexMapping.AddCustomAnalyzer("keyword_lower", map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		// Static configuration; can only fail on a typo above.
		panic(fmt.Sprintf("keyword_lower analyzer: %v", err))
	}

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = "en" // English analyzer for better stemming

	textFieldMapping := bleve.NewTextFieldMapping()

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = "keyword_lower"

	yearFieldMapping := bleve.NewNumericFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Name", nameFieldMapping)
	docMapping.AddFieldMappingsAt("SearchText", textFieldMapping)
	docMapping.AddFieldMappingsAt("Content", textFieldMapping)
	docMapping.AddFieldMappingsAt("Category", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Subject", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("DocType", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Uploader", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Filename", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Extension", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Year", yearFieldMapping)
	docMapping.AddFieldMappingsAt("UploadedAt", dateFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index. Subsequent operations report ErrUnavailable.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	return err
}

// Available reports whether the backend can serve requests.
func (i *Index) Available() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.index == nil {
		return false
	}
	_, err := i.index.DocCount()
	return err == nil
}

func (i *Index) handle() (bleve.Index, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.index == nil {
		return nil, ErrUnavailable
	}
	return i.index, nil
}

// EnsureSchema makes sure the index exists with the current mapping.
// With recreate set, the existing index is destroyed and rebuilt empty;
// the caller is expected to follow up with a full reindex. Reports
// whether a new index was created.
func (i *Index) EnsureSchema(recreate bool) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.index != nil && !recreate {
		return false, nil
	}

	if i.path == "" {
		// Memory-only index: recreate in place.
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return false, fmt.Errorf("create memory index: %w", err)
		}
		if i.index != nil {
			i.index.Close()
		}
		i.index = idx
		return true, nil
	}

	if i.index != nil {
		if err := i.index.Close(); err != nil {
			return false, fmt.Errorf("close index: %w", err)
		}
		i.index = nil
	}
	if recreate {
		if err := os.RemoveAll(i.path); err != nil {
			return false, fmt.Errorf("remove index: %w", err)
		}
	}

	idx, err := bleve.Open(i.path)
	created := false
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(i.path, buildIndexMapping())
		created = true
	}
	if err != nil {
		return false, fmt.Errorf("ensure index: %w", err)
	}
	i.index = idx
	return created, nil
}

// IndexOne adds or overwrites one document, keyed by document id, so
// re-indexing an already-indexed note can never duplicate it. The write
// is visible to subsequent searches immediately.
func (i *Index) IndexOne(doc *Document) error {
	idx, err := i.handle()
	if err != nil {
		return err
	}
	if err := idx.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return nil
}

// IndexBulk indexes documents in one batch, returning success and
// failure counts. A failed batch commit counts every document as failed.
func (i *Index) IndexBulk(docs []*Document) (ok int, failed int) {
	idx, err := i.handle()
	if err != nil {
		return 0, len(docs)
	}

	batch := idx.NewBatch()
	staged := 0
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			failed++
			continue
		}
		staged++
	}

	if err := idx.Batch(batch); err != nil {
		return 0, len(docs)
	}
	return staged, failed
}

// DeleteOne removes a document. Deleting an absent id is not an error.
func (i *Index) DeleteOne(id string) error {
	idx, err := i.handle()
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Stats describes the index for the admin status endpoint.
type Stats struct {
	Exists    bool   `json:"exists"`
	DocCount  uint64 `json:"doc_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// GetStats reports index existence, document count and on-disk size.
// Tolerant of the index not existing.
func (i *Index) GetStats() Stats {
	idx, err := i.handle()
	if err != nil {
		return Stats{}
	}

	stats := Stats{Exists: true}
	if count, err := idx.DocCount(); err == nil {
		stats.DocCount = count
	}
	if i.path != "" {
		filepath.Walk(i.path, func(_ string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				stats.SizeBytes += info.Size()
			}
			return nil
		})
	}
	return stats
}
