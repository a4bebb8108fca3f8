package search

import (
	"fmt"
	"strings"
	"time"
)

// MaxContentChars bounds extracted document text. Anything beyond this
// adds index size without improving recall.
const MaxContentChars = 50000

// Document is the denormalized projection of an approved note held in
// the search index. Taxonomy fields carry names, not foreign keys.
type Document struct {
	ID         string
	Name       string
	Category   string
	Subject    string
	DocType    string
	Uploader   string
	Filename   string
	Extension  string
	Year       int
	UploadedAt time.Time
	Content    string
	SearchText string
}

// DocID formats a note id as an index document id.
func DocID(noteID int64) string {
	return fmt.Sprintf("%d", noteID)
}

// SetContent attaches extracted text, truncating to MaxContentChars,
// and rebuilds the synthesized SearchText scoring field.
func (d *Document) SetContent(content string) {
	d.Content = Truncate(content, MaxContentChars)
	d.SearchText = strings.TrimSpace(strings.Join([]string{
		d.Name, d.Subject, d.Category, Truncate(d.Content, 2000),
	}, " "))
}

// Truncate cuts s to at most n characters. The ceiling is defined in
// characters of extracted text, so count runes rather than bytes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
