package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultPageSize applies when the caller does not specify a size.
const DefaultPageSize = 50

// MaxPageSize caps a single result page.
const MaxPageSize = 100

// Params are the normalized search query parameters. A zero value for
// any filter means "not filtered".
type Params struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
	DocType  string `json:"doc_type"`
	Year     int    `json:"year"`
	Page     int    `json:"page"`
	Size     int    `json:"size"`
	Fuzzy    bool   `json:"fuzzy"`
}

// Normalize lowercases and defaults every field so the same logical
// query always produces the same Params value.
func (p Params) Normalize() Params {
	p.Keyword = strings.ToLower(strings.TrimSpace(p.Keyword))
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.Subject = strings.ToLower(strings.TrimSpace(p.Subject))
	p.DocType = strings.ToLower(strings.TrimSpace(p.DocType))
	if p.Year < 0 {
		p.Year = 0
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Hit is one search result.
type Hit struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Subject    string    `json:"subject"`
	DocType    string    `json:"doc_type"`
	Uploader   string    `json:"uploader"`
	Filename   string    `json:"filename"`
	Extension  string    `json:"extension"`
	Year       int       `json:"year,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	Score      float64   `json:"score"`
	Fragments  []string  `json:"fragments,omitempty"`
}

// FacetCount is one facet bucket.
type FacetCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Result is a paginated, faceted result set.
type Result struct {
	Items  []*Hit                  `json:"items"`
	Total  uint64                  `json:"total"`
	Page   int                     `json:"page"`
	Size   int                     `json:"size"`
	Pages  int                     `json:"pages"`
	Facets map[string][]FacetCount `json:"facets,omitempty"`
}

// EmptyResult is the neutral shape served when the backend is down.
func EmptyResult(p Params) *Result {
	return &Result{Items: []*Hit{}, Page: p.Page, Size: p.Size}
}

// Pages computes ceil(total/size) without division-by-zero surprises.
func Pages(total uint64, size int) int {
	if total == 0 || size <= 0 {
		return 0
	}
	return int((total + uint64(size) - 1) / uint64(size))
}

// Search runs a ranked, filtered, paginated query. The keyword matches
// Name (3x), SearchText (2x) and Content (1x) with optional fuzziness
// plus a phrase variant; taxonomy and year filters are AND-ed exact
// matches; with no keyword and no filters everything matches, ranked by
// recency.
func (i *Index) Search(p Params) (*Result, error) {
	idx, err := i.handle()
	if err != nil {
		return nil, err
	}
	p = p.Normalize()

	q := buildQuery(p)

	from := (p.Page - 1) * p.Size
	req := bleve.NewSearchRequestOptions(q, p.Size, from, false)
	req.Fields = []string{"*"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("Content")
	req.SortBy([]string{"-_score", "-UploadedAt"})
	for field, name := range map[string]string{
		"Category": "categories",
		"Subject":  "subjects",
		"DocType":  "doc_types",
	} {
		req.AddFacet(name, bleve.NewFacetRequest(field, 25))
	}

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	result := &Result{
		Items: make([]*Hit, 0, len(res.Hits)),
		Total: res.Total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: Pages(res.Total, p.Size),
	}

	for _, hit := range res.Hits {
		h := &Hit{ID: hit.ID, Score: hit.Score}
		h.Name, _ = hit.Fields["Name"].(string)
		h.Category, _ = hit.Fields["Category"].(string)
		h.Subject, _ = hit.Fields["Subject"].(string)
		h.DocType, _ = hit.Fields["DocType"].(string)
		h.Uploader, _ = hit.Fields["Uploader"].(string)
		h.Filename, _ = hit.Fields["Filename"].(string)
		h.Extension, _ = hit.Fields["Extension"].(string)
		if year, ok := hit.Fields["Year"].(float64); ok {
			h.Year = int(year)
		}
		if uploaded, ok := hit.Fields["UploadedAt"].(string); ok {
			if t, err := time.Parse(time.RFC3339, uploaded); err == nil {
				h.UploadedAt = t
			}
		}
		if fragments, ok := hit.Fragments["Content"]; ok {
			h.Fragments = fragments
		}
		result.Items = append(result.Items, h)
	}

	if len(res.Facets) > 0 {
		result.Facets = make(map[string][]FacetCount, len(res.Facets))
		for name, facet := range res.Facets {
			var counts []FacetCount
			if facet.Terms != nil {
				for _, term := range facet.Terms.Terms() {
					counts = append(counts, FacetCount{Term: term.Term, Count: term.Count})
				}
			}
			result.Facets[name] = counts
		}
	}

	return result, nil
}

func buildQuery(p Params) query.Query {
	var conjuncts []query.Query

	if p.Keyword != "" {
		name := bleve.NewMatchQuery(p.Keyword)
		name.SetField("Name")
		name.SetBoost(3)

		searchText := bleve.NewMatchQuery(p.Keyword)
		searchText.SetField("SearchText")
		searchText.SetBoost(2)

		content := bleve.NewMatchQuery(p.Keyword)
		content.SetField("Content")

		if p.Fuzzy {
			name.SetFuzziness(1)
			searchText.SetFuzziness(1)
			content.SetFuzziness(1)
		}

		phrase := bleve.NewMatchPhraseQuery(p.Keyword)
		phrase.SetField("SearchText")
		phrase.SetBoost(4)

		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(name, searchText, content, phrase))
	}

	for field, value := range map[string]string{
		"Category": p.Category,
		"Subject":  p.Subject,
		"DocType":  p.DocType,
	} {
		if value == "" {
			continue
		}
		// Term queries bypass analysis; values were lowercased by the
		// keyword_lower analyzer at index time and by Normalize here.
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		conjuncts = append(conjuncts, tq)
	}

	if p.Year > 0 {
		year := float64(p.Year)
		inclusive := true
		yq := bleve.NewNumericRangeInclusiveQuery(&year, &year, &inclusive, &inclusive)
		yq.SetField("Year")
		conjuncts = append(conjuncts, yq)
	}

	switch len(conjuncts) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return conjuncts[0]
	default:
		return bleve.NewConjunctionQuery(conjuncts...)
	}
}
