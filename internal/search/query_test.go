package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPages(t *testing.T) {
	tests := []struct {
		total uint64
		size  int
		want  int
	}{
		{101, 50, 3},
		{100, 50, 2},
		{1, 50, 1},
		{0, 50, 0},
		{50, 50, 1},
		{51, 50, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	p := Params{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Size)
	assert.Empty(t, p.Keyword)
	assert.Zero(t, p.Year)
}

func TestNormalizeLowercasesAndTrims(t *testing.T) {
	p := Params{Keyword: "  MATH ", Category: "O-LEVEL", Subject: "Physics", DocType: "Notes"}.Normalize()
	assert.Equal(t, "math", p.Keyword)
	assert.Equal(t, "o-level", p.Category)
	assert.Equal(t, "physics", p.Subject)
	assert.Equal(t, "notes", p.DocType)
}

func TestNormalizeClampsBounds(t *testing.T) {
	p := Params{Page: -5, Size: 10000, Year: -2}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.Size)
	assert.Zero(t, p.Year)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcd", 2))
	assert.Len(t, []rune(Truncate("日本語テキスト", 3)), 3)
}

func TestEmptyResultShape(t *testing.T) {
	r := EmptyResult(Params{Page: 2, Size: 25}.Normalize())
	assert.NotNil(t, r.Items)
	assert.Empty(t, r.Items)
	assert.Zero(t, r.Total)
	assert.Zero(t, r.Pages)
}
