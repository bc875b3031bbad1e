// Package search filters the prompt catalog by free text and category.
package search

import (
	"strings"

	"github.com/thebtf/travelprompt/internal/catalog"
	"github.com/thebtf/travelprompt/pkg/models"
)

// Normalize trims and lower-cases a query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Matches reports whether entry contains the already-normalized query as a
// substring of its title, summary and tags. An empty query matches.
func Matches(entry *models.PromptEntry, normalized string) bool {
	if normalized == "" {
		return true
	}
	haystack := strings.ToLower(entry.Title + " " + entry.Summary + " " + strings.Join(entry.Tags, " "))
	return strings.Contains(haystack, normalized)
}

// InCategory reports whether entry passes the category selector.
func InCategory(entry *models.PromptEntry, category models.Category) bool {
	return category == models.CategoryAll || category == "" || entry.Category == category
}

// Filter returns the entries that pass both the category selector and the
// query, in their original order.
func Filter(entries []models.PromptEntry, category models.Category, query string) []models.PromptEntry {
	normalized := Normalize(query)
	result := make([]models.PromptEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if InCategory(e, category) && Matches(e, normalized) {
			result = append(result, *e)
		}
	}
	return result
}

// Params are the inputs of a catalog search.
type Params struct {
	Query    string
	Category models.Category
}

// ParseCategory maps a selector string onto a category. Empty and "all"
// select everything; ok is false for anything outside the enumerated set.
func ParseCategory(s string) (models.Category, bool) {
	if s == "" || strings.EqualFold(s, string(models.CategoryAll)) {
		return models.CategoryAll, true
	}
	c := models.Category(s)
	return c, c.Valid()
}

// Result is the outcome of a catalog search.
type Result struct {
	Query      string               `json:"query,omitempty"`
	Category   models.Category      `json:"category"`
	Prompts    []models.PromptEntry `json:"prompts"`
	TotalCount int                  `json:"total_count"`
	Filtered   bool                 `json:"filtered"`
}

// Manager runs searches against a catalog.
type Manager struct {
	catalog *catalog.Catalog
}

// NewManager creates a new search manager.
func NewManager(c *catalog.Catalog) *Manager {
	return &Manager{catalog: c}
}

// Search filters the catalog. TotalCount is the size of the full catalog,
// so callers can show "n of m".
func (m *Manager) Search(params Params) *Result {
	if params.Category == "" {
		params.Category = models.CategoryAll
	}
	entries := m.catalog.Entries()
	return &Result{
		Query:      params.Query,
		Category:   params.Category,
		Prompts:    Filter(entries, params.Category, params.Query),
		TotalCount: len(entries),
		Filtered:   Normalize(params.Query) != "" || params.Category != models.CategoryAll,
	}
}
