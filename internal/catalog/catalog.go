// Package catalog holds the static, ordered prompt catalog compiled into
// the binary.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/travelprompt/pkg/models"
)

// ErrNotFound is returned when no entry matches a lookup.
var ErrNotFound = errors.New("prompt not found")

//go:embed catalog.yaml
var embedded []byte

// document is the top-level YAML structure.
type document struct {
	Prompts []models.PromptEntry `yaml:"prompts"`
}

// Catalog is an immutable ordered set of prompt entries. It is safe for
// concurrent use because nothing mutates it after Parse returns.
type Catalog struct {
	entries []models.PromptEntry
	byID    map[string]int
	bySlug  map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog embedded in the binary. It is decoded once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// MustDefault is Default for callers that cannot continue without a catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("decode embedded catalog: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog. Duplicate ids or slugs and entries with a
// category outside models.Categories are rejected.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Prompts)
}

// New builds a catalog from entries, keeping their order.
func New(entries []models.PromptEntry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]models.PromptEntry, len(entries)),
		byID:    make(map[string]int, len(entries)),
		bySlug:  make(map[string]int),
	}
	copy(c.entries, entries)

	for i := range c.entries {
		e := &c.entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("entry %q: duplicate id", e.ID)
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("entry %q: unknown category %q", e.ID, e.Category)
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		c.byID[e.ID] = i

		if e.Slug == "" {
			continue
		}
		if _, dup := c.bySlug[e.Slug]; dup {
			return nil, fmt.Errorf("entry %q: duplicate slug %q", e.ID, e.Slug)
		}
		c.bySlug[e.Slug] = i
	}
	return c, nil
}

// Entries returns the entries in catalog order. The returned slice is a
// copy; the entries themselves share tag and variable slices with the
// catalog and must not be modified.
func (c *Catalog) Entries() []models.PromptEntry {
	out := make([]models.PromptEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// ByID looks an entry up by id.
func (c *Catalog) ByID(id string) (models.PromptEntry, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.PromptEntry{}, ErrNotFound
	}
	return c.entries[i], nil
}

// BySlug looks an entry up by slug. Entries without a slug are never
// returned, and an empty slug never matches.
func (c *Catalog) BySlug(slug string) (models.PromptEntry, error) {
	if slug == "" {
		return models.PromptEntry{}, ErrNotFound
	}
	i, ok := c.bySlug[slug]
	if !ok {
		return models.PromptEntry{}, ErrNotFound
	}
	return c.entries[i], nil
}

// Categories returns the enumerated categories in display order.
func (c *Catalog) Categories() []models.Category {
	out := make([]models.Category, len(models.Categories))
	copy(out, models.Categories)
	return out
}

// CountByCategory returns how many entries each category holds.
func (c *Catalog) CountByCategory() map[models.Category]int {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, cat := range models.Categories {
		counts[cat] = 0
	}
	for i := range c.entries {
		counts[c.entries[i].Category]++
	}
	return counts
}
