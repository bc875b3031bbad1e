package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/travelprompt/pkg/models"
)

// CatalogSuite exercises the embedded catalog.
type CatalogSuite struct {
	suite.Suite
	catalog *Catalog
}

func (s *CatalogSuite) SetupSuite() {
	c, err := Default()
	s.Require().NoError(err)
	s.catalog = c
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) TestEmbeddedEntries() {
	s.Equal(20, s.catalog.Len())

	entries := s.catalog.Entries()
	s.Equal("flight-cashback-compare", entries[0].ID)
	s.Equal("rewards-stacking-audit", entries[len(entries)-1].ID)

	for _, e := range entries {
		s.True(e.Category.Valid(), "entry %s has category %q", e.ID, e.Category)
		s.NotEmpty(e.Title, e.ID)
		s.NotEmpty(e.PromptTemplate, e.ID)
		s.NotNil(e.Tags, e.ID)
	}
}

func (s *CatalogSuite) TestEmbeddedCatalogIsConsistent() {
	s.Empty(s.catalog.Validate())
}

func (s *CatalogSuite) TestCountByCategory() {
	counts := s.catalog.CountByCategory()
	s.Len(counts, len(models.Categories))
	s.Equal(3, counts[models.CategoryFlights])
	s.Equal(3, counts[models.CategoryHotels])
	s.Equal(6, counts[models.CategoryPlanning])

	total := 0
	for _, n := range counts {
		total += n
	}
	s.Equal(s.catalog.Len(), total)
}

func (s *CatalogSuite) TestByID() {
	e, err := s.catalog.ByID("hotel-last-minute-deals")
	s.Require().NoError(err)
	s.Equal("Last-minute hotel booking strategy", e.Title)
	s.Equal(models.CategoryHotels, e.Category)
	s.Equal([]string{"last-minute", "hotels", "channels", "workflow"}, e.Tags)

	_, err = s.catalog.ByID("does-not-exist")
	s.ErrorIs(err, ErrNotFound)
}

func (s *CatalogSuite) TestBySlug_EmbeddedEntriesAreNotRoutable() {
	for _, e := range s.catalog.Entries() {
		s.False(e.Routable(), e.ID)
		_, err := s.catalog.BySlug(e.ID)
		s.ErrorIs(err, ErrNotFound)
	}
	_, err := s.catalog.BySlug("")
	s.ErrorIs(err, ErrNotFound)
}

func (s *CatalogSuite) TestEntriesReturnsCopy() {
	entries := s.catalog.Entries()
	entries[0] = models.PromptEntry{ID: "mutated"}

	fresh := s.catalog.Entries()
	s.Equal("flight-cashback-compare", fresh[0].ID)
}

func (s *CatalogSuite) TestCategories() {
	s.Equal([]models.Category{
		"Flights", "Hotels", "Packages", "Transport", "Planning", "Cards & Miles",
	}, s.catalog.Categories())
}

func TestParse_TableDriven(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		wantLen int
	}{
		{
			name:    "empty document",
			yaml:    "",
			wantLen: 0,
		},
		{
			name: "slugged entry",
			yaml: `
prompts:
  - id: a
    slug: alpha
    title: Alpha
    summary: s
    category: Flights
    tags: [x]
    prompt_template: "Go to {{city}}"
`,
			wantLen: 1,
		},
		{
			name: "unknown category",
			yaml: `
prompts:
  - id: a
    title: Alpha
    category: Cruises
    prompt_template: x
`,
			wantErr: "unknown category",
		},
		{
			name: "duplicate id",
			yaml: `
prompts:
  - {id: a, title: A, category: Hotels, prompt_template: x}
  - {id: a, title: B, category: Hotels, prompt_template: y}
`,
			wantErr: "duplicate id",
		},
		{
			name: "duplicate slug",
			yaml: `
prompts:
  - {id: a, slug: s, title: A, category: Hotels, prompt_template: x}
  - {id: b, slug: s, title: B, category: Hotels, prompt_template: y}
`,
			wantErr: "duplicate slug",
		},
		{
			name: "missing id",
			yaml: `
prompts:
  - {title: A, category: Hotels, prompt_template: x}
`,
			wantErr: "missing id",
		},
		{
			name:    "invalid yaml",
			yaml:    ":\tinvalid:\tyaml:\t[unclosed",
			wantErr: "decode catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, c.Len())
		})
	}
}

func TestBySlug_Routable(t *testing.T) {
	c, err := New([]models.PromptEntry{
		{ID: "a", Slug: "alpha", Title: "A", Category: models.CategoryFlights},
		{ID: "b", Title: "B", Category: models.CategoryHotels},
	})
	require.NoError(t, err)

	e, err := c.BySlug("alpha")
	require.NoError(t, err)
	assert.Equal(t, "a", e.ID)

	_, err = c.BySlug("b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidate_ReportsIssues(t *testing.T) {
	c, err := New([]models.PromptEntry{
		{
			ID:             "a",
			Category:       models.CategoryPlanning,
			PromptTemplate: "{{origin}} to {{ destination }}",
			Variables: []models.PromptVariable{
				{Key: "origin", Label: "Origin"},
				{Key: "origin", Label: "Origin again"},
				{Key: "budget", Label: "Budget"},
			},
		},
	})
	require.NoError(t, err)

	issues := c.Validate()
	assert.Equal(t, []Issue{
		{EntryID: "a", Key: "origin", Problem: ProblemDuplicate},
		{EntryID: "a", Key: "destination", Problem: ProblemUndeclared},
		{EntryID: "a", Key: "budget", Problem: ProblemUnused},
	}, issues)
	assert.Equal(t, `a: token without descriptor "destination"`, issues[1].String())
}
