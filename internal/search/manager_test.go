package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/travelprompt/internal/catalog"
	"github.com/thebtf/travelprompt/pkg/models"
)

func fixtureEntries() []models.PromptEntry {
	return []models.PromptEntry{
		{
			ID:       "hotel-budget",
			Title:    "Budget hotel finder",
			Summary:  "Find a cheap room fast.",
			Category: models.CategoryHotels,
			Tags:     []string{"hotels", "savings"},
		},
		{
			ID:       "hotel-last-minute-deals",
			Title:    "Last-minute hotel booking strategy",
			Summary:  "A fast workflow for booking on short notice.",
			Category: models.CategoryHotels,
			Tags:     []string{"last-minute", "hotels", "channels", "workflow"},
		},
		{
			ID:       "flight-budget",
			Title:    "Budget airline playbook",
			Summary:  "Avoid add-on traps.",
			Category: models.CategoryFlights,
			Tags:     []string{"budget airlines"},
		},
		{
			ID:       "hotel-lux",
			Title:    "Luxury stays",
			Summary:  "Upgrades and perks.",
			Category: models.CategoryHotels,
			Tags:     []string{"BUDGET-friendly perks"},
		},
		{
			ID:       "planning-untagged",
			Title:    "Trip planner",
			Summary:  "Plan everything.",
			Category: models.CategoryPlanning,
			Tags:     []string{},
		},
	}
}

func ids(entries []models.PromptEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestFilter_TableDriven(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		query    string
		expected []string
	}{
		{
			name:     "all and empty query returns everything in order",
			category: models.CategoryAll,
			query:    "",
			expected: []string{"hotel-budget", "hotel-last-minute-deals", "flight-budget", "hotel-lux", "planning-untagged"},
		},
		{
			name:     "whitespace query matches everything",
			category: models.CategoryAll,
			query:    "   \t",
			expected: []string{"hotel-budget", "hotel-last-minute-deals", "flight-budget", "hotel-lux", "planning-untagged"},
		},
		{
			name:     "empty query keeps category set unchanged",
			category: models.CategoryHotels,
			query:    "",
			expected: []string{"hotel-budget", "hotel-last-minute-deals", "hotel-lux"},
		},
		{
			name:     "category and query are combined with AND",
			category: models.CategoryHotels,
			query:    "budget",
			expected: []string{"hotel-budget", "hotel-lux"},
		},
		{
			name:     "query is case insensitive and trimmed",
			category: models.CategoryAll,
			query:    "  BUDGET ",
			expected: []string{"hotel-budget", "flight-budget", "hotel-lux"},
		},
		{
			name:     "last-minute in hotels",
			category: models.CategoryHotels,
			query:    "last-minute",
			expected: []string{"hotel-last-minute-deals"},
		},
		{
			name:     "last-minute in flights",
			category: models.CategoryFlights,
			query:    "last-minute",
			expected: []string{},
		},
		{
			name:     "substring spans title and summary boundary",
			category: models.CategoryAll,
			query:    "finder find",
			expected: []string{"hotel-budget"},
		},
		{
			name:     "substring spans joined tags",
			category: models.CategoryAll,
			query:    "channels workflow",
			expected: []string{"hotel-last-minute-deals"},
		},
		{
			name:     "not token based",
			category: models.CategoryAll,
			query:    "budget finder",
			expected: []string{},
		},
		{
			name:     "empty category selector behaves like all",
			category: "",
			query:    "plan",
			expected: []string{"planning-untagged"},
		},
		{
			name:     "category with no entries",
			category: models.CategoryTransport,
			query:    "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(fixtureEntries(), tt.category, tt.query)
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	entries := fixtureEntries()
	got := Filter(entries, models.CategoryAll, "h")

	pos := make(map[string]int, len(entries))
	for i, e := range entries {
		pos[e.ID] = i
	}
	for i := 1; i < len(got); i++ {
		assert.Less(t, pos[got[i-1].ID], pos[got[i].ID])
	}
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("")
	assert.True(t, ok)
	assert.Equal(t, models.CategoryAll, c)

	c, ok = ParseCategory("ALL")
	assert.True(t, ok)
	assert.Equal(t, models.CategoryAll, c)

	c, ok = ParseCategory("Cards & Miles")
	assert.True(t, ok)
	assert.Equal(t, models.CategoryCards, c)

	_, ok = ParseCategory("hotels")
	assert.False(t, ok)
}

// ManagerSuite runs searches against the embedded catalog.
type ManagerSuite struct {
	suite.Suite
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.manager = NewManager(catalog.MustDefault())
}

func (s *ManagerSuite) TestSearch_Defaults() {
	res := s.manager.Search(Params{})
	s.Equal(models.CategoryAll, res.Category)
	s.Equal(res.TotalCount, len(res.Prompts))
	s.False(res.Filtered)
}

func (s *ManagerSuite) TestSearch_LastMinuteHotels() {
	res := s.manager.Search(Params{Query: "last-minute", Category: models.CategoryHotels})
	s.True(res.Filtered)
	s.Require().NotEmpty(res.Prompts)
	s.Contains(ids(res.Prompts), "hotel-last-minute-deals")
	for _, p := range res.Prompts {
		s.Equal(models.CategoryHotels, p.Category)
	}

	res = s.manager.Search(Params{Query: "last-minute", Category: models.CategoryFlights})
	s.NotContains(ids(res.Prompts), "hotel-last-minute-deals")
}

func (s *ManagerSuite) TestSearch_HotelsBudgetIsExactSubset() {
	all := catalog.MustDefault().Entries()
	var want []string
	for i := range all {
		e := &all[i]
		if e.Category == models.CategoryHotels && Matches(e, "budget") {
			want = append(want, e.ID)
		}
	}

	res := s.manager.Search(Params{Query: "Budget", Category: models.CategoryHotels})
	if want == nil {
		want = []string{}
	}
	require.Equal(s.T(), want, ids(res.Prompts))
}
