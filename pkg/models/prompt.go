// Package models contains domain models for travelprompt.
package models

// Category classifies a prompt entry. The set is closed; see Categories.
type Category string

// Prompt categories, in display order.
const (
	CategoryFlights   Category = "Flights"
	CategoryHotels    Category = "Hotels"
	CategoryPackages  Category = "Packages"
	CategoryTransport Category = "Transport"
	CategoryPlanning  Category = "Planning"
	CategoryCards     Category = "Cards & Miles"
)

// CategoryAll is the filter selector that matches every category.
// It is never a valid entry category.
const CategoryAll Category = "all"

// Categories is the single source of truth for available categories and
// filter options.
var Categories = []Category{
	CategoryFlights,
	CategoryHotels,
	CategoryPackages,
	CategoryTransport,
	CategoryPlanning,
	CategoryCards,
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PromptVariable describes one placeholder a template expects.
type PromptVariable struct {
	Key         string `yaml:"key" json:"key"`
	Label       string `yaml:"label" json:"label"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Example     string `yaml:"example,omitempty" json:"example,omitempty"`
}

// PromptEntry is a single catalog item. Entries are built once from the
// embedded catalog and never mutated.
type PromptEntry struct {
	ID             string           `yaml:"id" json:"id"`
	Slug           string           `yaml:"slug,omitempty" json:"slug,omitempty"`
	Title          string           `yaml:"title" json:"title"`
	Summary        string           `yaml:"summary" json:"summary"`
	Category       Category         `yaml:"category" json:"category"`
	Intent         string           `yaml:"intent,omitempty" json:"intent,omitempty"`
	Purpose        string           `yaml:"purpose,omitempty" json:"purpose,omitempty"`
	Tags           []string         `yaml:"tags" json:"tags"`
	PromptTemplate string           `yaml:"prompt_template" json:"promptTemplate"`
	Variables      []PromptVariable `yaml:"variables,omitempty" json:"variables,omitempty"`
	WhenToUse      []string         `yaml:"when_to_use,omitempty" json:"whenToUse,omitempty"`
}

// Routable reports whether the entry can be addressed by slug.
func (p *PromptEntry) Routable() bool {
	return p.Slug != ""
}

// TrackingKey is the identifier recorded in usage events: the slug when
// present, otherwise the id.
func (p *PromptEntry) TrackingKey() string {
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID
}

// HasVariables reports whether the entry declares any variable descriptors.
func (p *PromptEntry) HasVariables() bool {
	return len(p.Variables) > 0
}
