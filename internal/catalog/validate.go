package catalog

import (
	"fmt"

	"github.com/thebtf/travelprompt/internal/hydrate"
)

// Issue is a consistency problem between a template and its variable
// descriptors. Issues never stop the catalog from loading; unfilled tokens
// still render as fallback text.
type Issue struct {
	EntryID string
	Key     string
	Problem string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s %q", i.EntryID, i.Problem, i.Key)
}

// Issue problems.
const (
	ProblemUndeclared = "token without descriptor"
	ProblemUnused     = "descriptor without token"
	ProblemDuplicate  = "duplicate descriptor"
)

// Validate checks that every {{token}} in each template has a variable
// descriptor and that every descriptor is referenced by the template.
func (c *Catalog) Validate() []Issue {
	var issues []Issue
	for i := range c.entries {
		e := &c.entries[i]

		declared := make(map[string]bool, len(e.Variables))
		for _, v := range e.Variables {
			if declared[v.Key] {
				issues = append(issues, Issue{EntryID: e.ID, Key: v.Key, Problem: ProblemDuplicate})
				continue
			}
			declared[v.Key] = true
		}

		used := make(map[string]bool)
		for _, key := range hydrate.Tokens(e.PromptTemplate) {
			used[key] = true
			if !declared[key] {
				issues = append(issues, Issue{EntryID: e.ID, Key: key, Problem: ProblemUndeclared})
			}
		}

		for _, v := range e.Variables {
			if !used[v.Key] {
				issues = append(issues, Issue{EntryID: e.ID, Key: v.Key, Problem: ProblemUnused})
				used[v.Key] = true
			}
		}
	}
	return issues
}
