// Package insights aggregates the usage log into ranked counts.
package insights

import (
	"sort"
	"strings"

	"github.com/thebtf/travelprompt/pkg/models"
)

// UnknownKey groups view and copy events that carry no slug.
const UnknownKey = "unknown"

// Count is one ranked group.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Report holds the grouped counts shown by the insights view.
type Report struct {
	Views       []Count `json:"views"`
	Copies      []Count `json:"copies"`
	Searches    []Count `json:"searches"`
	TotalEvents int     `json:"total_events"`
}

// Display limits used by the insights view.
const (
	TopViews    = 6
	TopCopies   = 6
	TopSearches = 10
)

// Build aggregates events into a full (untruncated) report.
func Build(events []models.StoredEvent) *Report {
	return &Report{
		Views:       GroupCounts(events, models.EventView, slugKey),
		Copies:      GroupCounts(events, models.EventCopy, slugKey),
		Searches:    dropEmpty(GroupCounts(events, models.EventSearch, queryKey)),
		TotalEvents: len(events),
	}
}

// Top returns a copy of r with each list cut to the display limits.
func (r *Report) Top() *Report {
	return &Report{
		Views:       Top(r.Views, TopViews),
		Copies:      Top(r.Copies, TopCopies),
		Searches:    Top(r.Searches, TopSearches),
		TotalEvents: r.TotalEvents,
	}
}

// GroupCounts counts events of one kind by key, sorted by count descending.
// Equal counts keep the order in which their key first appeared.
func GroupCounts(events []models.StoredEvent, name models.EventName, key func(models.StoredEvent) string) []Count {
	index := make(map[string]int)
	counts := []Count{}
	for _, e := range events {
		if e.Name != name {
			continue
		}
		k := key(e)
		if i, ok := index[k]; ok {
			counts[i].Count++
			continue
		}
		index[k] = len(counts)
		counts = append(counts, Count{Key: k, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

// Top returns at most n leading counts.
func Top(counts []Count, n int) []Count {
	if n < 0 || len(counts) <= n {
		return counts
	}
	return counts[:n]
}

func slugKey(e models.StoredEvent) string {
	if s := e.Slug(); s != "" {
		return s
	}
	return UnknownKey
}

func queryKey(e models.StoredEvent) string {
	return strings.ToLower(e.Query())
}

func dropEmpty(counts []Count) []Count {
	out := counts[:0]
	for _, c := range counts {
		if c.Key != "" {
			out = append(out, c)
		}
	}
	return out
}
