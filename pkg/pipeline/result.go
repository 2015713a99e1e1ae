package pipeline

import (
	"slices"
	"strings"

	"screenlist/pkg/domain"
	"screenlist/pkg/filter"
	"screenlist/pkg/sources"
	"screenlist/pkg/worker"
)

// Result describes a finished (or failed) run
type Result struct {
	RunID  string
	State  State
	States []State

	Items            []domain.RawItem
	EnumerationStats sources.Stats

	// Resolved holds every item with a record, cached or new, in listing order.
	Resolved     []domain.Entry
	FromCache    int
	Unresolved   []domain.UnresolvedItem
	ResolveTally worker.Tally

	Selected    []domain.Entry
	FilterStats filter.Stats

	ReportPath string
	MarkerPath string

	CacheLoadErr error
	CacheSaveErr error
}

// ExitCode is 0 when at least one entry made it into the report
func (r *Result) ExitCode() int {
	if r == nil || r.State != StateDone || len(r.Selected) == 0 {
		return 1
	}
	return 0
}

// UnresolvedTitles returns the original titles of unresolved items, unique and sorted
func (r *Result) UnresolvedTitles() []string {
	seen := map[string]bool{}
	var titles []string
	for _, u := range r.Unresolved {
		name := u.Item.SearchName()
		if !seen[name] {
			seen[name] = true
			titles = append(titles, name)
		}
	}
	slices.Sort(titles)
	return titles
}

// UnresolvedBlock formats unresolved titles one per line, indented
func (r *Result) UnresolvedBlock() string {
	titles := r.UnresolvedTitles()
	for i, t := range titles {
		titles[i] = "   " + t
	}
	return strings.Join(titles, "\n")
}
