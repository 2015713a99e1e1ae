package filter

import (
	"fmt"
	"log/slog"
	"slices"

	"screenlist/pkg/domain"
)

// DuplicateDetailURL is the exclusion name for entries dropped by Criteria.UniqueDetailURL
const DuplicateDetailURL = "duplicate-detail-url"

// Predicate decides whether an entry is kept
type Predicate interface {
	Name() string
	Keep(entry domain.Entry) bool
}

// Criteria are predicates combined with AND, plus optional detail URL deduplication
type Criteria struct {
	Predicates      []Predicate
	UniqueDetailURL bool
}

// Stats counts what Select kept and why it dropped the rest
type Stats struct {
	Input    int
	Kept     int
	Excluded map[string]int
}

// ExcludedTotal returns the number of dropped entries
func (s Stats) ExcludedTotal() int {
	total := 0
	for _, n := range s.Excluded {
		total += n
	}
	return total
}

// Select applies criteria to entries and orders the survivors by rank. The sort is stable,
// so tied entries keep their input order; callers pass entries in first-seen order.
// Every dropped entry is counted under the name of the first predicate it failed.
func Select(entries []domain.Entry, criteria Criteria) ([]domain.Entry, Stats) {
	stats := Stats{Input: len(entries), Excluded: map[string]int{}}
	kept := make([]domain.Entry, 0, len(entries))
	seenURLs := map[string]bool{}

	for _, entry := range entries {
		if failed := firstFailure(entry, criteria.Predicates); failed != "" {
			stats.Excluded[failed]++
			slog.Debug("Filter: excluded entry", "title", entry.Item.Title, "predicate", failed)
			continue
		}

		if criteria.UniqueDetailURL && entry.Record.DetailURL != "" {
			if seenURLs[entry.Record.DetailURL] {
				stats.Excluded[DuplicateDetailURL]++
				slog.Debug("Filter: excluded entry", "title", entry.Item.Title, "predicate", DuplicateDetailURL, "url", entry.Record.DetailURL)
				continue
			}
			seenURLs[entry.Record.DetailURL] = true
		}

		kept = append(kept, entry)
	}

	slices.SortStableFunc(kept, func(a, b domain.Entry) int {
		return a.Item.Rank - b.Item.Rank
	})

	stats.Kept = len(kept)
	return kept, stats
}

func firstFailure(entry domain.Entry, predicates []Predicate) string {
	for _, p := range predicates {
		if !p.Keep(entry) {
			return p.Name()
		}
	}
	return ""
}

// MinRatingFilter keeps entries rated at or above a threshold
type MinRatingFilter struct {
	min float64
}

// MinRating creates a rating threshold predicate. Unrated entries fail it.
func MinRating(min float64) *MinRatingFilter {
	return &MinRatingFilter{min: min}
}

// Name returns the predicate name
func (f *MinRatingFilter) Name() string {
	return fmt.Sprintf("rating>=%.1f", f.min)
}

// Keep returns false for unrated entries and ratings below the threshold
func (f *MinRatingFilter) Keep(entry domain.Entry) bool {
	return entry.Record.Rating != nil && *entry.Record.Rating >= f.min
}

// MaxRecencyFilter keeps entries whose rank is within a bound
type MaxRecencyFilter struct {
	max int
}

// MaxRecency creates a recency predicate. Unranked entries (rank 0) pass.
func MaxRecency(max int) *MaxRecencyFilter {
	return &MaxRecencyFilter{max: max}
}

// Name returns the predicate name
func (f *MaxRecencyFilter) Name() string {
	return fmt.Sprintf("rank<=%d", f.max)
}

// Keep returns false when the entry's rank exceeds the bound
func (f *MaxRecencyFilter) Keep(entry domain.Entry) bool {
	return entry.Item.Rank == 0 || entry.Item.Rank <= f.max
}

// HasFieldFilter keeps entries whose optional field is set
type HasFieldFilter struct {
	field string
}

// HasField creates a predicate on one of: year, rating, genre, duration, description
func HasField(field string) *HasFieldFilter {
	return &HasFieldFilter{field: field}
}

// Name returns the predicate name
func (f *HasFieldFilter) Name() string {
	return "has-" + f.field
}

// Keep returns false when the field is empty; unknown fields never match
func (f *HasFieldFilter) Keep(entry domain.Entry) bool {
	r := entry.Record
	switch f.field {
	case "year":
		return r.Year != ""
	case "rating":
		return r.Rating != nil
	case "genre":
		return r.GenreOrEmpty() != ""
	case "duration":
		return r.DurationOrEmpty() != ""
	case "description":
		return r.DescriptionOrEmpty() != ""
	}
	return false
}
