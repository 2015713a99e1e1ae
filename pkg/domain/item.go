package domain

import "fmt"

// RawItem is one title read from a listing page.
// It is created by the enumerator and never modified afterwards.
type RawItem struct {
	// Title is the listing text exactly as the source showed it (trimmed).
	Title string

	// Show, Season and Episode are filled for episode-shaped titles ("Show S01E02").
	Show    string
	Season  int
	Episode int

	// Weeks is how long the title has been on a chart, when the source reports it.
	Weeks int

	// Rank is the source-provided recency/rank value used for ordering. 0 means unranked.
	Rank int

	// Extra carries any other attached listing fields.
	Extra map[string]string

	SourcePageIndex int

	// Order is the first-seen position after dedup.
	Order int
}

// SearchName returns the name used to look the item up on the detail source
func (i RawItem) SearchName() string {
	if i.Show != "" {
		return i.Show
	}
	return i.Title
}

// EpisodeTag formats season/episode as SxxEyy, or "" for non-episode items
func (i RawItem) EpisodeTag() string {
	if i.Season == 0 && i.Episode == 0 {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", i.Season, i.Episode)
}

// Entry pairs a listing item with the record resolved for it
type Entry struct {
	Item   RawItem
	Record EnrichmentRecord
}
