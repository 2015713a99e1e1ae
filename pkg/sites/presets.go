package sites

import (
	"fmt"
	"time"

	"screenlist/pkg/filter"
	"screenlist/pkg/httpclient"
	"screenlist/pkg/render"
	"screenlist/pkg/resolver"
	"screenlist/pkg/sources"
)

// Preset names
const (
	TVShowsPreset = "tvshows"
	RentalsPreset = "rentals"
	TVFeedPreset  = "tvfeed"
	FilePreset    = "file"
)

// DefaultTVFeedURL is the EZTV RSS feed
const DefaultTVFeedURL = "https://eztvx.to/ezrss.xml"

// Options are the per-run knobs a preset takes from flags and config
type Options struct {
	MaxPages  int
	MaxWeeks  int
	MinRating float64

	// BaseURL overrides the listing's page 0.
	BaseURL string
	FeedURL string
	// FeedPagePattern, when set, pages the feed with fmt.Sprintf(pattern, n).
	FeedPagePattern string
	FilePath        string
	// ResolverProfile selects the detail profile for the file preset.
	ResolverProfile string

	MaxWait    time.Duration
	FeedClient *httpclient.HTTPClient
}

// Preset is everything a run needs besides infrastructure
type Preset struct {
	Name       string
	Lister     sources.Lister
	Parser     sources.ItemParser
	MaxPages   int
	Resolver   resolver.Profile
	Criteria   filter.Criteria
	Metadata   render.Metadata
	ReportName string
}

// Names lists the presets Build knows
func Names() []string {
	return []string{TVShowsPreset, RentalsPreset, TVFeedPreset, FilePreset}
}

// Build returns the named preset
func Build(name string, profiles Profiles, opts Options) (Preset, error) {
	switch name {
	case TVShowsPreset:
		return TVShows(profiles, opts)
	case RentalsPreset:
		return Rentals(profiles, opts)
	case TVFeedPreset:
		return TVFeed(profiles, opts)
	case FilePreset:
		return File(profiles, opts)
	}
	return Preset{}, fmt.Errorf("unknown preset %q", name)
}

// TVShows enumerates EZTV pages and resolves each show as a TV series
func TVShows(profiles Profiles, opts Options) (Preset, error) {
	listing, err := profiles.Lister("eztv")
	if err != nil {
		return Preset{}, err
	}
	if opts.BaseURL != "" {
		listing.BaseURL = opts.BaseURL
	}
	profile, err := profiles.Resolver("imdb-tv")
	if err != nil {
		return Preset{}, err
	}

	return Preset{
		Name:       TVShowsPreset,
		Lister:     sources.NewHTMLLister(listing, opts.MaxWait),
		Parser:     sources.ParseEpisode,
		MaxPages:   orDefault(opts.MaxPages, 15),
		Resolver:   profile,
		Criteria:   tvCriteria(opts),
		Metadata:   tvMetadata(),
		ReportName: "tvshows.html",
	}, nil
}

// TVFeed is TVShows fed from the EZTV RSS feed instead of HTML pages
func TVFeed(profiles Profiles, opts Options) (Preset, error) {
	profile, err := profiles.Resolver("imdb-tv")
	if err != nil {
		return Preset{}, err
	}
	feedURL := opts.FeedURL
	if feedURL == "" {
		feedURL = DefaultTVFeedURL
	}

	return Preset{
		Name:       TVFeedPreset,
		Lister:     sources.NewFeedLister("eztv-rss", feedURL, opts.FeedPagePattern, opts.FeedClient, opts.MaxWait),
		Parser:     sources.ParseEpisode,
		MaxPages:   orDefault(opts.MaxPages, 1),
		Resolver:   profile,
		Criteria:   tvCriteria(opts),
		Metadata:   tvMetadata(),
		ReportName: "tvshows.html",
	}, nil
}

// Rentals reads the film downloads chart and keeps recent, well-rated films ordered by weeks on chart
func Rentals(profiles Profiles, opts Options) (Preset, error) {
	listing, err := profiles.Lister("officialcharts")
	if err != nil {
		return Preset{}, err
	}
	if opts.BaseURL != "" {
		listing.BaseURL = opts.BaseURL
	}
	profile, err := profiles.Resolver("imdb-film")
	if err != nil {
		return Preset{}, err
	}

	weeks := orDefault(opts.MaxWeeks, 8)
	rating := opts.MinRating
	if rating <= 0 {
		rating = 6.0
	}

	return Preset{
		Name:     RentalsPreset,
		Lister:   sources.NewHTMLLister(listing, opts.MaxWait),
		Parser:   sources.ParseChart,
		MaxPages: 1,
		Resolver: profile,
		Criteria: filter.Criteria{
			Predicates:      []filter.Predicate{filter.MaxRecency(weeks), filter.MinRating(rating)},
			UniqueDetailURL: true,
		},
		Metadata: render.Metadata{
			PageID:          "movierentals",
			Icon:            "film",
			Title:           "Movie Downloads",
			Subtitle:        fmt.Sprintf("overview of movie downloads rated greater than %.1f from the last %d weeks", rating, weeks),
			SourceURL:       "http://www.officialcharts.com",
			SourceName:      "officialcharts.com",
			LastUpdatedFile: "moviesupdated.json",
			Columns: []render.Column{
				{Title: "Title", Field: render.FieldTitle},
				{Title: "Rating", Field: render.FieldRating},
				{Title: "Weeks", Field: render.FieldWeeks},
				{Title: "Genre", Field: render.FieldGenre},
			},
		},
		ReportName: "movierentals.html",
	}, nil
}

// File resolves titles listed one per line in a local file
func File(profiles Profiles, opts Options) (Preset, error) {
	if opts.FilePath == "" {
		return Preset{}, fmt.Errorf("file preset needs a file path")
	}
	profileName := opts.ResolverProfile
	if profileName == "" {
		profileName = "imdb-film"
	}
	profile, err := profiles.Resolver(profileName)
	if err != nil {
		return Preset{}, err
	}

	var predicates []filter.Predicate
	if opts.MinRating > 0 {
		predicates = append(predicates, filter.MinRating(opts.MinRating))
	}

	return Preset{
		Name:     FilePreset,
		Lister:   sources.NewFileLister(opts.FilePath),
		Parser:   sources.ParsePlain,
		MaxPages: 1,
		Resolver: profile,
		Criteria: filter.Criteria{Predicates: predicates, UniqueDetailURL: true},
		Metadata: render.Metadata{
			PageID:          "watchlist",
			Icon:            "list",
			Title:           "Watchlist",
			Subtitle:        "titles from " + opts.FilePath,
			LastUpdatedFile: "watchlistupdated.json",
			Columns: []render.Column{
				{Title: "Title", Field: render.FieldTitle},
				{Title: "Rating", Field: render.FieldRating},
				{Title: "Genre", Field: render.FieldGenre},
				{Title: "Duration", Field: render.FieldDuration},
			},
		},
		ReportName: "watchlist.html",
	}, nil
}

// shows without a rating are dropped, as are duplicate detail pages
func tvCriteria(opts Options) filter.Criteria {
	predicates := []filter.Predicate{filter.HasField("rating")}
	if opts.MinRating > 0 {
		predicates = append(predicates, filter.MinRating(opts.MinRating))
	}
	return filter.Criteria{Predicates: predicates, UniqueDetailURL: true}
}

func tvMetadata() render.Metadata {
	return render.Metadata{
		PageID:          "tvshows",
		Icon:            "blackboard",
		Title:           "TV Shows",
		Subtitle:        "overview of popular shows airing in the last couple of days",
		SourceURL:       "https://eztv.ag",
		SourceName:      "EZTV",
		LastUpdatedFile: "tvupdated.json",
		Columns:         render.DefaultColumns(),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
