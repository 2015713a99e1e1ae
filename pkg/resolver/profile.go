package resolver

import (
	"fmt"
	"net/url"
	"strings"

	"screenlist/pkg/browser"
)

// SearchProfile describes the lookup step
type SearchProfile struct {
	// URL is a format with one %s for the query-escaped name.
	URL       string            `json:"url"`
	Ready     string            `json:"ready"`
	Candidate browser.FieldSpec `json:"candidate"`
}

// DetailProfile describes the fields read from a detail page
type DetailProfile struct {
	Ready       string            `json:"ready"`
	Name        browser.FieldSpec `json:"name"`
	Year        browser.FieldSpec `json:"year"`
	Rating      browser.FieldSpec `json:"rating"`
	Genre       browser.FieldSpec `json:"genre"`
	Duration    browser.FieldSpec `json:"duration"`
	Description browser.FieldSpec `json:"description"`
}

// Profile is the selector set for one detail source
type Profile struct {
	Name   string        `json:"name"`
	Search SearchProfile `json:"search"`
	Detail DetailProfile `json:"detail"`
}

// SearchURL builds the search URL for a name
func (p Profile) SearchURL(name string) string {
	return fmt.Sprintf(p.Search.URL, url.QueryEscape(strings.TrimSpace(name)))
}

// Validate checks that the profile can drive a lookup
func (p Profile) Validate() error {
	switch {
	case p.Search.URL == "" || !strings.Contains(p.Search.URL, "%s"):
		return fmt.Errorf("profile %q: search url must contain %%s", p.Name)
	case p.Search.Candidate.Selector == "":
		return fmt.Errorf("profile %q: search candidate selector is required", p.Name)
	case p.Detail.Name.Selector == "":
		return fmt.Errorf("profile %q: detail name selector is required", p.Name)
	}
	return nil
}

// detail selectors shared by both IMDb profiles; the legacy title layout is kept as a fallback
var imdbDetail = DetailProfile{
	Ready: "[data-testid='hero__pageTitle'], div.title_wrapper > h1",
	Name: browser.FieldSpec{
		Selector: "[data-testid='hero__pageTitle'] > span, div.title_wrapper > h1",
		OwnText:  true,
	},
	Year: browser.FieldSpec{
		Selector: "[data-testid='hero__pageTitle'] ~ ul > li, div.title_wrapper #titleYear",
		All:      true,
	},
	Rating: browser.FieldSpec{
		Selector: "[data-testid='hero-rating-bar__aggregate-rating__score'], div.ratingValue > strong",
		Children: true,
	},
	Genre: browser.FieldSpec{
		Selector: ".ipc-chip-list__scroller > a",
		All:      true,
	},
	Duration: browser.FieldSpec{
		Selector: "li[data-testid='title-techspec_runtime'] > div",
		All:      true,
	},
	Description: browser.FieldSpec{
		Selector: "[data-testid='plot-xl'], #titleStoryLine > div > p > span",
	},
}

// IMDBTV looks up TV series
func IMDBTV() Profile {
	return Profile{
		Name: "imdb-tv",
		Search: SearchProfile{
			URL:   "https://www.imdb.com/find/?s=tt&ttype=tv&q=%s",
			Ready: ".ipc-metadata-list, .findSection",
			Candidate: browser.FieldSpec{
				Selector: "a.ipc-metadata-list-summary-item__t, .findSection td.result_text > a",
				Attr:     "href",
			},
		},
		Detail: imdbDetail,
	}
}

// IMDBFilm looks up feature films
func IMDBFilm() Profile {
	return Profile{
		Name: "imdb-film",
		Search: SearchProfile{
			URL:   "https://www.imdb.com/find/?s=tt&ttype=ft&q=%s",
			Ready: ".ipc-metadata-list, .findSection",
			Candidate: browser.FieldSpec{
				Selector: "a.ipc-metadata-list-summary-item__t, .findSection td.result_text > a",
				Attr:     "href",
			},
		},
		Detail: imdbDetail,
	}
}

// Builtin returns the compiled-in profiles by name
func Builtin() map[string]Profile {
	return map[string]Profile{
		"imdb-tv":   IMDBTV(),
		"imdb-film": IMDBFilm(),
	}
}
