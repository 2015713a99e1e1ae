package sources

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"screenlist/pkg/browser"
	"screenlist/pkg/domain"
)

var (
	// "Show Name S01E02 ...", "Show.Name.s1e2", "Show Name S01 E02"
	seasonEpisodeRe = regexp.MustCompile(`(?i)^(.+?)[\s._-]+s(\d{1,2})[\s._-]?e(\d{1,3})\b`)
	// "Show Name 1x02 ..."
	crossEpisodeRe = regexp.MustCompile(`(?i)^(.+?)[\s._-]+(\d{1,2})x(\d{2,3})\b`)
)

// ParseEpisode parses episode-shaped titles into show, season and episode
func ParseEpisode(entry Entry) (domain.RawItem, error) {
	title := browser.CollapseSpace(entry.Title)

	m := seasonEpisodeRe.FindStringSubmatch(title)
	if m == nil {
		m = crossEpisodeRe.FindStringSubmatch(title)
	}
	if m == nil {
		return domain.RawItem{}, fmt.Errorf("%w: %q is not an episode title", ErrUnparseable, title)
	}

	show := cleanShowName(m[1])
	if show == "" {
		return domain.RawItem{}, fmt.Errorf("%w: %q has no show name", ErrUnparseable, title)
	}
	season, _ := strconv.Atoi(m[2])
	episode, _ := strconv.Atoi(m[3])

	return domain.RawItem{
		Title:   title,
		Show:    show,
		Season:  season,
		Episode: episode,
		Extra:   entry.Fields,
	}, nil
}

// ParseChart parses chart rows that carry a name and a "weeks" field.
// Names are title-cased word by word; weeks become the item's rank.
func ParseChart(entry Entry) (domain.RawItem, error) {
	name := capitalizeWords(browser.CollapseSpace(entry.Title))
	if name == "" {
		return domain.RawItem{}, fmt.Errorf("%w: chart row with no name", ErrUnparseable)
	}

	weeks, err := strconv.Atoi(strings.TrimSpace(entry.Fields["weeks"]))
	if err != nil || weeks < 0 {
		return domain.RawItem{}, fmt.Errorf("%w: %q has no weeks on chart", ErrUnparseable, name)
	}

	return domain.RawItem{
		Title: name,
		Weeks: weeks,
		Rank:  weeks,
		Extra: entry.Fields,
	}, nil
}

// ParsePlain accepts any non-empty title as is
func ParsePlain(entry Entry) (domain.RawItem, error) {
	title := browser.CollapseSpace(entry.Title)
	if title == "" {
		return domain.RawItem{}, fmt.Errorf("%w: empty title", ErrUnparseable)
	}
	return domain.RawItem{Title: title, Extra: entry.Fields}, nil
}

// cleanShowName turns release-style separators into spaces
func cleanShowName(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, s)
	s = browser.CollapseSpace(s)
	return strings.TrimSpace(strings.TrimRight(s, "-"))
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
