package sources

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEpisode(t *testing.T) {
	cases := []struct {
		title   string
		show    string
		season  int
		episode int
	}{
		{"The Office US S09E23 720p HDTV x264", "The Office US", 9, 23},
		{"The.Last.of.Us.S02E07.1080p.WEB.h264", "The Last of Us", 2, 7},
		{"Slow Horses s4e6 [eztv]", "Slow Horses", 4, 6},
		{"Doctor Who 2023 S01 E05 720p", "Doctor Who 2023", 1, 5},
		{"Only Murders in the Building 3x08 HDTV", "Only Murders in the Building", 3, 8},
		{"Bluey - S03E49 720p", "Bluey", 3, 49},
	}

	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			item, err := ParseEpisode(Entry{Title: tc.title})
			require.NoError(t, err)
			require.Equal(t, tc.show, item.Show)
			require.Equal(t, tc.season, item.Season)
			require.Equal(t, tc.episode, item.Episode)
			require.Equal(t, tc.title, item.Title)
		})
	}
}

func TestParseEpisode_Unparseable(t *testing.T) {
	for _, title := range []string{"", "Oppenheimer 2023 1080p BluRay", "S01E01 720p"} {
		_, err := ParseEpisode(Entry{Title: title})
		require.ErrorIs(t, err, ErrUnparseable, title)
	}
}

func TestParseChart(t *testing.T) {
	item, err := ParseChart(Entry{Title: "  the  BOY and the heron ", Fields: map[string]string{"weeks": " 4 "}})
	require.NoError(t, err)
	require.Equal(t, "The Boy And The Heron", item.Title)
	require.Equal(t, 4, item.Weeks)
	require.Equal(t, 4, item.Rank)

	_, err = ParseChart(Entry{Title: "Wonka", Fields: map[string]string{"weeks": "NEW"}})
	require.ErrorIs(t, err, ErrUnparseable)

	_, err = ParseChart(Entry{Title: " ", Fields: map[string]string{"weeks": "1"}})
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestParsePlain(t *testing.T) {
	item, err := ParsePlain(Entry{Title: "  Past   Lives ", Fields: map[string]string{"link": "x"}})
	require.NoError(t, err)
	require.Equal(t, "Past Lives", item.Title)
	require.Equal(t, "Past Lives", item.SearchName())
	require.Equal(t, "x", item.Extra["link"])

	_, err = ParsePlain(Entry{})
	require.ErrorIs(t, err, ErrUnparseable)
}
