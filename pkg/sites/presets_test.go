package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screenlist/pkg/browser"
	"screenlist/pkg/cache"
	"screenlist/pkg/domain"
	"screenlist/pkg/httpclient"
	"screenlist/pkg/pipeline"
	"screenlist/pkg/resolver"
	"screenlist/pkg/sources"

	"github.com/stretchr/testify/require"
)

func TestBuild_AllPresets(t *testing.T) {
	opts := Options{FilePath: "titles.txt", MaxWait: time.Second}
	for _, name := range Names() {
		p, err := Build(name, DefaultProfiles(), opts)
		require.NoError(t, err, name)
		require.Equal(t, name, p.Name)
		require.NotNil(t, p.Lister)
		require.NotNil(t, p.Parser)
		require.NotEmpty(t, p.ReportName)
		require.NoError(t, p.Resolver.Validate())
	}

	_, err := Build("dominos", DefaultProfiles(), opts)
	require.Error(t, err)
}

func TestTVShows_Defaults(t *testing.T) {
	p, err := TVShows(DefaultProfiles(), Options{})
	require.NoError(t, err)

	require.Equal(t, 15, p.MaxPages)
	require.Equal(t, "imdb-tv", p.Resolver.Name)
	require.Equal(t, "tvshows.html", p.ReportName)
	require.Equal(t, "tvupdated.json", p.Metadata.LastUpdatedFile)
	require.Equal(t, "TV Shows", p.Metadata.Title)
	require.Len(t, p.Criteria.Predicates, 1)
	require.True(t, p.Criteria.UniqueDetailURL)
}

func TestRentals_Subtitle(t *testing.T) {
	p, err := Rentals(DefaultProfiles(), Options{MaxWeeks: 4, MinRating: 7})
	require.NoError(t, err)
	require.Equal(t, "overview of movie downloads rated greater than 7.0 from the last 4 weeks", p.Metadata.Subtitle)
	require.Equal(t, "rank<=4", p.Criteria.Predicates[0].Name())
	require.Equal(t, "rating>=7.0", p.Criteria.Predicates[1].Name())

	p, err = Rentals(DefaultProfiles(), Options{})
	require.NoError(t, err)
	require.Equal(t, "overview of movie downloads rated greater than 6.0 from the last 8 weeks", p.Metadata.Subtitle)
}

func TestFile_RequiresPath(t *testing.T) {
	_, err := File(DefaultProfiles(), Options{})
	require.Error(t, err)

	_, err = File(DefaultProfiles(), Options{FilePath: "x.txt", ResolverProfile: "nope"})
	require.Error(t, err)
}

func TestProfiles_Merge(t *testing.T) {
	custom := resolver.IMDBFilm()
	custom.Search.URL = "https://mirror.example/find?q=%s"

	merged, err := DefaultProfiles().Merge(Profiles{
		Resolvers: map[string]resolver.Profile{"imdb-film": custom},
		Listers:   map[string]sources.HTMLProfile{"local": {BaseURL: "http://localhost/list", Entry: "li"}},
	})
	require.NoError(t, err)

	film, err := merged.Resolver("imdb-film")
	require.NoError(t, err)
	require.Equal(t, "https://mirror.example/find?q=%s", film.Search.URL)

	tv, err := merged.Resolver("imdb-tv")
	require.NoError(t, err)
	require.Equal(t, resolver.IMDBTV().Search.URL, tv.Search.URL)

	local, err := merged.Lister("local")
	require.NoError(t, err)
	require.Equal(t, "local", local.Name)

	require.Equal(t, resolver.IMDBFilm().Search.URL, DefaultProfiles().Resolvers["imdb-film"].Search.URL)
}

const (
	chartFixture = `<html><body>
<div class="description"><a class="chart-name"><span>1</span><span>DUNE PART TWO</span></a><ul><li class="weeks"><span>3</span></li></ul></div>
<div class="description"><a class="chart-name"><span>2</span><span>OLD FILM</span></a><ul><li class="weeks"><span>20</span></li></ul></div>
<div class="description"><a class="chart-name"><span>3</span><span>UNKNOWN THING</span></a><ul><li class="weeks"><span>1</span></li></ul></div>
</body></html>`

	detailFixture = `<html><body>
<h1 data-testid="hero__pageTitle"><span>%s</span></h1>
<ul><li>Movie</li><li><a>%s</a></li></ul>
<div data-testid="hero-rating-bar__aggregate-rating__score"><span>%s</span><span>/10</span></div>
<div class="ipc-chip-list__scroller"><a>Sci-Fi</a></div>
<span data-testid="plot-xl">A plot.</span>
</body></html>`
)

// Test Case 1: TestRentals_EndToEnd
// Input: a chart with 3 films (one charted too long, one unknown to the detail source)
// Expected Output: one film in the report, one unresolved, both resolved films cached
func TestRentals_EndToEnd(t *testing.T) {
	titles := map[string]string{"Dune Part Two": "/title/tt1/", "Old Film": "/title/tt2/"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/chart":
			fmt.Fprint(w, chartFixture)
		case r.URL.Path == "/find":
			fmt.Fprint(w, `<html><body><ul class="ipc-metadata-list">`)
			if href, ok := titles[r.URL.Query().Get("q")]; ok {
				fmt.Fprintf(w, `<li><a class="ipc-metadata-list-summary-item__t" href="%s?ref_=x">hit</a></li>`, href)
			}
			fmt.Fprint(w, `</ul></body></html>`)
		case r.URL.Path == "/title/tt1/":
			fmt.Fprintf(w, detailFixture, "Dune: Part Two", "2024", "8.5")
		case r.URL.Path == "/title/tt2/":
			fmt.Fprintf(w, detailFixture, "Old Film", "1999", "7.0")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	film := resolver.IMDBFilm()
	film.Search.URL = srv.URL + "/find?q=%s"
	profiles, err := DefaultProfiles().Merge(Profiles{Resolvers: map[string]resolver.Profile{"imdb-film": film}})
	require.NoError(t, err)

	preset, err := Rentals(profiles, Options{BaseURL: srv.URL + "/chart", MaxWait: 2 * time.Second})
	require.NoError(t, err)

	dir := t.TempDir()
	store := cache.NewFileStore(filepath.Join(dir, "movies.json"))
	client := httpclient.NewClient(httpclient.CloudflareClient)

	res, err := pipeline.NewOrchestrator(pipeline.Config{
		Name:     preset.Name,
		Sessions: browser.StaticFactory(client),
		Lister:   preset.Lister,
		Parser:   preset.Parser,
		MaxPages: preset.MaxPages,
		Resolver: func(s browser.Session) pipeline.Resolver {
			return resolver.New(s, preset.Resolver, 2*time.Second)
		},
		Store:      store,
		Criteria:   preset.Criteria,
		Metadata:   preset.Metadata,
		OutputDir:  dir,
		ReportName: preset.ReportName,
	}).Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode())
	require.Len(t, res.Items, 3)
	require.Len(t, res.Selected, 1)
	require.Equal(t, "Dune: Part Two", res.Selected[0].Record.DisplayName)
	require.Equal(t, srv.URL+"/title/tt1/", res.Selected[0].Record.DetailURL)
	require.Equal(t, 1, res.FilterStats.Excluded["rank<=8"])
	require.Len(t, res.Unresolved, 1)
	require.Equal(t, "Unknown Thing", res.Unresolved[0].Item.Title)
	require.Equal(t, domain.ReasonNoCandidates, res.Unresolved[0].Reason)

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 2)
	require.Contains(t, cached, domain.CanonicalKey("old film"))

	report, err := os.ReadFile(filepath.Join(dir, "movierentals.html"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(report), "Dune: Part Two (2024)"))
	require.FileExists(t, filepath.Join(dir, "moviesupdated.json"))
}
